package ratchet

import (
	"math"
	"testing"
)

func TestLayerNormComputeView(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	w := mustTensor(t, []float32{1, 1, 1, 1}, Shape{4})
	b := mustTensor(t, []float32{0, 0, 0, 0}, Shape{4})

	out, err := a.LayerNorm(w, &b, 1e-5)
	if err != nil {
		t.Fatalf("LayerNorm: %v", err)
	}
	if !out.Shape().Equal(Shape{3, 4}) {
		t.Errorf("LayerNorm result shape = %v, want [3 4]", out.Shape())
	}
}

func TestLayerNormRejectsMismatchedWeightLength(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	w := mustTensor(t, []float32{1, 1, 1}, Shape{3})
	b := mustTensor(t, []float32{0, 0, 0, 0}, Shape{4})

	if _, err := a.LayerNorm(w, &b, 1e-5); err == nil {
		t.Fatal("LayerNorm with mismatched weight length should fail")
	}
}

func TestLayerNormRejectsNonVectorBias(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	w := mustTensor(t, []float32{1, 1, 1, 1}, Shape{4})
	b := mustTensor(t, make([]float32, 4), Shape{2, 2})

	if _, err := a.LayerNorm(w, &b, 1e-5); err == nil {
		t.Fatal("LayerNorm with rank-2 bias should fail")
	}
}

func TestLayerNormWriteMetadataPacksEps(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	w := mustTensor(t, []float32{1, 1, 1, 1}, Shape{4})
	b := mustTensor(t, []float32{0, 0, 0, 0}, Shape{4})
	out, err := a.LayerNorm(w, &b, 1e-5)
	if err != nil {
		t.Fatalf("LayerNorm: %v", err)
	}

	arena := NewUniformArena()
	op := out.node.op.(*LayerNormOp)
	if _, err := op.WriteMetadata(arena, &out, op.KernelElement(&out)); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	record := arena.Bytes()
	rows := leU32(record[0:4])
	rowLen := leU32(record[4:8])
	eps := math.Float32frombits(leU32(record[8:12]))
	if rows != 3 {
		t.Errorf("rows = %d, want 3", rows)
	}
	if rowLen != 4 {
		t.Errorf("row_len = %d, want 4", rowLen)
	}
	if eps != 1e-5 {
		t.Errorf("eps = %v, want 1e-5", eps)
	}
}

func TestLayerNormSrcsIncludesWeightAndBias(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	w := mustTensor(t, []float32{1, 1, 1, 1}, Shape{4})
	b := mustTensor(t, []float32{0, 0, 0, 0}, Shape{4})
	out, err := a.LayerNorm(w, &b, 1e-5)
	if err != nil {
		t.Fatalf("LayerNorm: %v", err)
	}
	if got := len(out.node.op.Srcs()); got != 3 {
		t.Errorf("Srcs() returned %d tensors, want 3", got)
	}
}

func TestLayerNormWithoutBiasOmitsItFromSrcs(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	w := mustTensor(t, []float32{1, 1, 1, 1}, Shape{4})

	out, err := a.LayerNorm(w, nil, 1e-5)
	if err != nil {
		t.Fatalf("LayerNorm: %v", err)
	}
	if got := len(out.node.op.Srcs()); got != 2 {
		t.Errorf("Srcs() returned %d tensors without bias, want 2", got)
	}

	arena := NewUniformArena()
	op := out.node.op.(*LayerNormOp)
	if _, err := op.WriteMetadata(arena, &out, op.KernelElement(&out)); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	hasBias := leU32(arena.Bytes()[12:16])
	if hasBias != 0 {
		t.Errorf("has_bias = %d, want 0 without a bias operand", hasBias)
	}
}
