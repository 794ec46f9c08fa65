package ratchet

import "testing"

func TestReshapePreservesNumel(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	out, err := a.Reshape(Shape{2, 6})
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	if !out.Shape().Equal(Shape{2, 6}) {
		t.Errorf("Reshape result shape = %v, want [2 6]", out.Shape())
	}
}

func TestReshapeRejectsNumelMismatch(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	if _, err := a.Reshape(Shape{5, 3}); err == nil {
		t.Fatal("Reshape changing element count should fail")
	}
}

func TestReshapeIsViewOp(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	out, err := a.Reshape(Shape{2, 6})
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	view, ok := out.node.op.(ViewOp)
	if !ok {
		t.Fatal("ReshapeOp does not implement ViewOp")
	}
	if view.ViewSource().ID() != a.ID() {
		t.Error("ReshapeOp.ViewSource() does not point at the original tensor")
	}
}

func TestReshapeRejectsNonContiguousSource(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	permuted, err := a.Permute([]int{1, 0})
	if err != nil {
		t.Fatalf("Permute: %v", err)
	}
	if _, err := permuted.Reshape(Shape{12}); err == nil {
		t.Fatal("Reshape of a non-contiguous (permuted) view should fail")
	}
}

func TestPermuteSwapsShapeAndStrides(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	out, err := a.Permute([]int{1, 0})
	if err != nil {
		t.Fatalf("Permute: %v", err)
	}
	if !out.Shape().Equal(Shape{4, 3}) {
		t.Errorf("Permute result shape = %v, want [4 3]", out.Shape())
	}
	origStrides := StridesFrom(Shape{3, 4})
	wantStrides := Strides{origStrides[1], origStrides[0]}
	if !stridesEqual(out.View().Strides, wantStrides) {
		t.Errorf("Permute result strides = %v, want %v", out.View().Strides, wantStrides)
	}
}

func TestPermuteIsViewOp(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	out, err := a.Permute([]int{1, 0})
	if err != nil {
		t.Fatalf("Permute: %v", err)
	}
	if _, ok := out.node.op.(ViewOp); !ok {
		t.Fatal("PermuteOp does not implement ViewOp")
	}
}

func TestPermuteRejectsWrongLength(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	if _, err := a.Permute([]int{0}); err == nil {
		t.Fatal("Permute with wrong-length permutation should fail")
	}
}

func TestPermuteRejectsRepeatedAxis(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	if _, err := a.Permute([]int{0, 0}); err == nil {
		t.Fatal("Permute with a repeated axis should fail")
	}
}

func TestPermuteResultIsNotContiguous(t *testing.T) {
	a := mustTensor(t, make([]float32, 12), Shape{3, 4})
	out, err := a.Permute([]int{1, 0})
	if err != nil {
		t.Fatalf("Permute: %v", err)
	}
	if out.View().Contiguous() {
		t.Error("Permute([1,0]) of a rank-2 tensor should not be contiguous")
	}
}
