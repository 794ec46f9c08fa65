package ratchet

import "github.com/philpax/ratchet/gpucore"

// SoftmaxOp computes softmax along dim, one thread per row (a row being
// one combination of all coordinates other than dim). Requires a
// contiguous source so the packed strides describe actual memory layout.
type SoftmaxOp struct {
	src *Tensor
	dim int // normalized: 0 <= dim < src.Shape().Rank()
}

// Softmax returns the softmax of t along dim. Negative dim counts from
// the end, so -1 selects the last axis.
func (t Tensor) Softmax(dim int) (Tensor, error) {
	rank := t.Shape().Rank()
	d := dim
	if d < 0 {
		d += rank
	}
	if d < 0 || d >= rank {
		return Tensor{}, &ShapeError{Op: "softmax", Message: "dim out of range"}
	}
	op := &SoftmaxOp{src: &t, dim: d}
	return buildOp(op, t.Device())
}

func (op *SoftmaxOp) Srcs() []*Tensor { return []*Tensor{op.src} }

func (op *SoftmaxOp) CheckShapes() error {
	if !op.src.View().Contiguous() {
		return &ShapeError{Op: "softmax", Message: "softmax requires a contiguous source"}
	}
	return nil
}

func (op *SoftmaxOp) CheckDtypes() error {
	if op.src.DType() != F32 {
		return &DtypeError{Op: "softmax", Message: "softmax requires F32 input"}
	}
	return nil
}

func (op *SoftmaxOp) ComputeView() (StorageView, error) {
	shape := op.src.Shape()
	return StorageView{Shape: shape.Clone(), DType: op.src.DType(), Strides: StridesFrom(shape)}, nil
}

func (op *SoftmaxOp) rowLen() uint32 {
	return op.src.Shape()[op.dim]
}

func (op *SoftmaxOp) rows(dst *Tensor) uint32 {
	rowLen := op.rowLen()
	if rowLen == 0 {
		return 0
	}
	return dst.Shape().Numel() / rowLen
}

// padIndex returns dim's position once the source shape is left-padded to
// rank 4, matching the convention shapeVec4/stridesVec4 already use.
func (op *SoftmaxOp) padIndex() int {
	return op.dim + (4 - op.src.Shape().Rank())
}

func (op *SoftmaxOp) KernelName() string { return "softmax" }

// KernelElement is always Scalar: softmax's inner loop walks a full row
// sequentially and has no vec4 fast path.
func (op *SoftmaxOp) KernelElement(dst *Tensor) gpucore.KernelElement { return gpucore.Scalar }

func (op *SoftmaxOp) KernelKey(inplace bool, dst *Tensor) string {
	return op.KernelName() + "_" + op.KernelElement(dst).String()
}

// SupportsInplace is false: every output element in a row depends on every
// input element in that row, so overwriting src mid-computation would
// corrupt later reads within the same thread's loop ordering guarantees
// are fine, but the planner has no way to guarantee a single thread owns
// the whole row exclusively across the dispatch; keep it out-of-place.
func (op *SoftmaxOp) SupportsInplace() bool { return false }

func (op *SoftmaxOp) CalculateDispatch(dst *Tensor) gpucore.WorkgroupCount {
	return gpucore.Dispatch(op.rows(dst), 64)
}

func (op *SoftmaxOp) StorageBindGroupLayout(inplace bool) gpucore.BindGroupLayoutKind {
	return gpucore.Unary
}

func (op *SoftmaxOp) WriteMetadata(arena *UniformArena, dst *Tensor, elem gpucore.KernelElement) (uint32, error) {
	shape := op.src.Shape()
	strides := StridesFrom(shape)
	padded := stridesVec4(strides, 0)

	outerShape := shape.Clone()
	outerShape[op.dim] = 1

	w := newMetadataWriter()
	w.putU32(op.rows(dst))
	w.putU32(op.rowLen())
	w.putU32(padded[op.padIndex()])
	w.putU32(0)
	w.putU32Vec4(shapeVec4(outerShape, 1))
	w.putU32Vec4(padded)
	return arena.Write(w.buf), nil
}
