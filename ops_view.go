package ratchet

import "github.com/philpax/ratchet/gpucore"

// ReshapeOp reinterprets src's contiguous buffer under a new shape of the
// same element count. It dispatches no kernel: see ViewOp.
type ReshapeOp struct {
	src      *Tensor
	newShape Shape
}

// Reshape returns a view of t under newShape, which must have the same
// element count as t's current shape. t must be contiguous; reshaping a
// strided view (e.g. the result of Permute) would require materializing a
// copy, which this op does not do.
func (t Tensor) Reshape(newShape Shape) (Tensor, error) {
	op := &ReshapeOp{src: &t, newShape: newShape.Clone()}
	return buildOp(op, t.Device())
}

func (op *ReshapeOp) Srcs() []*Tensor     { return []*Tensor{op.src} }
func (op *ReshapeOp) ViewSource() *Tensor { return op.src }

func (op *ReshapeOp) CheckShapes() error {
	if !op.src.View().Contiguous() {
		return &ShapeError{Op: "reshape", Message: "reshape requires a contiguous source view"}
	}
	if op.src.Shape().Numel() != op.newShape.Numel() {
		return &ShapeError{Op: "reshape", Message: "reshape must preserve element count"}
	}
	return nil
}

func (op *ReshapeOp) CheckDtypes() error { return nil }

func (op *ReshapeOp) ComputeView() (StorageView, error) {
	return StorageView{
		Shape:   op.newShape.Clone(),
		DType:   op.src.DType(),
		Strides: StridesFrom(op.newShape),
	}, nil
}

func (op *ReshapeOp) KernelName() string { return "" }

func (op *ReshapeOp) KernelElement(dst *Tensor) gpucore.KernelElement { return gpucore.Scalar }

func (op *ReshapeOp) KernelKey(inplace bool, dst *Tensor) string { return "" }

func (op *ReshapeOp) SupportsInplace() bool { return true }

func (op *ReshapeOp) CalculateDispatch(dst *Tensor) gpucore.WorkgroupCount {
	return gpucore.WorkgroupCount{}
}

func (op *ReshapeOp) StorageBindGroupLayout(inplace bool) gpucore.BindGroupLayoutKind {
	return gpucore.UnaryInplace
}

func (op *ReshapeOp) WriteMetadata(arena *UniformArena, dst *Tensor, elem gpucore.KernelElement) (uint32, error) {
	return 0, nil
}

// PermuteOp reorders src's axes according to a permutation of [0, rank),
// producing a non-contiguous view over the same storage.
type PermuteOp struct {
	src  *Tensor
	axes []int
}

// Permute returns a view of t with axes reordered according to perm, a
// permutation of [0, t.Shape().Rank()). perm[i] names which of t's
// original axes becomes the result's axis i.
func (t Tensor) Permute(perm []int) (Tensor, error) {
	axes := make([]int, len(perm))
	copy(axes, perm)
	op := &PermuteOp{src: &t, axes: axes}
	return buildOp(op, t.Device())
}

func (op *PermuteOp) Srcs() []*Tensor     { return []*Tensor{op.src} }
func (op *PermuteOp) ViewSource() *Tensor { return op.src }

func (op *PermuteOp) CheckShapes() error {
	rank := op.src.Shape().Rank()
	if len(op.axes) != rank {
		return &ShapeError{Op: "permute", Message: "permutation length must equal source rank"}
	}
	seen := make([]bool, rank)
	for _, a := range op.axes {
		if a < 0 || a >= rank {
			return &ShapeError{Op: "permute", Message: "permutation index out of range"}
		}
		if seen[a] {
			return &ShapeError{Op: "permute", Message: "permutation must not repeat an axis"}
		}
		seen[a] = true
	}
	return nil
}

func (op *PermuteOp) CheckDtypes() error { return nil }

func (op *PermuteOp) ComputeView() (StorageView, error) {
	view := op.src.View()
	shape := make(Shape, len(op.axes))
	strides := make(Strides, len(op.axes))
	for i, a := range op.axes {
		shape[i] = view.Shape[a]
		strides[i] = view.Strides[a]
	}
	return StorageView{Shape: shape, DType: view.DType, Strides: strides}, nil
}

func (op *PermuteOp) KernelName() string { return "" }

func (op *PermuteOp) KernelElement(dst *Tensor) gpucore.KernelElement { return gpucore.Scalar }

func (op *PermuteOp) KernelKey(inplace bool, dst *Tensor) string { return "" }

// SupportsInplace is false: a permuted view must keep its own distinct
// Strides even though it shares src's underlying buffer, and the planner's
// generic inplace folding assumes dst fully replaces a source's storage
// slot rather than reinterpreting it. ViewOp aliasing bypasses that path
// entirely, so this only governs whether a later op could fold into this
// view's (nonexistent) dispatch, which never happens.
func (op *PermuteOp) SupportsInplace() bool { return false }

func (op *PermuteOp) CalculateDispatch(dst *Tensor) gpucore.WorkgroupCount {
	return gpucore.WorkgroupCount{}
}

func (op *PermuteOp) StorageBindGroupLayout(inplace bool) gpucore.BindGroupLayoutKind {
	return gpucore.UnaryInplace
}

func (op *PermuteOp) WriteMetadata(arena *UniformArena, dst *Tensor, elem gpucore.KernelElement) (uint32, error) {
	return 0, nil
}
