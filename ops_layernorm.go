package ratchet

import "github.com/philpax/ratchet/gpucore"

// LayerNormOp normalizes each row of src to zero mean and unit variance,
// then applies an affine (weight, bias) transform. bias is nil when no
// bias was supplied.
type LayerNormOp struct {
	src, weight, bias *Tensor
	eps               float32
}

// LayerNorm normalizes t over its last dimension and applies the given
// per-feature weight (a 1-D tensor of length equal to t's last dimension)
// and an optional per-feature bias of the same length.
func (t Tensor) LayerNorm(weight Tensor, bias *Tensor, eps float32) (Tensor, error) {
	op := &LayerNormOp{src: &t, weight: &weight, bias: bias, eps: eps}
	return buildOp(op, t.Device())
}

func (op *LayerNormOp) Srcs() []*Tensor {
	srcs := []*Tensor{op.src, op.weight}
	if op.bias != nil {
		srcs = append(srcs, op.bias)
	}
	return srcs
}

func (op *LayerNormOp) CheckShapes() error {
	shape := op.src.Shape()
	if shape.Rank() == 0 {
		return &ShapeError{Op: "layer_norm", Message: "layer_norm requires at least one dimension"}
	}
	rowLen := shape[len(shape)-1]
	if op.weight.Shape().Rank() != 1 || op.weight.Shape()[0] != rowLen {
		return &ShapeError{Op: "layer_norm", Message: "weight must be rank-1 with length equal to the last dimension"}
	}
	if op.bias != nil && (op.bias.Shape().Rank() != 1 || op.bias.Shape()[0] != rowLen) {
		return &ShapeError{Op: "layer_norm", Message: "bias must be rank-1 with length equal to the last dimension"}
	}
	return nil
}

func (op *LayerNormOp) CheckDtypes() error {
	if op.src.DType() != F32 || op.weight.DType() != F32 {
		return &DtypeError{Op: "layer_norm", Message: "layer_norm requires F32 operands"}
	}
	if op.bias != nil && op.bias.DType() != F32 {
		return &DtypeError{Op: "layer_norm", Message: "bias must be F32"}
	}
	return nil
}

func (op *LayerNormOp) ComputeView() (StorageView, error) {
	shape := op.src.Shape()
	return StorageView{Shape: shape.Clone(), DType: op.src.DType(), Strides: StridesFrom(shape)}, nil
}

func (op *LayerNormOp) rowLen() uint32 {
	shape := op.src.Shape()
	return shape[len(shape)-1]
}

func (op *LayerNormOp) rows(dst *Tensor) uint32 {
	rowLen := op.rowLen()
	if rowLen == 0 {
		return 0
	}
	return dst.Shape().Numel() / rowLen
}

func (op *LayerNormOp) KernelName() string { return "layer_norm" }

func (op *LayerNormOp) KernelElement(dst *Tensor) gpucore.KernelElement { return gpucore.Scalar }

func (op *LayerNormOp) KernelKey(inplace bool, dst *Tensor) string {
	return op.KernelName() + "_" + op.KernelElement(dst).String()
}

// SupportsInplace is false: every output element in a row depends on the
// row's mean and variance, both computed from the full unmodified row.
func (op *LayerNormOp) SupportsInplace() bool { return false }

func (op *LayerNormOp) CalculateDispatch(dst *Tensor) gpucore.WorkgroupCount {
	return gpucore.Dispatch(op.rows(dst), 64)
}

func (op *LayerNormOp) StorageBindGroupLayout(inplace bool) gpucore.BindGroupLayoutKind {
	return gpucore.Ternary
}

func (op *LayerNormOp) WriteMetadata(arena *UniformArena, dst *Tensor, elem gpucore.KernelElement) (uint32, error) {
	w := newMetadataWriter()
	w.putU32(op.rows(dst))
	w.putU32(op.rowLen())
	w.putF32(op.eps)
	w.putU32(boolToU32(op.bias != nil))
	return arena.Write(w.buf), nil
}
