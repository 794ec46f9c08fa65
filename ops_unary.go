package ratchet

import "github.com/philpax/ratchet/gpucore"

// GeluOp applies the tanh-approximation GELU activation elementwise.
type GeluOp struct {
	src *Tensor
}

// Gelu returns the tanh-approximation GELU activation of t, elementwise.
func (t Tensor) Gelu() (Tensor, error) {
	op := &GeluOp{src: &t}
	return buildOp(op, t.Device())
}

func (op *GeluOp) Srcs() []*Tensor { return []*Tensor{op.src} }

func (op *GeluOp) CheckShapes() error { return nil }

func (op *GeluOp) CheckDtypes() error {
	if op.src.DType() != F32 {
		return &DtypeError{Op: "gelu", Message: "gelu requires F32 input"}
	}
	return nil
}

func (op *GeluOp) ComputeView() (StorageView, error) {
	return StorageView{
		Shape:   op.src.Shape().Clone(),
		DType:   op.src.DType(),
		Strides: StridesFrom(op.src.Shape()),
	}, nil
}

func (op *GeluOp) KernelName() string { return "gelu" }

func (op *GeluOp) KernelElement(dst *Tensor) gpucore.KernelElement {
	if dst.Shape().Numel()%4 == 0 {
		return gpucore.Vec4
	}
	return gpucore.Scalar
}

func (op *GeluOp) KernelKey(inplace bool, dst *Tensor) string {
	return op.KernelName() + "_" + op.KernelElement(dst).String()
}

// SupportsInplace is true: gelu reads each element once before writing it,
// so the planner may fold dst into src's own buffer.
func (op *GeluOp) SupportsInplace() bool { return true }

func (op *GeluOp) CalculateDispatch(dst *Tensor) gpucore.WorkgroupCount {
	elem := op.KernelElement(dst)
	return gpucore.Dispatch(dst.Shape().Numel()/elem.Width(), 64)
}

func (op *GeluOp) StorageBindGroupLayout(inplace bool) gpucore.BindGroupLayoutKind {
	if inplace {
		return gpucore.UnaryInplace
	}
	return gpucore.Unary
}

func (op *GeluOp) WriteMetadata(arena *UniformArena, dst *Tensor, elem gpucore.KernelElement) (uint32, error) {
	w := newMetadataWriter()
	numel := dst.Shape().Numel()
	if elem == gpucore.Vec4 {
		numel /= 4
	}
	w.putU32(numel)
	w.putU32(0)
	w.putU32(0)
	w.putU32(0)
	return arena.Write(w.buf), nil
}
