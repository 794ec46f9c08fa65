package ratchet

import "github.com/philpax/ratchet/gpucore"

// Conv1DOp is a 1-D convolution over (channels, length) per batch item.
// bias is nil when no bias was supplied.
type Conv1DOp struct {
	src, weight, bias *Tensor
	stride, padding    uint32
}

// Conv1D convolves t (shape [batch, channels_in, length_in]) with weight
// (shape [channels_out, channels_in, kernel_size]) and optionally adds bias
// (shape [channels_out]), producing [batch, channels_out, length_out].
func (t Tensor) Conv1D(weight Tensor, bias *Tensor, stride, padding uint32) (Tensor, error) {
	op := &Conv1DOp{src: &t, weight: &weight, bias: bias, stride: stride, padding: padding}
	return buildOp(op, t.Device())
}

func (op *Conv1DOp) Srcs() []*Tensor {
	srcs := []*Tensor{op.src, op.weight}
	if op.bias != nil {
		srcs = append(srcs, op.bias)
	}
	return srcs
}

func (op *Conv1DOp) CheckShapes() error {
	src := op.src.Shape()
	w := op.weight.Shape()
	if src.Rank() != 3 {
		return &ShapeError{Op: "conv1d", Message: "src must be rank 3: [batch, channels_in, length_in]"}
	}
	if w.Rank() != 3 {
		return &ShapeError{Op: "conv1d", Message: "weight must be rank 3: [channels_out, channels_in, kernel_size]"}
	}
	if w[1] != src[1] {
		return &ShapeError{Op: "conv1d", Message: "weight channels_in must match src channels_in"}
	}
	if op.bias != nil {
		b := op.bias.Shape()
		if b.Rank() != 1 || b[0] != w[0] {
			return &ShapeError{Op: "conv1d", Message: "bias must be rank 1 with length channels_out"}
		}
	}
	if op.stride == 0 {
		return &ShapeError{Op: "conv1d", Message: "stride must be nonzero"}
	}
	lengthIn := src[2]
	kernelSize := w[2]
	if lengthIn+2*op.padding < kernelSize {
		return &ShapeError{Op: "conv1d", Message: "kernel_size exceeds padded input length"}
	}
	return nil
}

func (op *Conv1DOp) CheckDtypes() error {
	if op.src.DType() != F32 || op.weight.DType() != F32 {
		return &DtypeError{Op: "conv1d", Message: "conv1d requires F32 operands"}
	}
	if op.bias != nil && op.bias.DType() != F32 {
		return &DtypeError{Op: "conv1d", Message: "bias must be F32"}
	}
	return nil
}

func (op *Conv1DOp) lengthOut() uint32 {
	src := op.src.Shape()
	w := op.weight.Shape()
	lengthIn, kernelSize := src[2], w[2]
	return (lengthIn+2*op.padding-kernelSize)/op.stride + 1
}

func (op *Conv1DOp) ComputeView() (StorageView, error) {
	src := op.src.Shape()
	w := op.weight.Shape()
	outShape := Shape{src[0], w[0], op.lengthOut()}
	return StorageView{Shape: outShape, DType: op.src.DType(), Strides: StridesFrom(outShape)}, nil
}

func (op *Conv1DOp) KernelName() string { return "conv1d" }

func (op *Conv1DOp) KernelElement(dst *Tensor) gpucore.KernelElement { return gpucore.Scalar }

func (op *Conv1DOp) KernelKey(inplace bool, dst *Tensor) string {
	return op.KernelName() + "_" + op.KernelElement(dst).String()
}

func (op *Conv1DOp) SupportsInplace() bool { return false }

func (op *Conv1DOp) CalculateDispatch(dst *Tensor) gpucore.WorkgroupCount {
	return gpucore.Dispatch(dst.Shape().Numel(), 64)
}

func (op *Conv1DOp) StorageBindGroupLayout(inplace bool) gpucore.BindGroupLayoutKind {
	return gpucore.Ternary
}

func (op *Conv1DOp) WriteMetadata(arena *UniformArena, dst *Tensor, elem gpucore.KernelElement) (uint32, error) {
	w := newMetadataWriter()
	src := op.src.Shape()
	weight := op.weight.Shape()
	w.putU32(src[0])         // batch
	w.putU32(src[1])         // channels_in
	w.putU32(weight[0])      // channels_out
	w.putU32(src[2])         // length_in
	w.putU32(op.lengthOut()) // length_out
	w.putU32(weight[2])      // kernel_size
	w.putU32(op.stride)
	w.putU32(op.padding)
	w.putU32(boolToU32(op.bias != nil))
	w.putU32(0)
	w.putU32(0)
	w.putU32(0)
	return arena.Write(w.buf), nil
}
