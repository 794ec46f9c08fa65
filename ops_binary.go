package ratchet

import (
	"fmt"

	"github.com/philpax/ratchet/gpucore"
)

// binaryKind distinguishes the four elementwise binary operations; they
// share everything but their kernel name and WGSL arithmetic.
type binaryKind int

const (
	binaryAdd binaryKind = iota
	binarySub
	binaryMul
	binaryDiv
)

func (k binaryKind) String() string {
	switch k {
	case binaryAdd:
		return "add"
	case binarySub:
		return "sub"
	case binaryMul:
		return "mul"
	case binaryDiv:
		return "div"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// BinaryOp is the lazy op behind Tensor.Add/Sub/Mul/Div: elementwise
// dst = lhs <op> rhs, broadcasting lhs and rhs to a common shape. Supports
// inplace folding into lhs or rhs when their shape exactly matches dst's
// (no broadcast).
type BinaryOp struct {
	kind     binaryKind
	lhs, rhs *Tensor
}

func newBinary(kind binaryKind, lhs, rhs Tensor) (Tensor, error) {
	if lhs.Device().Kind() != rhs.Device().Kind() {
		return Tensor{}, &DeviceError{Message: "binary op operands live on different devices"}
	}
	op := &BinaryOp{kind: kind, lhs: &lhs, rhs: &rhs}
	return buildOp(op, lhs.Device())
}

// Add returns lhs + rhs, broadcasting per standard NumPy rules.
func (t Tensor) Add(rhs Tensor) (Tensor, error) { return newBinary(binaryAdd, t, rhs) }

// Sub returns lhs - rhs, broadcasting per standard NumPy rules.
func (t Tensor) Sub(rhs Tensor) (Tensor, error) { return newBinary(binarySub, t, rhs) }

// Mul returns lhs * rhs, broadcasting per standard NumPy rules.
func (t Tensor) Mul(rhs Tensor) (Tensor, error) { return newBinary(binaryMul, t, rhs) }

// Div returns lhs / rhs, broadcasting per standard NumPy rules.
func (t Tensor) Div(rhs Tensor) (Tensor, error) { return newBinary(binaryDiv, t, rhs) }

func (op *BinaryOp) Srcs() []*Tensor { return []*Tensor{op.lhs, op.rhs} }

func (op *BinaryOp) CheckShapes() error {
	out, err := broadcastShapes(op.lhs.Shape(), op.rhs.Shape())
	if err != nil {
		return &ShapeError{Op: "binary_" + op.kind.String(), Message: err.Error()}
	}
	if len(out) > 4 {
		return &ShapeError{Op: "binary_" + op.kind.String(), Message: "broadcast result exceeds rank 4"}
	}
	return nil
}

func (op *BinaryOp) CheckDtypes() error {
	if op.lhs.DType() != op.rhs.DType() {
		return &DtypeError{Op: "binary_" + op.kind.String(), Message: "operands must share a dtype"}
	}
	return nil
}

func (op *BinaryOp) ComputeView() (StorageView, error) {
	out, err := broadcastShapes(op.lhs.Shape(), op.rhs.Shape())
	if err != nil {
		return StorageView{}, &ShapeError{Op: "binary_" + op.kind.String(), Message: err.Error()}
	}
	return StorageView{Shape: out, DType: op.lhs.DType(), Strides: StridesFrom(out)}, nil
}

func (op *BinaryOp) KernelName() string { return "binary_" + op.kind.String() }

// isBroadcast reports whether either operand's shape differs from dst's,
// i.e. the dispatch must unravel dst coordinates per-element rather than
// walking both operands contiguously.
func (op *BinaryOp) isBroadcast(dst *Tensor) bool {
	out := dst.Shape()
	return !op.lhs.Shape().Equal(out) || !op.rhs.Shape().Equal(out)
}

func (op *BinaryOp) KernelElement(dst *Tensor) gpucore.KernelElement {
	if op.isBroadcast(dst) {
		return gpucore.Scalar
	}
	if dst.Shape().Numel()%4 == 0 {
		return gpucore.Vec4
	}
	return gpucore.Scalar
}

func (op *BinaryOp) KernelKey(inplace bool, dst *Tensor) string {
	return op.KernelName() + "_" + op.KernelElement(dst).String()
}

// SupportsInplace reports whether the planner may fold dst into lhs or rhs.
// Broadcasting ops never qualify: the aliased source would need to be as
// large as the (larger) output.
func (op *BinaryOp) SupportsInplace() bool { return true }

func (op *BinaryOp) CalculateDispatch(dst *Tensor) gpucore.WorkgroupCount {
	elem := op.KernelElement(dst)
	n := dst.Shape().Numel() / elem.Width()
	return gpucore.Dispatch(n, 64)
}

func (op *BinaryOp) StorageBindGroupLayout(inplace bool) gpucore.BindGroupLayoutKind {
	if inplace {
		return gpucore.BinaryInplace
	}
	return gpucore.Binary
}

func (op *BinaryOp) WriteMetadata(arena *UniformArena, dst *Tensor, elem gpucore.KernelElement) (uint32, error) {
	w := newMetadataWriter()
	outShape := dst.Shape()
	switch elem {
	case gpucore.Vec4:
		w.putU32(outShape.Numel() / 4)
		w.putU32(0)
		w.putU32(0)
		w.putU32(0)
	default:
		w.putU32Vec4(shapeVec4(outShape, 1))
		w.putU32Vec4(stridesVec4(broadcastStridesFor(op.lhs.View(), outShape), 0))
		w.putU32Vec4(stridesVec4(broadcastStridesFor(op.rhs.View(), outShape), 0))
		w.putU32(outShape.Numel())
		w.putU32(0)
		w.putU32(0)
		w.putU32(0)
	}
	return arena.Write(w.buf), nil
}

// broadcastShapes computes the NumPy-style broadcast of a and b, aligning
// them on their trailing dimensions.
func broadcastShapes(a, b Shape) (Shape, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	pa := a.LeftPadTo(1, n)
	pb := b.LeftPadTo(1, n)
	out := make(Shape, n)
	for i := range out {
		switch {
		case pa[i] == pb[i]:
			out[i] = pa[i]
		case pa[i] == 1:
			out[i] = pb[i]
		case pb[i] == 1:
			out[i] = pa[i]
		default:
			return nil, fmt.Errorf("cannot broadcast shapes %s and %s", a, b)
		}
	}
	return out, nil
}

// broadcastStridesFor computes view's strides re-expressed against
// outShape's rank, with zeroed strides on dimensions view broadcasts
// across (size 1 where outShape is larger).
func broadcastStridesFor(view StorageView, outShape Shape) Strides {
	padded := view.Strides.LeftPadTo(0, len(outShape))
	paddedShape := view.Shape.LeftPadTo(1, len(outShape))
	out := make(Strides, len(outShape))
	for i := range out {
		if paddedShape[i] == 1 && outShape[i] != 1 {
			out[i] = 0
		} else {
			out[i] = padded[i]
		}
	}
	return out
}
