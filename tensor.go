package ratchet

import (
	"fmt"
	"sync"

	"github.com/philpax/ratchet/cpubuf"
)

// StorageView describes a tensor's shape, element type, and strides.
// Strides diverge from the canonical row-major value produced by
// StridesFrom when the tensor is a permuted view.
type StorageView struct {
	Shape   Shape
	DType   DType
	Strides Strides
}

// Contiguous reports whether Strides matches the canonical row-major
// strides for Shape.
func (v StorageView) Contiguous() bool {
	return v.Strides.Clone().equalTo(StridesFrom(v.Shape))
}

func (s Strides) equalTo(other Strides) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Tensor is a handle to a node in the lazy computation graph: an immutable
// identity (id, op, view, device) plus a write-once storage slot. Tensor
// values are cheap to copy; every copy shares the same underlying node.
type Tensor struct {
	node *tensorNode
}

type tensorNode struct {
	id     TensorID
	op     Op // nil for Const
	view   StorageView
	device Device

	mu      sync.RWMutex
	storage *Storage
}

// ID returns this tensor's process-unique identity.
func (t Tensor) ID() TensorID { return t.node.id }

// View returns the tensor's shape/dtype/strides.
func (t Tensor) View() StorageView { return t.node.view }

// Shape returns the tensor's shape.
func (t Tensor) Shape() Shape { return t.node.view.Shape }

// DType returns the tensor's element type.
func (t Tensor) DType() DType { return t.node.view.DType }

// Device returns the device this tensor's storage lives (or will live) on.
func (t Tensor) Device() Device { return t.node.device }

// Op returns the lazy operation that produces this tensor, or nil for a
// Const tensor.
func (t Tensor) Op() Op { return t.node.op }

// IsConst reports whether this tensor has no sources and its storage was
// populated at construction.
func (t Tensor) IsConst() bool { return t.node.op == nil }

// IsResolved reports whether this tensor's storage slot has been populated.
func (t Tensor) IsResolved() bool {
	t.node.mu.RLock()
	defer t.node.mu.RUnlock()
	return t.node.storage != nil
}

// storageOrErr returns the populated storage slot, or ErrNotResolved.
func (t Tensor) storageOrErr() (Storage, error) {
	t.node.mu.RLock()
	defer t.node.mu.RUnlock()
	if t.node.storage == nil {
		return Storage{}, ErrNotResolved
	}
	return *t.node.storage, nil
}

// setStorage populates the write-once storage slot. It is a contract
// violation to call this twice; callers (Const construction, the planner,
// the compiler) must only do so once per node.
func (t Tensor) setStorage(s Storage) {
	t.node.mu.Lock()
	defer t.node.mu.Unlock()
	if t.node.storage != nil {
		panic(fmt.Sprintf("ratchet: storage already set for node %d", t.node.id))
	}
	t.node.storage = &s
}

// newTensor allocates a fresh node with no storage; used for every
// non-Const builder method after its op's view has been computed.
func newTensor(op Op, view StorageView, device Device) Tensor {
	return Tensor{node: &tensorNode{
		id:     nextTensorID(),
		op:     op,
		view:   view,
		device: device,
	}}
}

// buildOp runs the operation protocol's construction-time checks and
// returns the resulting tensor, or the first error encountered.
func buildOp(op Op, device Device) (Tensor, error) {
	if err := op.CheckShapes(); err != nil {
		return Tensor{}, err
	}
	if err := op.CheckDtypes(); err != nil {
		return Tensor{}, err
	}
	view, err := op.ComputeView()
	if err != nil {
		return Tensor{}, err
	}
	return newTensor(op, view, device), nil
}

// FromData constructs a Const tensor from host bytes, copying them onto
// device if device is a GPU. The byte length must equal
// shape.Numel()*dtype.SizeOf().
func FromData(buf cpubuf.Buffer, shape Shape, dtype DType, device Device) (Tensor, error) {
	want := int(shape.Numel()) * int(dtype.SizeOf())
	if buf.NBytes() != want {
		return Tensor{}, &ShapeError{Op: "from_data", Message: "buffer length does not match shape.Numel()*dtype.SizeOf()"}
	}

	view := StorageView{Shape: shape.Clone(), DType: dtype, Strides: StridesFrom(shape)}
	t := Tensor{node: &tensorNode{
		id:     nextTensorID(),
		op:     nil,
		view:   view,
		device: device,
	}}

	switch device.Kind() {
	case DeviceCPU:
		t.setStorage(cpuStorage(buf))
	case DeviceGPU:
		gpuBuf, err := device.uploadToGPU(buf.Bytes())
		if err != nil {
			return Tensor{}, err
		}
		t.setStorage(gpuStorage(gpuBuf))
	default:
		return Tensor{}, &DeviceError{Message: "unknown device kind"}
	}
	return t, nil
}

// DeepClone allocates fresh storage and copies this tensor's bytes into it,
// returning a new Const tensor on the same device. Unresolved tensors are
// rejected: there is nothing to copy yet.
func (t Tensor) DeepClone() (Tensor, error) {
	if !t.IsResolved() {
		return Tensor{}, ErrNotResolved
	}
	storage, err := t.storageOrErr()
	if err != nil {
		return Tensor{}, err
	}

	view := t.node.view
	out := Tensor{node: &tensorNode{
		id:     nextTensorID(),
		op:     nil,
		view:   view,
		device: t.node.device,
	}}

	switch {
	case storage.IsGPU():
		bytes, err := t.node.device.readbackFromGPU(storage.gpu)
		if err != nil {
			return Tensor{}, err
		}
		gpuBuf, err := t.node.device.uploadToGPU(bytes)
		if err != nil {
			return Tensor{}, err
		}
		out.setStorage(gpuStorage(gpuBuf))
	default:
		out.setStorage(cpuStorage(storage.cpu.DeepClone()))
	}
	return out, nil
}
