package ratchet

import (
	"errors"
	"sync"

	"github.com/philpax/ratchet/cpubuf"
	"github.com/philpax/ratchet/internal/gpu"
)

// DeviceKind distinguishes where a tensor's storage lives.
type DeviceKind int

const (
	DeviceCPU DeviceKind = iota
	DeviceGPU
)

// String returns the kind's lowercase name.
func (k DeviceKind) String() string {
	switch k {
	case DeviceCPU:
		return "cpu"
	case DeviceGPU:
		return "gpu"
	default:
		return "unknown"
	}
}

// GPUProvider opens a GPU backend. A platform package registers one at
// init time via RegisterGPUProvider; this package never negotiates an
// instance or adapter itself, since that step is platform-specific.
type GPUProvider interface {
	// OpenBackend opens a device, honoring adapterPreference (e.g.
	// "discrete", "integrated", or "" for the platform default).
	OpenBackend(adapterPreference string) (*gpu.Backend, error)
}

var (
	gpuProviderMu sync.RWMutex
	gpuProvider   GPUProvider
)

// RegisterGPUProvider installs the process-wide GPU provider. A later call
// replaces the previous registration; it does not affect Devices already
// opened against it.
func RegisterGPUProvider(p GPUProvider) error {
	if p == nil {
		return errors.New("ratchet: provider must not be nil")
	}
	gpuProviderMu.Lock()
	defer gpuProviderMu.Unlock()
	gpuProvider = p
	return nil
}

func registeredGPUProvider() GPUProvider {
	gpuProviderMu.RLock()
	defer gpuProviderMu.RUnlock()
	return gpuProvider
}

// DeviceRequest describes the device RequestDevice should open.
type DeviceRequest struct {
	Kind DeviceKind
	// AdapterPreference is passed through to the registered GPUProvider.
	// CPU requests ignore it.
	AdapterPreference string
}

// Device is a handle to where a tensor's storage lives. The zero value is
// the CPU device, so a Device need not always be constructed through
// RequestDevice.
type Device struct {
	kind    DeviceKind
	backend *gpu.Backend
}

// CPU returns the CPU device.
func CPU() Device { return Device{kind: DeviceCPU} }

// RequestDevice opens the device described by req. A GPU request requires a
// GPUProvider to have been registered with RegisterGPUProvider.
func RequestDevice(req DeviceRequest) (Device, error) {
	switch req.Kind {
	case DeviceCPU:
		return Device{kind: DeviceCPU}, nil
	case DeviceGPU:
		provider := registeredGPUProvider()
		if provider == nil {
			return Device{}, &DeviceError{Message: "no GPU provider registered"}
		}
		backend, err := provider.OpenBackend(req.AdapterPreference)
		if err != nil {
			return Device{}, &DeviceError{Message: "failed to open GPU backend", Cause: err}
		}
		return Device{kind: DeviceGPU, backend: backend}, nil
	default:
		return Device{}, &DeviceError{Message: "unknown device kind"}
	}
}

// Kind reports whether this is the CPU or GPU device.
func (d Device) Kind() DeviceKind { return d.kind }

// Name identifies the device, e.g. the GPU adapter name. The CPU device is
// always named "cpu".
func (d Device) Name() string {
	if d.kind == DeviceGPU && d.backend != nil {
		return d.backend.Name()
	}
	return "cpu"
}

// Close releases GPU resources this device owns. It is a no-op for the CPU
// device.
func (d Device) Close() {
	if d.backend != nil {
		d.backend.Close()
	}
}

func (d Device) equal(other Device) bool {
	return d.kind == other.kind && d.backend == other.backend
}

func (d Device) uploadToGPU(data []byte) (*gpu.Buffer, error) {
	if d.backend == nil {
		return nil, &DeviceError{Message: "device has no GPU backend"}
	}
	buf, err := d.backend.Upload(data)
	if err != nil {
		return nil, &TransferError{Message: "upload to GPU failed", Cause: err}
	}
	return buf, nil
}

func (d Device) readbackFromGPU(buf *gpu.Buffer) ([]byte, error) {
	if d.backend == nil {
		return nil, &DeviceError{Message: "device has no GPU backend"}
	}
	data, err := d.backend.Readback(buf)
	if err != nil {
		return nil, &TransferError{Message: "readback from GPU failed", Cause: err}
	}
	return data, nil
}

// To transfers t onto device. Same-device transfer is the identity. An
// unresolved tensor is returned unchanged: there is nothing to copy yet,
// and the caller can transfer the result once it resolves. A resolved
// tensor is staged through host bytes in whichever direction crosses the
// CPU/GPU boundary.
func (t Tensor) To(device Device) (Tensor, error) {
	if t.Device().equal(device) {
		return t, nil
	}
	if !t.IsResolved() {
		return t, nil
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
		device: device,
	}}

	switch {
	case storage.IsGPU() && device.Kind() == DeviceCPU:
		bytes, err := t.node.device.readbackFromGPU(storage.gpu)
		if err != nil {
			return Tensor{}, err
		}
		out.setStorage(cpuStorage(cpubuf.FromBytes(bytes, int(view.DType.AlignOf()))))
	case !storage.IsGPU() && device.Kind() == DeviceGPU:
		gpuBuf, err := device.uploadToGPU(storage.cpu.Bytes())
		if err != nil {
			return Tensor{}, err
		}
		out.setStorage(gpuStorage(gpuBuf))
	default:
		return Tensor{}, &TransferError{Message: "unsupported device transfer: " + t.Device().Kind().String() + " -> " + device.Kind().String()}
	}
	return out, nil
}
