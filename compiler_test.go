package ratchet

import (
	"testing"

	"github.com/philpax/ratchet/cpubuf"
	internalgpu "github.com/philpax/ratchet/internal/gpu"
)

func newFakeGPUDevice(t *testing.T) Device {
	t.Helper()
	backend, err := internalgpu.Open("fake", &fakeDevice{}, &fakeQueue{})
	if err != nil {
		t.Fatalf("internalgpu.Open: %v", err)
	}
	return Device{kind: DeviceGPU, backend: backend}
}

func gpuTensor(t *testing.T, device Device, data []float32, shape Shape) Tensor {
	t.Helper()
	buf, err := cpubuf.FromSlice(data, len(data))
	if err != nil {
		t.Fatalf("cpubuf.FromSlice: %v", err)
	}
	tensor, err := FromData(buf, shape, F32, device)
	if err != nil {
		t.Fatalf("FromData: %v", err)
	}
	return tensor
}

func TestCompileSimpleBinaryGraph(t *testing.T) {
	device := newFakeGPUDevice(t)
	a := gpuTensor(t, device, []float32{1, 2, 3, 4}, Shape{2, 2})
	b := gpuTensor(t, device, []float32{5, 6, 7, 8}, Shape{2, 2})

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	order, err := Schedule([]Tensor{sum})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	plan := planAllocation(order, []Tensor{sum})

	records, err := compile(device.backend, order, plan)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if !sum.IsResolved() {
		t.Fatalf("sum should have storage assigned after compile")
	}
	storage, err := sum.storageOrErr()
	if err != nil {
		t.Fatalf("storageOrErr: %v", err)
	}
	if !storage.IsGPU() {
		t.Fatalf("sum storage should be GPU-backed")
	}
}

func TestCompileViewOpAliasesSourceStorage(t *testing.T) {
	device := newFakeGPUDevice(t)
	a := gpuTensor(t, device, []float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})

	reshaped, err := a.Reshape(Shape{3, 2})
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}

	order, err := Schedule([]Tensor{reshaped})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	plan := planAllocation(order, []Tensor{reshaped})

	records, err := compile(device.backend, order, plan)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("len(records) = %d, want 0 (reshape is a ViewOp, no dispatch)", len(records))
	}

	reshapedStorage, err := reshaped.storageOrErr()
	if err != nil {
		t.Fatalf("reshaped storageOrErr: %v", err)
	}
	aStorage, err := a.storageOrErr()
	if err != nil {
		t.Fatalf("a storageOrErr: %v", err)
	}
	if reshapedStorage.gpu != aStorage.gpu {
		t.Fatalf("reshape should alias its source's GPU buffer, got distinct buffers")
	}
}

func TestCompileMatmulWithoutBiasPadsDummyBuffer(t *testing.T) {
	device := newFakeGPUDevice(t)
	lhs := gpuTensor(t, device, []float32{1, 2, 3, 4}, Shape{2, 2})
	rhs := gpuTensor(t, device, []float32{1, 0, 0, 1}, Shape{2, 2})

	out, err := lhs.Matmul(rhs, false, false)
	if err != nil {
		t.Fatalf("Matmul: %v", err)
	}

	order, err := Schedule([]Tensor{out})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	plan := planAllocation(order, []Tensor{out})

	records, err := compile(device.backend, order, plan)
	if err != nil {
		t.Fatalf("compile (bias-less matmul): %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
}

func TestCompileChainEmitsOneRecordPerNode(t *testing.T) {
	device := newFakeGPUDevice(t)
	a := gpuTensor(t, device, []float32{1, 2, 3, 4}, Shape{2, 2})
	b := gpuTensor(t, device, []float32{1, 1, 1, 1}, Shape{2, 2})

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	doubled, err := sum.Mul(sum)
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}

	order, err := Schedule([]Tensor{doubled})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	plan := planAllocation(order, []Tensor{doubled})

	records, err := compile(device.backend, order, plan)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
}
