package gpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Backend owns a single opened GPU device's resource lifecycle: the buffer
// pool, the cached pipeline/layout/shader resources, and the host/device
// copy path. It is the concrete type behind the root package's device
// façade; this package never negotiates an instance or adapter itself, since
// that step is platform-specific and lives below hal.Device.
type Backend struct {
	name   string
	device hal.Device
	queue  hal.Queue

	Pool      *Pool
	Resources *ResourcePools

	dummyMu  sync.Mutex
	dummyBuf *Buffer

	closer func()
}

// Open wraps an already-negotiated hal.Device/hal.Queue pair into a Backend.
func Open(name string, device hal.Device, queue hal.Queue) (*Backend, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	if queue == nil {
		return nil, fmt.Errorf("gpu: nil hal.Queue")
	}
	return &Backend{
		name:      name,
		device:    device,
		queue:     queue,
		Pool:      NewPool(device, 512),
		Resources: NewResourcePools(device, 512),
	}, nil
}

// Name identifies the backend, e.g. the adapter name it was opened against.
func (b *Backend) Name() string { return b.name }

// Device exposes the underlying hal.Device for callers (the kernel
// dispatcher) that need to build command encoders and bind groups directly.
func (b *Backend) Device() hal.Device { return b.device }

// Submit submits cmdBuffer on this backend's queue and blocks until the
// device signals completion or timeout elapses.
func (b *Backend) Submit(cmdBuffer hal.CommandBuffer, timeout time.Duration) error {
	return Submit(b.device, b.queue, cmdBuffer, timeout)
}

// SetCloser registers fn to run once, at the end of Close, after the pool's
// idle buffers and the dummy buffer are destroyed. A provider that negotiates
// its own device (rather than being handed one by a host application) uses
// this to destroy the instance and device it privately owns; a provider
// sharing a host-owned device leaves this unset, since Close must not
// destroy resources it doesn't own.
func (b *Backend) SetCloser(fn func()) { b.closer = fn }

// Close destroys the pool's idle buffers and the dummy binding buffer, then
// runs the closer registered with SetCloser, if any. The bind group
// layouts, pipeline layouts, shader modules and pipelines cached in
// Resources are not destroyed here, nor are buffers still held as tensor
// storage. The underlying hal.Device is not
// closed by this package directly; that remains whichever provider's
// responsibility SetCloser encodes.
func (b *Backend) Close() {
	b.Pool.Close()
	b.dummyMu.Lock()
	if b.dummyBuf != nil {
		b.dummyBuf.destroy()
		b.dummyBuf = nil
	}
	b.dummyMu.Unlock()
	if b.closer != nil {
		b.closer()
	}
}

// Upload allocates a storage buffer large enough for data and writes data
// into it. Empty data still gets a small buffer, since a zero-size buffer
// cannot be created, and no write is issued for it. The returned buffer
// carries Storage|CopyDst usage so it can be bound to a compute pipeline
// without a further copy.
func (b *Backend) Upload(data []byte) (*Buffer, error) {
	size := uint64(len(data))
	if size == 0 {
		size = 4
	}
	buf, err := b.Pool.Get(size, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst, "tensor-storage")
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		b.queue.WriteBuffer(buf.Raw(), 0, data)
	}
	return buf, nil
}

// UploadUniform allocates a Uniform|CopyDst buffer sized to len(data) and
// writes data into it. Used once per resolve to upload the packed
// dynamic-offset uniform arena every compiled dispatch reads its metadata
// record from.
func (b *Backend) UploadUniform(data []byte) (*Buffer, error) {
	buf, err := b.Pool.Get(uint64(len(data)), gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst, "uniform-arena")
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		b.queue.WriteBuffer(buf.Raw(), 0, data)
	}
	return buf, nil
}

// Dummy returns a small, lazily created storage buffer for binding a
// read-only slot a dispatch's kernel declares but does not use for this
// particular call (e.g. matmul's bias binding when no bias was supplied).
// The buffer is never read by such kernels; its contents are irrelevant.
func (b *Backend) Dummy() (*Buffer, error) {
	b.dummyMu.Lock()
	defer b.dummyMu.Unlock()
	if b.dummyBuf != nil {
		return b.dummyBuf, nil
	}
	buf, err := CreateBuffer(b.device, &BufferDescriptor{
		Label: "dummy-binding",
		Size:  4,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	b.dummyBuf = buf
	return buf, nil
}

// Readback copies buf's full contents back to the host through a mapped
// staging buffer, waiting on a fence for the copy to land before mapping.
func (b *Backend) Readback(buf *Buffer) ([]byte, error) {
	size := buf.Size()
	staging, err := b.Pool.Get(size, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst, "readback-staging")
	if err != nil {
		return nil, err
	}
	defer b.Pool.Put(staging)

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback-encoder"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(buf.Raw(), staging.Raw(), []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuffer, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer cmdBuffer.Destroy()

	fence, err := b.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpu: create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)

	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuffer}, fence, 1); err != nil {
		return nil, fmt.Errorf("gpu: submit readback commands: %w", err)
	}
	if ok, err := b.device.Wait(fence, 1, 5*time.Second); err != nil {
		return nil, fmt.Errorf("gpu: wait for readback fence: %w", err)
	} else if !ok {
		return nil, fmt.Errorf("gpu: readback fence timed out")
	}

	done := make(chan BufferMapAsyncStatus, 1)
	if err := staging.MapAsync(gputypes.MapModeRead, 0, size, func(status BufferMapAsyncStatus) {
		done <- status
	}); err != nil {
		return nil, fmt.Errorf("gpu: map staging buffer: %w", err)
	}
	for !staging.PollMapAsync() {
	}
	if status := <-done; status != BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("gpu: map staging buffer: status %d", status)
	}
	mapped, err := staging.GetMappedRange(0, size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(mapped))
	copy(out, mapped)
	if err := staging.Unmap(); err != nil {
		return nil, err
	}
	return out, nil
}
