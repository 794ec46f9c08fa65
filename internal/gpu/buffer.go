// Package gpu implements the compute-only WebGPU backend: pooled storage
// buffers, resource caches, the kernel resolver, and the command submission
// path. It is the GPU half of the device façade; everything here is
// reached only through [Backend].
package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	ErrBufferDestroyed     = errors.New("gpu: buffer has been destroyed")
	ErrInvalidBufferSize   = errors.New("gpu: invalid buffer size")
	ErrBufferAlreadyMapped = errors.New("gpu: buffer is already mapped or mapping is pending")
	ErrBufferNotMapped     = errors.New("gpu: buffer is not mapped")
	ErrBufferMapPending    = errors.New("gpu: buffer mapping is pending")
	ErrInvalidMapRange     = errors.New("gpu: map range out of bounds")
	ErrMapUsageMismatch    = errors.New("gpu: map mode does not match buffer usage flags")
	ErrCallbackNil         = errors.New("gpu: map callback is nil")
	ErrNilHALDevice        = errors.New("gpu: hal device is nil")
)

// BufferMapState tracks a buffer's mapping lifecycle.
type BufferMapState int

const (
	BufferMapStateUnmapped BufferMapState = iota
	BufferMapStatePending
	BufferMapStateMapped
)

// BufferMapAsyncStatus is the result passed to a MapAsync callback.
type BufferMapAsyncStatus int

const (
	BufferMapAsyncStatusSuccess BufferMapAsyncStatus = iota
	BufferMapAsyncStatusValidationError
	BufferMapAsyncStatusDestroyedBeforeCallback
	BufferMapAsyncStatusUnmappedBeforeCallback
)

// BufferDescriptor describes a storage buffer to create. Size and Usage are
// the only fields the tensor engine varies; MappedAtCreation is used only by
// upload staging buffers.
type BufferDescriptor struct {
	Label            string
	Size             uint64
	Usage            gputypes.BufferUsage
	MappedAtCreation bool
}

// Buffer is a single GPU storage allocation: a tensor's resolved storage
// when backed by the GPU device, or a staging buffer used to cross the
// host/device boundary. A Buffer is handed back to its pool with
// [Pool.Put] rather than destroyed; nothing happens when a tensor handle
// drops. destroy runs when the pool evicts an idle entry or closes, and
// when [Backend.Close] releases the dummy binding buffer.
type Buffer struct {
	mu sync.RWMutex

	halBuffer  hal.Buffer
	device     hal.Device
	descriptor BufferDescriptor

	mapState    BufferMapState
	mapOffset   uint64
	mapSize     uint64
	mappedData  []byte
	mapCallback func(BufferMapAsyncStatus)

	destroyed bool
}

// NewBuffer wraps an already-created hal.Buffer.
func NewBuffer(halBuffer hal.Buffer, device hal.Device, desc *BufferDescriptor) *Buffer {
	buf := &Buffer{
		halBuffer:  halBuffer,
		device:     device,
		descriptor: *desc,
		mapState:   BufferMapStateUnmapped,
	}
	if desc.MappedAtCreation {
		buf.mapState = BufferMapStateMapped
		buf.mapOffset = 0
		buf.mapSize = desc.Size
	}
	return buf
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.descriptor.Size }

// Usage returns the buffer's usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.descriptor.Usage }

// Raw returns the underlying hal buffer, or nil once destroyed.
func (b *Buffer) Raw() hal.Buffer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.destroyed {
		return nil
	}
	return b.halBuffer
}

// MapAsync initiates an async map operation, mirroring the WebGPU mapping
// protocol: call PollMapAsync repeatedly afterward until the callback
// fires.
func (b *Buffer) MapAsync(mode gputypes.MapMode, offset, size uint64, callback func(BufferMapAsyncStatus)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrBufferDestroyed
	}
	if b.mapState != BufferMapStateUnmapped {
		return ErrBufferAlreadyMapped
	}
	if callback == nil {
		return ErrCallbackNil
	}
	if mode == gputypes.MapModeRead && !b.descriptor.Usage.Contains(gputypes.BufferUsageMapRead) {
		return fmt.Errorf("%w: buffer does not have MapRead usage", ErrMapUsageMismatch)
	}
	if mode == gputypes.MapModeWrite && !b.descriptor.Usage.Contains(gputypes.BufferUsageMapWrite) {
		return fmt.Errorf("%w: buffer does not have MapWrite usage", ErrMapUsageMismatch)
	}
	if offset+size > b.descriptor.Size {
		return fmt.Errorf("%w: offset %d + size %d > buffer size %d", ErrInvalidMapRange, offset, size, b.descriptor.Size)
	}

	b.mapState = BufferMapStatePending
	b.mapOffset = offset
	b.mapSize = size
	b.mapCallback = callback
	return nil
}

// PollMapAsync advances a pending map to completion. Returns true once the
// map is resolved (successfully or not).
func (b *Buffer) PollMapAsync() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapState != BufferMapStatePending {
		return b.mapState == BufferMapStateMapped || b.mapState == BufferMapStateUnmapped
	}
	if b.destroyed {
		cb := b.mapCallback
		b.mapCallback = nil
		b.mapState = BufferMapStateUnmapped
		b.mu.Unlock()
		if cb != nil {
			cb(BufferMapAsyncStatusDestroyedBeforeCallback)
		}
		b.mu.Lock()
		return true
	}

	b.mappedData = make([]byte, b.mapSize)
	b.mapState = BufferMapStateMapped
	cb := b.mapCallback
	b.mapCallback = nil
	b.mu.Unlock()
	if cb != nil {
		cb(BufferMapAsyncStatusSuccess)
	}
	b.mu.Lock()
	return true
}

// GetMappedRange returns a view into the buffer's mapped bytes.
func (b *Buffer) GetMappedRange(offset, size uint64) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.destroyed {
		return nil, ErrBufferDestroyed
	}
	if b.mapState == BufferMapStatePending {
		return nil, ErrBufferMapPending
	}
	if b.mapState != BufferMapStateMapped {
		return nil, ErrBufferNotMapped
	}
	if offset < b.mapOffset || offset+size > b.mapOffset+b.mapSize {
		return nil, ErrInvalidMapRange
	}
	rel := offset - b.mapOffset
	return b.mappedData[rel : rel+size], nil
}

// Unmap ends the current mapping.
func (b *Buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrBufferDestroyed
	}
	b.mapState = BufferMapStateUnmapped
	b.mappedData = nil
	b.mapCallback = nil
	return nil
}

// destroy releases the underlying hal buffer. The pool calls it when it
// evicts an idle entry or closes, and Backend.Close calls it for the dummy
// binding buffer.
func (b *Buffer) destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	device, halBuf := b.device, b.halBuffer
	b.halBuffer = nil
	b.mu.Unlock()
	if device != nil && halBuf != nil {
		device.DestroyBuffer(halBuf)
	}
}

// CreateBuffer allocates a new storage buffer on device, 4-byte aligning
// its size the way WebGPU's copy alignment requires.
func CreateBuffer(device hal.Device, desc *BufferDescriptor) (*Buffer, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: size is 0", ErrInvalidBufferSize)
	}

	const copyBufferAlignment uint64 = 4
	alignedSize := (desc.Size + copyBufferAlignment - 1) &^ (copyBufferAlignment - 1)

	halDesc := &hal.BufferDescriptor{
		Label:            desc.Label,
		Size:             alignedSize,
		Usage:            desc.Usage,
		MappedAtCreation: desc.MappedAtCreation,
	}
	halBuffer, err := device.CreateBuffer(halDesc)
	if err != nil {
		return nil, fmt.Errorf("buffer creation failed: %w", err)
	}

	resolved := *desc
	resolved.Size = alignedSize
	return NewBuffer(halBuffer, device, &resolved), nil
}

// CreateStagingBuffer creates an upload (MapWrite|CopySrc) or readback
// (MapRead|CopyDst) staging buffer used to cross the host/device boundary.
func CreateStagingBuffer(device hal.Device, size uint64, forUpload bool, label string) (*Buffer, error) {
	var usage gputypes.BufferUsage
	if forUpload {
		usage = gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc
	} else {
		usage = gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	}
	return CreateBuffer(device, &BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage,
		MappedAtCreation: forUpload,
	})
}
