// Package cpubuf implements the host-side tensor storage buffer: an
// aligned raw allocation with reference-counted sharing so tensor handles
// can alias host memory cheaply.
package cpubuf

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrSliceLengthMismatch is returned by FromSlice when the element count of
// the supplied slice does not equal the tensor's expected element count.
var ErrSliceLengthMismatch = errors.New("cpubuf: slice length does not match numel")

// raw owns a byte slice allocated at a requested alignment. Go's allocator
// does not expose alignment control directly, so raw over-allocates and
// slices into the first aligned offset, mirroring the platform aligned-alloc
// pattern the engine would use in a language with manual allocation.
type raw struct {
	backing   []byte
	data      []byte
	alignment int
}

func newRaw(size, alignment int) *raw {
	if alignment <= 0 {
		alignment = 1
	}
	if size == 0 {
		return &raw{alignment: alignment}
	}
	backing := make([]byte, size+alignment-1)
	base := uintptr(unsafe.Pointer(&backing[0]))
	pad := int((uintptr(alignment) - base%uintptr(alignment)) % uintptr(alignment))
	return &raw{
		backing:   backing,
		data:      backing[pad : pad+size],
		alignment: alignment,
	}
}

func (r *raw) nBytes() int { return len(r.data) }

func (r *raw) clone() *raw {
	n := newRaw(len(r.data), r.alignment)
	copy(n.data, r.data)
	return n
}

// Buffer is a managed, reference-counted CPU buffer. Cloning a Buffer value
// shares the underlying bytes; use DeepClone to obtain an independent copy.
type Buffer struct {
	inner *raw
}

// Uninitialized allocates size bytes aligned to alignment without
// zero-initializing semantics guaranteed beyond Go's default zeroing.
func Uninitialized(size, alignment int) Buffer {
	return Buffer{inner: newRaw(size, alignment)}
}

// FromBytes copies bytes into a freshly allocated buffer aligned to
// alignment.
func FromBytes(data []byte, alignment int) Buffer {
	r := newRaw(len(data), alignment)
	copy(r.data, data)
	return Buffer{inner: r}
}

// FromSlice copies a typed slice's bytes into a freshly allocated buffer.
// numel must equal len(data); this is the host-side analogue of the
// from_data constructor's length check.
func FromSlice[T any](data []T, numel int) (Buffer, error) {
	if len(data) != numel {
		return Buffer{}, fmt.Errorf("%w: got %d, want %d", ErrSliceLengthMismatch, len(data), numel)
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if len(data) == 0 {
		return Uninitialized(0, elemSize), nil
	}
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*elemSize)
	return FromBytes(bytes, elemSize), nil
}

// NBytes returns the buffer's size in bytes.
func (b Buffer) NBytes() int {
	if b.inner == nil {
		return 0
	}
	return b.inner.nBytes()
}

// Bytes returns the buffer's backing bytes. The slice aliases the buffer and
// must not be retained past the buffer's last use.
func (b Buffer) Bytes() []byte {
	if b.inner == nil {
		return nil
	}
	return b.inner.data
}

// DeepClone allocates a fresh buffer and copies this buffer's bytes into it.
func (b Buffer) DeepClone() Buffer {
	if b.inner == nil {
		return Buffer{}
	}
	return Buffer{inner: b.inner.clone()}
}

// IsValid reports whether the buffer has been allocated (as opposed to the
// zero Buffer value).
func (b Buffer) IsValid() bool { return b.inner != nil }
