// Package gpucore holds the small value types shared between the operation
// protocol and the GPU backend: the kernel vectorization width, workgroup
// dispatch counts, and the closed set of storage bind-group layout shapes.
// None of these types depend on a live GPU resource; they are pure data so
// that shape inference and dispatch sizing can be unit tested without a
// device.
package gpucore

import "fmt"

// MaxWorkgroupsPerDim is the largest workgroup count permitted in a single
// dispatch dimension by the WebGPU spec. Dispatches whose X count would
// exceed this are wrapped into a second dimension.
const MaxWorkgroupsPerDim = 65535

// KernelElement is the per-thread vectorization width a kernel variant
// operates on. Operations pick the widest element that evenly divides the
// destination's element count.
type KernelElement int

const (
	Scalar KernelElement = iota
	Vec2
	Vec4
)

// Width returns the number of scalar lanes packed per thread.
func (k KernelElement) Width() uint32 {
	switch k {
	case Vec4:
		return 4
	case Vec2:
		return 2
	default:
		return 1
	}
}

// String returns the kernel-key fragment used to compose kernel names,
// e.g. "binary_add_vec4".
func (k KernelElement) String() string {
	switch k {
	case Vec4:
		return "vec4"
	case Vec2:
		return "vec2"
	case Scalar:
		return "scalar"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// KernelElementFor chooses the widest vectorization that evenly divides
// numel, preferring Vec4 over Vec2 over Scalar.
func KernelElementFor(numel uint32) KernelElement {
	switch {
	case numel%4 == 0:
		return Vec4
	case numel%2 == 0:
		return Vec2
	default:
		return Scalar
	}
}

// WorkgroupCount is the (x, y, z) dispatch size passed to
// dispatch_workgroups. z is always 1 in this engine; only 1-D and
// 2-D-wrapped dispatches occur.
type WorkgroupCount struct {
	X, Y, Z uint32
}

// DivCeil computes ceil(a / b) for unsigned dispatch sizing.
func DivCeil(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Dispatch computes the workgroup count for numel elements processed
// workgroupSize-per-group, wrapping into a second dimension when the
// naive X count would exceed MaxWorkgroupsPerDim.
func Dispatch(numel uint32, workgroupSize uint32) WorkgroupCount {
	groups := DivCeil(numel, workgroupSize)
	if groups <= MaxWorkgroupsPerDim {
		return WorkgroupCount{X: groups, Y: 1, Z: 1}
	}
	y := DivCeil(groups, MaxWorkgroupsPerDim)
	return WorkgroupCount{X: MaxWorkgroupsPerDim, Y: y, Z: 1}
}

// BindGroupLayoutKind names one of the closed set of storage bind-group
// shapes an operation can declare. Each kind fixes how many storage
// buffers are bound read-only vs read-write, plus one dynamic uniform
// buffer binding common to all kinds.
type BindGroupLayoutKind int

const (
	// Unary: one read-only source, one read-write destination.
	Unary BindGroupLayoutKind = iota
	// UnaryInplace: a single buffer bound read-write, used as both source
	// and destination.
	UnaryInplace
	// Binary: two read-only sources, one read-write destination.
	Binary
	// BinaryInplace: one read-only source plus one read-write buffer that
	// is simultaneously a source and the destination.
	BinaryInplace
	// Ternary: three read-only sources, one read-write destination.
	Ternary
)

// Counts returns how many read-only and read-write storage buffers this
// layout kind declares, not counting the trailing dynamic uniform binding
// every kind also has.
func (k BindGroupLayoutKind) Counts() (readOnly, readWrite int) {
	switch k {
	case Unary:
		return 1, 1
	case UnaryInplace:
		return 0, 1
	case Binary:
		return 2, 1
	case BinaryInplace:
		return 1, 1
	case Ternary:
		return 3, 1
	default:
		return 0, 0
	}
}

func (k BindGroupLayoutKind) String() string {
	switch k {
	case Unary:
		return "unary"
	case UnaryInplace:
		return "unary_inplace"
	case Binary:
		return "binary"
	case BinaryInplace:
		return "binary_inplace"
	case Ternary:
		return "ternary"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}
