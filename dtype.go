package ratchet

import "fmt"

// DType enumerates the element types the engine moves between host and
// device. Every dtype carries a fixed byte size used to compute buffer
// sizes and alignment.
type DType int

const (
	F32 DType = iota
	I32
	U32
	F16
)

// SizeOf returns the element's size in bytes.
func (d DType) SizeOf() uint32 {
	switch d {
	case F32, I32, U32:
		return 4
	case F16:
		return 2
	default:
		panic(fmt.Sprintf("ratchet: unknown dtype %d", int(d)))
	}
}

// AlignOf returns the minimum buffer alignment required for this dtype,
// which for every dtype in this engine equals its size.
func (d DType) AlignOf() uint32 {
	return d.SizeOf()
}

func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case I32:
		return "i32"
	case U32:
		return "u32"
	case F16:
		return "f16"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}
