package ratchet

import (
	"encoding/binary"
	"math"
)

// AllClose reports whether t and other are elementwise equal within
// atol + rtol*|other|, matching numpy.allclose's tolerance formula. Both
// tensors must be resolved and share a shape and dtype; f16 operands are
// rejected since this engine has no host-side f16 decoder.
func (t Tensor) AllClose(other Tensor, atol, rtol float64) (bool, error) {
	if !t.IsResolved() || !other.IsResolved() {
		return false, ErrNotResolved
	}
	if !t.Shape().Equal(other.Shape()) {
		return false, &ShapeError{Op: "all_close", Message: "operands must share a shape"}
	}
	if t.DType() != other.DType() {
		return false, &DtypeError{Op: "all_close", Message: "operands must share a dtype"}
	}
	if t.DType() == F16 {
		return false, &DtypeError{Op: "all_close", Message: "all_close does not support f16 operands"}
	}

	a, err := t.To(CPU())
	if err != nil {
		return false, err
	}
	b, err := other.To(CPU())
	if err != nil {
		return false, err
	}
	aStorage, err := a.storageOrErr()
	if err != nil {
		return false, err
	}
	bStorage, err := b.storageOrErr()
	if err != nil {
		return false, err
	}

	av := decodeFloats(t.DType(), aStorage.cpu.Bytes())
	bv := decodeFloats(t.DType(), bStorage.cpu.Bytes())
	if len(av) != len(bv) {
		return false, &ShapeError{Op: "all_close", Message: "operands have different element counts"}
	}
	for i := range av {
		if math.Abs(av[i]-bv[i]) > atol+rtol*math.Abs(bv[i]) {
			return false, nil
		}
	}
	return true, nil
}

// decodeFloats reinterprets raw little-endian element bytes as float64,
// per dtype. Callers have already rejected F16.
func decodeFloats(dtype DType, data []byte) []float64 {
	stride := int(dtype.SizeOf())
	n := len(data) / stride
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*stride : i*stride+stride])
		switch dtype {
		case F32:
			out[i] = float64(math.Float32frombits(bits))
		case I32:
			out[i] = float64(int32(bits))
		case U32:
			out[i] = float64(bits)
		}
	}
	return out
}
