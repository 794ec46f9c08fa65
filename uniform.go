package ratchet

import (
	"encoding/binary"
	"math"
)

// uniformAlignment is the WebGPU minimum dynamic uniform buffer offset
// alignment; every record is padded up to a multiple of it so a single
// dynamic offset can select any record.
const uniformAlignment = 256

// UniformArena accumulates per-dispatch uniform metadata records during
// compilation. Each op writes one record via WriteMetadata and receives back
// the byte offset the executable later binds with a dynamic uniform offset.
// The arena is uploaded to the GPU as a single buffer once compilation of
// the whole execution sequence completes.
type UniformArena struct {
	buf []byte
}

// NewUniformArena creates an empty arena.
func NewUniformArena() *UniformArena {
	return &UniformArena{}
}

// Write appends record, padded to uniformAlignment, and returns the offset
// at which it starts.
func (a *UniformArena) Write(record []byte) uint32 {
	offset := uint32(len(a.buf))
	a.buf = append(a.buf, record...)
	if pad := paddedLen(len(record)) - len(record); pad > 0 {
		a.buf = append(a.buf, make([]byte, pad)...)
	}
	return offset
}

func paddedLen(n int) int {
	return ((n + uniformAlignment - 1) / uniformAlignment) * uniformAlignment
}

// Bytes returns the arena's accumulated contents.
func (a *UniformArena) Bytes() []byte { return a.buf }

// Len returns the current arena size in bytes.
func (a *UniformArena) Len() int { return len(a.buf) }

// metadataWriter is a small little-endian record builder used by each
// operation's WriteMetadata to pack its uniform struct in the same field
// order its WGSL kernel declares.
type metadataWriter struct {
	buf []byte
}

func newMetadataWriter() *metadataWriter { return &metadataWriter{} }

func (w *metadataWriter) putU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *metadataWriter) putU32Vec4(v [4]uint32) {
	for _, x := range v {
		w.putU32(x)
	}
}

func (w *metadataWriter) putF32(v float32) {
	w.putU32(math.Float32bits(v))
}

// shapeVec4 left-pads s to rank 4 with fill and returns it as a fixed array
// suitable for metadataWriter.putU32Vec4.
func shapeVec4(s Shape, fill uint32) [4]uint32 {
	padded := s.LeftPadTo(fill, 4)
	return [4]uint32{padded[0], padded[1], padded[2], padded[3]}
}

func stridesVec4(s Strides, fill uint32) [4]uint32 {
	padded := s.LeftPadTo(fill, 4)
	return [4]uint32{padded[0], padded[1], padded[2], padded[3]}
}
