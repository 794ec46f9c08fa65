package ratchet

import (
	"github.com/philpax/ratchet/cpubuf"
	"github.com/philpax/ratchet/internal/gpu"
)

// storageKind discriminates the two Storage variants.
type storageKind int

const (
	storageCPU storageKind = iota
	storageGPU
)

// Storage is the tagged variant {CPU(managed host buffer), GPU(pooled
// device buffer)}. A zero Storage is never exposed to callers; tensors
// either have no storage (Unresolved) or exactly one of these kinds.
type Storage struct {
	kind storageKind
	cpu  cpubuf.Buffer
	gpu  *gpu.Buffer
}

func cpuStorage(buf cpubuf.Buffer) Storage {
	return Storage{kind: storageCPU, cpu: buf}
}

func gpuStorage(buf *gpu.Buffer) Storage {
	return Storage{kind: storageGPU, gpu: buf}
}

// NBytes returns the storage's byte length.
func (s Storage) NBytes() int {
	switch s.kind {
	case storageCPU:
		return s.cpu.NBytes()
	case storageGPU:
		return int(s.gpu.Size())
	default:
		return 0
	}
}

// IsGPU reports whether this storage lives on a GPU device.
func (s Storage) IsGPU() bool { return s.kind == storageGPU }
