package ratchet

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/philpax/ratchet/gpucore"
	"github.com/philpax/ratchet/internal/gpu"
)

// dispatchRecord is one compiled node's replay record: the pipeline and
// bind group to bind, the dynamic uniform offset selecting its metadata
// record, and the workgroup count to dispatch.
type dispatchRecord struct {
	pipeline      hal.ComputePipeline
	bindGroup     hal.BindGroup
	uniformOffset uint32
	workgroups    gpucore.WorkgroupCount
}

// pendingDispatch holds everything compileNode can determine before the
// uniform arena is uploaded: the arena upload happens once, after every
// node's metadata has been packed, since the bind group's uniform entry
// must reference the arena's single backing buffer.
type pendingDispatch struct {
	pipeline      hal.ComputePipeline
	layout        hal.BindGroupLayout
	layoutKind    gpucore.BindGroupLayoutKind
	srcs          []*Tensor
	inplace       *Tensor
	dst           *gpu.Buffer
	uniformOffset uint32
	workgroups    gpucore.WorkgroupCount
}

// compile realizes storage for every node in order and builds its dispatch
// record, honoring the allocation plan's inplace and release decisions.
// ViewOps never reach the GPU: their storage aliases ViewSource's directly
// and they contribute no dispatchRecord.
func compile(backend *gpu.Backend, order []Tensor, plan *Plan) ([]dispatchRecord, error) {
	arena := NewUniformArena()
	pending := make([]pendingDispatch, 0, len(order))

	for i, t := range order {
		op := t.Op()
		if op == nil {
			return nil, &StorageError{NodeID: t.ID(), Message: "node in schedule has no op"}
		}

		if view, isView := op.(ViewOp); isView {
			storage, err := view.ViewSource().storageOrErr()
			if err != nil {
				return nil, err
			}
			t.setStorage(storage)
			releasePooled(backend, plan.ReleasedAfter(i))
			continue
		}

		inplace := plan.InplaceSource(t)
		storage, err := acquireStorage(backend, t, inplace)
		if err != nil {
			return nil, err
		}
		t.setStorage(storage)

		p, err := compileNode(backend, arena, t, op, inplace)
		if err != nil {
			return nil, err
		}
		pending = append(pending, p)

		releasePooled(backend, plan.ReleasedAfter(i))
	}

	if len(pending) == 0 {
		return nil, nil
	}

	uniformBuf, err := backend.UploadUniform(arena.Bytes())
	if err != nil {
		return nil, fmt.Errorf("ratchet: upload uniform arena: %w", err)
	}

	records := make([]dispatchRecord, 0, len(pending))
	for _, p := range pending {
		bindGroup, err := buildBindGroup(backend, p, uniformBuf)
		if err != nil {
			return nil, err
		}
		records = append(records, dispatchRecord{
			pipeline:      p.pipeline,
			bindGroup:     bindGroup,
			uniformOffset: p.uniformOffset,
			workgroups:    p.workgroups,
		})
	}
	return records, nil
}

// acquireStorage returns the GPU buffer t's resolved output should use:
// inplace's own buffer when the planner folded t into it, or a fresh buffer
// from the pool otherwise.
func acquireStorage(backend *gpu.Backend, t Tensor, inplace *Tensor) (Storage, error) {
	if inplace != nil {
		src, err := inplace.storageOrErr()
		if err != nil {
			return Storage{}, err
		}
		if !src.IsGPU() {
			return Storage{}, &StorageError{NodeID: t.ID(), Message: "inplace source has no GPU storage"}
		}
		return src, nil
	}

	size := uint64(t.Shape().Numel()) * uint64(t.DType().SizeOf())
	if size == 0 {
		size = uint64(t.DType().SizeOf())
	}
	buf, err := backend.Pool.Get(size, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst, t.Op().KernelName())
	if err != nil {
		return Storage{}, fmt.Errorf("ratchet: allocate storage for node %d: %w", t.ID(), err)
	}
	return gpuStorage(buf), nil
}

// releasePooled returns every released node's GPU buffer to the backend's
// pool, skipping nodes without GPU storage. The plan's release lists name
// only the node owning each pool-allocated buffer, never a ViewOp result or
// an inplace fold aliasing it, so no alias check is made here.
func releasePooled(backend *gpu.Backend, released []Tensor) {
	for _, t := range released {
		storage, err := t.storageOrErr()
		if err != nil || !storage.IsGPU() {
			continue
		}
		backend.Pool.Put(storage.gpu)
	}
}

// compileNode selects dst's pipeline, layout, and kernel, packs its uniform
// metadata into arena, and records everything buildBindGroup needs once the
// arena's backing buffer exists.
func compileNode(backend *gpu.Backend, arena *UniformArena, dst Tensor, op Op, inplace *Tensor) (pendingDispatch, error) {
	elem := op.KernelElement(&dst)
	kernelKey := op.KernelKey(inplace != nil, &dst)
	wgsl, err := gpu.ResolveKernel(kernelKey)
	if err != nil {
		return pendingDispatch{}, err
	}

	layoutKind := op.StorageBindGroupLayout(inplace != nil)
	bgLayout, err := backend.Resources.BindGroupLayout(layoutKind)
	if err != nil {
		return pendingDispatch{}, fmt.Errorf("ratchet: bind group layout for %s: %w", kernelKey, err)
	}
	pipelineLayout, err := backend.Resources.PipelineLayout(bgLayout)
	if err != nil {
		return pendingDispatch{}, fmt.Errorf("ratchet: pipeline layout for %s: %w", kernelKey, err)
	}
	pipeline, err := backend.Resources.ComputePipeline(gpu.ComputePipelineDescriptor{
		PipelineLayout: pipelineLayout,
		KernelKey:      kernelKey,
		WGSL:           wgsl,
	})
	if err != nil {
		return pendingDispatch{}, fmt.Errorf("ratchet: compute pipeline for %s: %w", kernelKey, err)
	}

	offset, err := op.WriteMetadata(arena, &dst, elem)
	if err != nil {
		return pendingDispatch{}, fmt.Errorf("ratchet: write metadata for %s: %w", kernelKey, err)
	}

	dstStorage, err := dst.storageOrErr()
	if err != nil {
		return pendingDispatch{}, err
	}
	if !dstStorage.IsGPU() {
		return pendingDispatch{}, &StorageError{NodeID: dst.ID(), Message: "dispatch destination has no GPU storage"}
	}

	return pendingDispatch{
		pipeline:      pipeline,
		layout:        bgLayout,
		layoutKind:    layoutKind,
		srcs:          op.Srcs(),
		inplace:       inplace,
		dst:           dstStorage.gpu,
		uniformOffset: offset,
		workgroups:    op.CalculateDispatch(&dst),
	}, nil
}

// buildBindGroup wires p's operand buffers, destination buffer, and a slice
// of the shared uniform buffer into a concrete hal.BindGroup. Every operand
// in p.srcs is bound read-only in order, except the one the planner folded
// into dst (it shares dst's read-write binding instead); a kernel declaring
// more read-only slots than p.srcs supplies (matmul without a bias operand)
// has the remainder padded with backend's dummy buffer, which such kernels
// never read.
func buildBindGroup(backend *gpu.Backend, p pendingDispatch, uniformBuf *gpu.Buffer) (hal.BindGroup, error) {
	readOnly, _ := p.layoutKind.Counts()
	entries := make([]gputypes.BindGroupEntry, 0, readOnly+2)
	binding := uint32(0)

	for _, src := range p.srcs {
		if p.inplace != nil && src.ID() == p.inplace.ID() {
			continue
		}
		storage, err := src.storageOrErr()
		if err != nil {
			return nil, err
		}
		if !storage.IsGPU() {
			return nil, &StorageError{NodeID: src.ID(), Message: "operand has no GPU storage"}
		}
		entries = append(entries, bufferEntry(binding, storage.gpu))
		binding++
	}

	for len(entries) < readOnly {
		dummy, err := backend.Dummy()
		if err != nil {
			return nil, err
		}
		entries = append(entries, bufferEntry(binding, dummy))
		binding++
	}

	entries = append(entries, bufferEntry(binding, p.dst))
	binding++

	entries = append(entries, gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: uniformBuf.Raw(),
			Offset: 0,
			Size:   uniformAlignment,
		},
	})

	return backend.Device().CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "ratchet-dispatch",
		Layout:  p.layout,
		Entries: entries,
	})
}

func bufferEntry(binding uint32, buf *gpu.Buffer) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: buf.Raw(),
			Offset: 0,
			Size:   buf.Size(),
		},
	}
}
