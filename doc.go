// Package ratchet implements a lazy, GPU-accelerated tensor execution
// engine: building a tensor graph only records operations, and a single
// Resolve call schedules, allocates, compiles, and dispatches the whole
// graph in one batch.
//
// # Quick start
//
//	// A GPU provider must be registered first, e.g. by importing
//	// github.com/philpax/ratchet/gpu for its side effect.
//	device, err := ratchet.RequestDevice(ratchet.DeviceRequest{Kind: ratchet.DeviceGPU})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer device.Close()
//	a, _ := ratchet.FromData(bufA, ratchet.Shape{2, 2}, ratchet.F32, device)
//	b, _ := ratchet.FromData(bufB, ratchet.Shape{2, 2}, ratchet.F32, device)
//	sum, _ := a.Add(b)
//	out, _ := sum.Gelu()
//	if err := ratchet.Resolve(out); err != nil {
//	    log.Fatal(err)
//	}
//
// # Architecture
//
// Building a tensor (Add, Gelu, Matmul, ...) only constructs a node in a
// lazy computation graph (see [Tensor], [Op]); no GPU work happens until
// [Resolve]. Resolving a tensor runs it through four stages:
//
//   - scheduler: topologically orders the graph into an execution sequence
//   - planner: assigns storage to each node, reusing buffers once their
//     last consumer has run and folding inplace-eligible ops into a
//     source's own buffer
//   - compiler: realizes each node's storage, selects and caches its
//     compute pipeline, and packs its uniform metadata
//   - executable: records one compute pass per command batch and submits
//     it to the device
//
// # Devices
//
// A [Tensor] is pinned to a [Device] at construction. [CPU] always
// succeeds; a GPU device is opened with [RequestDevice] against whatever
// [GPUProvider] a platform package registered with [RegisterGPUProvider].
// [Tensor.To] moves resolved storage across the CPU/GPU boundary. [Resolve]
// only runs graphs on a GPU device; CPU tensors hold data for transfer.
//
// # Logging
//
// The engine is silent by default. Call [SetLogger] with a configured
// *slog.Logger to see the warnings the internal/gpu backend logs when it
// compiles shader modules with RATCHET_CHECKED set.
package ratchet
