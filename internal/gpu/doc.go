//go:build !nogpu

// Package gpu implements the compute-only WebGPU backend for the tensor
// execution engine: pooled storage buffers, cached pipeline/layout/shader
// resources, the kernel resolver, and the command submission path. It
// leverages github.com/gogpu/wgpu (Pure Go, zero CGO) and compiles WGSL
// kernels to SPIR-V via github.com/gogpu/naga.
//
// # Architecture
//
//	Tensor graph (root package) -> compiler -> gpu.Pool + gpu.ResourcePools
//	                                         -> gpu.ComputePass -> submit -> poll
//
// Key components:
//
//   - Buffer / Pool: pooled storage buffers keyed by (rounded size, usage)
//   - ResourcePools: memoized bind group layouts, pipeline layouts, shader
//     modules, and compute pipelines
//   - Kernels: the static kernel_key -> WGSL source table
//   - ComputePass / CommandEncoder: compute pass recording and submission
//   - Backend: lifecycle of an already-opened device/queue pair, the entry
//     point the root package's device façade talks to (adapter negotiation
//     happens in the provider that opens it)
//
// # Buffer pooling
//
// GPU buffers are expensive to allocate, so resolved tensor storage and
// staging buffers are drawn from a [Pool] keyed by rounded size and usage
// flags, and returned to the pool (not destroyed) when a tensor handle's
// storage is superseded or freed by the allocation planner.
//
// # Shader compilation
//
// Kernel WGSL source is resolved statically by kernel_key (see the
// internal/gpu/kernels directory) and compiled to SPIR-V through naga.
// Every kernel goes through the same naga.Compile call. Setting
// RATCHET_CHECKED in the environment only makes each compilation log a
// warning; there is no separate unchecked compilation path.
//
// # Thread safety
//
// Pool, ResourcePools, and Backend are safe for concurrent use; a Buffer's
// map state machine is guarded by its own lock.
package gpu
