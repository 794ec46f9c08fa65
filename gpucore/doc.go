// Package gpucore provides the value vocabulary shared by the operation
// protocol (kernel element width, dispatch sizing) and the GPU backend
// (bind-group layout shape selection). See [KernelElement], [WorkgroupCount]
// and [BindGroupLayoutKind].
package gpucore
