package ratchet

import (
	"time"

	"github.com/gogpu/wgpu/hal"
)

// The compiler and executable never negotiate a device themselves (that is
// a platform package's job, see gpu/gpu.go); they only call methods on
// whatever hal.Device/hal.Queue a Backend wraps. These fakes let
// compiler_test.go and executable_test.go exercise compile/execute end to
// end without a real GPU, mirroring internal/gpu's own fakehal_test.go.

type fakeBuffer struct{ size uint64 }

func (b *fakeBuffer) Destroy()              {}
func (b *fakeBuffer) NativeHandle() uintptr { return 0 }

type fakeBindGroupLayout struct{ label string }

func (l *fakeBindGroupLayout) Destroy()              {}
func (l *fakeBindGroupLayout) NativeHandle() uintptr { return 0 }

type fakePipelineLayout struct{ label string }

func (l *fakePipelineLayout) Destroy()              {}
func (l *fakePipelineLayout) NativeHandle() uintptr { return 0 }

type fakeShaderModule struct{}

func (fakeShaderModule) Destroy()              {}
func (fakeShaderModule) NativeHandle() uintptr { return 0 }

type fakeComputePipeline struct{}

func (fakeComputePipeline) Destroy()              {}
func (fakeComputePipeline) NativeHandle() uintptr { return 0 }

type fakeBindGroup struct{}

func (fakeBindGroup) Destroy()              {}
func (fakeBindGroup) NativeHandle() uintptr { return 0 }

type fakeFence struct{}

func (fakeFence) Destroy()              {}
func (fakeFence) NativeHandle() uintptr { return 0 }

type fakeCommandBuffer struct{}

func (fakeCommandBuffer) Destroy() {}

type fakeComputePassEncoder struct {
	dispatches int
}

func (p *fakeComputePassEncoder) SetPipeline(_ hal.ComputePipeline) {}
func (p *fakeComputePassEncoder) SetBindGroup(_ uint32, _ hal.BindGroup, _ []uint32) {}
func (p *fakeComputePassEncoder) Dispatch(_, _, _ uint32)                           { p.dispatches++ }
func (p *fakeComputePassEncoder) End()                                              {}

type fakeCommandEncoder struct {
	pass *fakeComputePassEncoder
}

func (e *fakeCommandEncoder) BeginEncoding(_ string) error { return nil }

func (e *fakeCommandEncoder) BeginComputePass(_ *hal.ComputePassDescriptor) hal.ComputePassEncoder {
	e.pass = &fakeComputePassEncoder{}
	return e.pass
}

func (e *fakeCommandEncoder) CopyBufferToBuffer(_, _ hal.Buffer, _ []hal.BufferCopy) {}

func (e *fakeCommandEncoder) EndEncoding() (hal.CommandBuffer, error) {
	return fakeCommandBuffer{}, nil
}

// fakeDevice backs every Backend method compile/execute touch: buffer
// creation, resource-pool creation (layouts, shader modules, pipelines),
// bind groups, and command encoding. Texture/sampler/render-pipeline
// methods are unreachable from this package and are stubs that return nil.
type fakeDevice struct {
	bindGroupsCreated int
}

func (d *fakeDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	return &fakeBuffer{size: desc.Size}, nil
}
func (d *fakeDevice) DestroyBuffer(_ hal.Buffer) {}

func (d *fakeDevice) CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	return &fakeBindGroupLayout{label: desc.Label}, nil
}
func (d *fakeDevice) DestroyBindGroupLayout(_ hal.BindGroupLayout) {}

func (d *fakeDevice) CreateBindGroup(_ *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.bindGroupsCreated++
	return fakeBindGroup{}, nil
}
func (d *fakeDevice) DestroyBindGroup(_ hal.BindGroup) {}

func (d *fakeDevice) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	return &fakePipelineLayout{label: desc.Label}, nil
}
func (d *fakeDevice) DestroyPipelineLayout(_ hal.PipelineLayout) {}

func (d *fakeDevice) CreateShaderModule(_ *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	return fakeShaderModule{}, nil
}
func (d *fakeDevice) DestroyShaderModule(_ hal.ShaderModule) {}

func (d *fakeDevice) CreateComputePipeline(_ *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	return fakeComputePipeline{}, nil
}
func (d *fakeDevice) DestroyComputePipeline(_ hal.ComputePipeline) {}

//nolint:nilnil // fake: render path unused by the tensor engine.
func (d *fakeDevice) CreateRenderPipeline(_ *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	return nil, nil
}
func (d *fakeDevice) DestroyRenderPipeline(_ hal.RenderPipeline) {}

//nolint:nilnil // fake: texture path unused by the tensor engine.
func (d *fakeDevice) CreateTexture(_ *hal.TextureDescriptor) (hal.Texture, error) { return nil, nil }
func (d *fakeDevice) DestroyTexture(_ hal.Texture)                                {}

//nolint:nilnil // fake: texture path unused by the tensor engine.
func (d *fakeDevice) CreateTextureView(_ hal.Texture, _ *hal.TextureViewDescriptor) (hal.TextureView, error) {
	return nil, nil
}
func (d *fakeDevice) DestroyTextureView(_ hal.TextureView) {}

//nolint:nilnil // fake: sampler path unused by the tensor engine.
func (d *fakeDevice) CreateSampler(_ *hal.SamplerDescriptor) (hal.Sampler, error) { return nil, nil }
func (d *fakeDevice) DestroySampler(_ hal.Sampler)                                {}

func (d *fakeDevice) CreateCommandEncoder(_ *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	return &fakeCommandEncoder{}, nil
}

func (d *fakeDevice) CreateFence() (hal.Fence, error) { return fakeFence{}, nil }
func (d *fakeDevice) DestroyFence(_ hal.Fence)        {}
func (d *fakeDevice) Wait(_ hal.Fence, _ uint64, _ time.Duration) (bool, error) {
	return true, nil
}
func (d *fakeDevice) Destroy() {}

type fakeQueue struct {
	writes  int
	submits int
}

func (q *fakeQueue) WriteBuffer(_ hal.Buffer, _ uint64, _ []byte) { q.writes++ }

func (q *fakeQueue) Submit(_ []hal.CommandBuffer, _ hal.Fence, _ uint64) error {
	q.submits++
	return nil
}
