package gpu

import (
	"time"

	"github.com/gogpu/wgpu/hal"
)

// fakeHALBuffer is a test double for hal.Buffer.
type fakeHALBuffer struct{ size uint64 }

func (b *fakeHALBuffer) Destroy()              {}
func (b *fakeHALBuffer) NativeHandle() uintptr { return 0 }

// fakeHALDevice is a test double for hal.Device, exercising only the
// buffer-related methods; every other method is a deliberate no-op since
// the tensor engine never creates textures or render pipelines.
type fakeHALDevice struct {
	buffersCreated          int
	buffersDestroyed        int
	bindGroupLayoutsCreated int
	pipelineLayoutsCreated  int
}

func newFakeHALDevice() *fakeHALDevice { return &fakeHALDevice{} }

func (d *fakeHALDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.buffersCreated++
	return &fakeHALBuffer{size: desc.Size}, nil
}
func (d *fakeHALDevice) DestroyBuffer(_ hal.Buffer) { d.buffersDestroyed++ }

//nolint:nilnil // fake: texture path unused by the tensor engine.
func (d *fakeHALDevice) CreateTexture(_ *hal.TextureDescriptor) (hal.Texture, error) { return nil, nil }
func (d *fakeHALDevice) DestroyTexture(_ hal.Texture)                                {}

//nolint:nilnil // fake: texture path unused by the tensor engine.
func (d *fakeHALDevice) CreateTextureView(_ hal.Texture, _ *hal.TextureViewDescriptor) (hal.TextureView, error) {
	return nil, nil
}
func (d *fakeHALDevice) DestroyTextureView(_ hal.TextureView) {}

//nolint:nilnil // fake: sampler path unused by the tensor engine.
func (d *fakeHALDevice) CreateSampler(_ *hal.SamplerDescriptor) (hal.Sampler, error) { return nil, nil }
func (d *fakeHALDevice) DestroySampler(_ hal.Sampler)                                {}

// fakeHALBindGroupLayout gives every CreateBindGroupLayout call a distinct
// identity so cache-reuse tests can assert on pointer equality.
type fakeHALBindGroupLayout struct{ label string }

func (l *fakeHALBindGroupLayout) Destroy()              {}
func (l *fakeHALBindGroupLayout) NativeHandle() uintptr { return 0 }

func (d *fakeHALDevice) CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	d.bindGroupLayoutsCreated++
	return &fakeHALBindGroupLayout{label: desc.Label}, nil
}
func (d *fakeHALDevice) DestroyBindGroupLayout(_ hal.BindGroupLayout) {}

//nolint:nilnil // fake: overridden per test when bind groups matter.
func (d *fakeHALDevice) CreateBindGroup(_ *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	return nil, nil
}
func (d *fakeHALDevice) DestroyBindGroup(_ hal.BindGroup) {}

type fakeHALPipelineLayout struct{ label string }

func (l *fakeHALPipelineLayout) Destroy()              {}
func (l *fakeHALPipelineLayout) NativeHandle() uintptr { return 0 }

func (d *fakeHALDevice) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	d.pipelineLayoutsCreated++
	return &fakeHALPipelineLayout{label: desc.Label}, nil
}
func (d *fakeHALDevice) DestroyPipelineLayout(_ hal.PipelineLayout) {}

//nolint:nilnil // fake: overridden per test when shader modules matter.
func (d *fakeHALDevice) CreateShaderModule(_ *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	return nil, nil
}
func (d *fakeHALDevice) DestroyShaderModule(_ hal.ShaderModule) {}

//nolint:nilnil // fake: render path unused by the tensor engine.
func (d *fakeHALDevice) CreateRenderPipeline(_ *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	return nil, nil
}
func (d *fakeHALDevice) DestroyRenderPipeline(_ hal.RenderPipeline) {}

//nolint:nilnil // fake: overridden per test when compute pipelines matter.
func (d *fakeHALDevice) CreateComputePipeline(_ *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	return nil, nil
}
func (d *fakeHALDevice) DestroyComputePipeline(_ hal.ComputePipeline) {}

//nolint:nilnil // fake: command encoding exercised at a higher level in executable_test.go.
func (d *fakeHALDevice) CreateCommandEncoder(_ *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	return nil, nil
}

//nolint:nilnil // fake: submission fences exercised at a higher level.
func (d *fakeHALDevice) CreateFence() (hal.Fence, error) { return nil, nil }
func (d *fakeHALDevice) DestroyFence(_ hal.Fence)        {}
func (d *fakeHALDevice) Wait(_ hal.Fence, _ uint64, _ time.Duration) (bool, error) {
	return true, nil
}
func (d *fakeHALDevice) Destroy() {}

// fakeHALQueue is a test double for hal.Queue, tracking writes and submits
// without touching real GPU memory.
type fakeHALQueue struct {
	written []fakeWrite
	submits int
}

type fakeWrite struct {
	offset uint64
	data   []byte
}

func newFakeHALQueue() *fakeHALQueue { return &fakeHALQueue{} }

func (q *fakeHALQueue) WriteBuffer(_ hal.Buffer, offset uint64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	q.written = append(q.written, fakeWrite{offset: offset, data: cp})
}

func (q *fakeHALQueue) Submit(_ []hal.CommandBuffer, _ hal.Fence, _ uint64) error {
	q.submits++
	return nil
}

// fakeHALCommandBuffer, fakeHALFence, fakeHALComputePassEncoder, and
// fakeHALCommandEncoder back fakeHALDeviceFull, a richer device fake used by
// tests that exercise a full compute-pass record/submit round trip.

type fakeHALCommandBuffer struct{ destroyed bool }

func (c *fakeHALCommandBuffer) Destroy() { c.destroyed = true }

type fakeHALFence struct{}

func (fakeHALFence) Destroy()              {}
func (fakeHALFence) NativeHandle() uintptr { return 0 }

type fakeHALComputePassEncoder struct {
	pipelinesSet  int
	bindGroupsSet int
	dispatches    int
	ended         bool
}

func (p *fakeHALComputePassEncoder) SetPipeline(_ hal.ComputePipeline) { p.pipelinesSet++ }
func (p *fakeHALComputePassEncoder) SetBindGroup(_ uint32, _ hal.BindGroup, _ []uint32) {
	p.bindGroupsSet++
}
func (p *fakeHALComputePassEncoder) Dispatch(_, _, _ uint32) { p.dispatches++ }
func (p *fakeHALComputePassEncoder) End()                    { p.ended = true }

type fakeHALCommandEncoder struct {
	label   string
	begun   bool
	pass    *fakeHALComputePassEncoder
	ended   bool
}

func (e *fakeHALCommandEncoder) BeginEncoding(label string) error {
	e.begun = true
	e.label = label
	return nil
}

func (e *fakeHALCommandEncoder) BeginComputePass(_ *hal.ComputePassDescriptor) hal.ComputePassEncoder {
	e.pass = &fakeHALComputePassEncoder{}
	return e.pass
}

func (e *fakeHALCommandEncoder) CopyBufferToBuffer(_, _ hal.Buffer, _ []hal.BufferCopy) {}

func (e *fakeHALCommandEncoder) EndEncoding() (hal.CommandBuffer, error) {
	e.ended = true
	return &fakeHALCommandBuffer{}, nil
}

// fakeHALDeviceFull extends fakeHALDevice with functional command encoding
// and fence creation, for tests that drive a whole record/submit round trip.
type fakeHALDeviceFull struct {
	fakeHALDevice
	lastEncoder *fakeHALCommandEncoder
}

func newFakeHALDeviceFull() *fakeHALDeviceFull { return &fakeHALDeviceFull{} }

func (d *fakeHALDeviceFull) CreateCommandEncoder(_ *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc := &fakeHALCommandEncoder{}
	d.lastEncoder = enc
	return enc, nil
}

func (d *fakeHALDeviceFull) CreateFence() (hal.Fence, error) { return fakeHALFence{}, nil }
func (d *fakeHALDeviceFull) DestroyFence(_ hal.Fence)        {}
func (d *fakeHALDeviceFull) Wait(_ hal.Fence, _ uint64, _ time.Duration) (bool, error) {
	return true, nil
}
