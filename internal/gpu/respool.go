package gpu

import (
	"fmt"
	"os"
	"sync"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/types"

	"github.com/philpax/ratchet/gpucore"
	"github.com/philpax/ratchet/internal/cache"
)

// checkedShaders reports whether RATCHET_CHECKED is set to any non-empty
// value. When it is, compileWGSL logs a warning for every module it
// compiles; the compilation itself is the same naga.Compile call either way.
// Evaluated once; the env var is not expected to change mid-process.
var checkedShaders = os.Getenv("RATCHET_CHECKED") != ""

// PipelineLayoutDescriptor identifies a pipeline layout by the bind group
// layout it wraps. The engine only ever has one bind group per pipeline.
type PipelineLayoutDescriptor struct {
	BindGroupLayout hal.BindGroupLayout
}

// ShaderModuleDescriptor identifies a compiled shader module by the kernel
// source it was built from.
type ShaderModuleDescriptor struct {
	KernelKey string
	WGSL      string
}

// ComputePipelineDescriptor identifies a compute pipeline by its layout and
// kernel identity, matching the kernel resolver's key.
type ComputePipelineDescriptor struct {
	PipelineLayout hal.PipelineLayout
	KernelKey      string
	WGSL           string
}

// ResourcePools memoizes the four GPU resource kinds the compiler creates
// per distinct operation shape: bind group layouts, pipeline layouts,
// shader modules, and compute pipelines. Every pool is keyed by the value
// describing the resource, so two nodes with identical shapes share one
// pipeline regardless of which tensor produced them.
type ResourcePools struct {
	device hal.Device

	bindGroupLayouts *cache.Cache[gpucore.BindGroupLayoutKind, hal.BindGroupLayout]
	pipelineLayouts  *cache.Cache[hal.BindGroupLayout, hal.PipelineLayout]
	shaderModules    *cache.Cache[ShaderModuleDescriptor, hal.ShaderModule]
	pipelines        *cache.Cache[ComputePipelineDescriptor, hal.ComputePipeline]

	mu sync.Mutex // guards entry creation against concurrent duplicate hal calls
}

// NewResourcePools creates the resource pools backed by device. softLimit
// bounds each individual cache; a softLimit <= 0 uses a generous default
// since these resources are cheap to keep relative to GPU buffers.
func NewResourcePools(device hal.Device, softLimit int) *ResourcePools {
	if softLimit <= 0 {
		softLimit = 512
	}
	return &ResourcePools{
		device:           device,
		bindGroupLayouts: cache.New[gpucore.BindGroupLayoutKind, hal.BindGroupLayout](softLimit),
		pipelineLayouts:  cache.New[hal.BindGroupLayout, hal.PipelineLayout](softLimit),
		shaderModules:    cache.New[ShaderModuleDescriptor, hal.ShaderModule](softLimit),
		pipelines:        cache.New[ComputePipelineDescriptor, hal.ComputePipeline](softLimit),
	}
}

// bindGroupLayoutEntries describes, per BindGroupLayoutKind, how many
// read-only and read-write storage buffers its shape declares, in addition
// to the trailing dynamic uniform buffer binding every kind has.
func bindGroupLayoutEntries(kind gpucore.BindGroupLayoutKind) (readOnly, readWrite int) {
	return kind.Counts()
}

// BindGroupLayout returns the (possibly cached) bind group layout for kind.
func (p *ResourcePools) BindGroupLayout(kind gpucore.BindGroupLayoutKind) (hal.BindGroupLayout, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var createErr error
	layout := p.bindGroupLayouts.GetOrCreate(kind, func() hal.BindGroupLayout {
		readOnly, readWrite := bindGroupLayoutEntries(kind)
		entries := make([]types.BindGroupLayoutEntry, 0, readOnly+readWrite+1)
		binding := uint32(0)
		for i := 0; i < readOnly; i++ {
			entries = append(entries, types.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: types.ShaderStageCompute,
				Buffer:     &types.BufferBindingLayout{Type: types.BufferBindingTypeReadOnlyStorage},
			})
			binding++
		}
		for i := 0; i < readWrite; i++ {
			entries = append(entries, types.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: types.ShaderStageCompute,
				Buffer:     &types.BufferBindingLayout{Type: types.BufferBindingTypeStorage},
			})
			binding++
		}
		entries = append(entries, types.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: types.ShaderStageCompute,
			Buffer: &types.BufferBindingLayout{
				Type:             types.BufferBindingTypeUniform,
				HasDynamicOffset: true,
			},
		})

		created, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   kind.String(),
			Entries: entries,
		})
		if err != nil {
			createErr = err
			return nil
		}
		return created
	})
	if createErr != nil {
		return nil, createErr
	}
	return layout, nil
}

// PipelineLayout returns the (possibly cached) pipeline layout wrapping
// bindGroupLayout.
func (p *ResourcePools) PipelineLayout(bindGroupLayout hal.BindGroupLayout) (hal.PipelineLayout, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var createErr error
	layout := p.pipelineLayouts.GetOrCreate(bindGroupLayout, func() hal.PipelineLayout {
		created, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			BindGroupLayouts: []hal.BindGroupLayout{bindGroupLayout},
		})
		if err != nil {
			createErr = err
			return nil
		}
		return created
	})
	if createErr != nil {
		return nil, createErr
	}
	return layout, nil
}

// compileWGSL compiles WGSL source to the little-endian SPIR-V word slice
// hal.ShaderSource expects, first logging a warning when checkedShaders is
// set.
func compileWGSL(kernelKey, wgsl string) ([]uint32, error) {
	if checkedShaders {
		slogger().Warn("using checked shader compilation", "kernel", kernelKey)
	}
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("compile kernel %q: %w", kernelKey, err)
	}
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirv, nil
}

// ShaderModule compiles (or returns the cached) shader module for the
// kernel identified by desc.
func (p *ResourcePools) ShaderModule(desc ShaderModuleDescriptor) (hal.ShaderModule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var createErr error
	module := p.shaderModules.GetOrCreate(desc, func() hal.ShaderModule {
		spirv, err := compileWGSL(desc.KernelKey, desc.WGSL)
		if err != nil {
			createErr = err
			return nil
		}
		created, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  desc.KernelKey,
			Source: hal.ShaderSource{SPIRV: spirv},
		})
		if err != nil {
			createErr = err
			return nil
		}
		return created
	})
	if createErr != nil {
		return nil, createErr
	}
	return module, nil
}

// ComputePipeline returns the (possibly cached) compute pipeline for desc,
// compiling its shader module on first use.
func (p *ResourcePools) ComputePipeline(desc ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	module, err := p.ShaderModule(ShaderModuleDescriptor{KernelKey: desc.KernelKey, WGSL: desc.WGSL})
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var createErr error
	pipeline := p.pipelines.GetOrCreate(desc, func() hal.ComputePipeline {
		created, err := p.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  desc.KernelKey,
			Layout: desc.PipelineLayout,
			Compute: hal.ComputeState{
				Module:     module,
				EntryPoint: "main",
			},
		})
		if err != nil {
			createErr = err
			return nil
		}
		return created
	})
	if createErr != nil {
		return nil, createErr
	}
	return pipeline, nil
}

// ResourcePoolStats reports the occupancy of each underlying cache, mainly
// for tests and diagnostics.
type ResourcePoolStats struct {
	BindGroupLayouts cache.Stats
	PipelineLayouts  cache.Stats
	ShaderModules    cache.Stats
	Pipelines        cache.Stats
}

func (p *ResourcePools) Stats() ResourcePoolStats {
	return ResourcePoolStats{
		BindGroupLayouts: p.bindGroupLayouts.Stats(),
		PipelineLayouts:  p.pipelineLayouts.Stats(),
		ShaderModules:    p.shaderModules.Stats(),
		Pipelines:        p.pipelines.Stats(),
	}
}
