package gpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// ComputePass records a sequence of dispatches into one command buffer. The
// executable opens one pass per command batch and issues one SetPipeline +
// SetBindGroup + Dispatch triple per compiled op.
type ComputePass struct {
	encoder hal.CommandEncoder
	pass    hal.ComputePassEncoder
}

// BeginComputePass opens a command encoder on device and starts a compute
// pass on it.
func BeginComputePass(device hal.Device, label string) (*ComputePass, error) {
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
	return &ComputePass{encoder: encoder, pass: pass}, nil
}

// SetPipeline binds the active compute pipeline for subsequent dispatches.
func (c *ComputePass) SetPipeline(pipeline hal.ComputePipeline) {
	c.pass.SetPipeline(pipeline)
}

// SetBindGroup binds group at index, with dynamicOffsets selecting the
// uniform arena record this dispatch reads (see UniformArena).
func (c *ComputePass) SetBindGroup(index uint32, group hal.BindGroup, dynamicOffsets []uint32) {
	c.pass.SetBindGroup(index, group, dynamicOffsets)
}

// Dispatch issues workgroups along x, y, z. Callers compute these with
// gpucore.Dispatch so the x dimension never exceeds the device's per-axis
// workgroup limit.
func (c *ComputePass) Dispatch(x, y, z uint32) {
	c.pass.Dispatch(x, y, z)
}

// End finishes the compute pass and the command encoding, returning a
// command buffer ready to submit.
func (c *ComputePass) End() (hal.CommandBuffer, error) {
	c.pass.End()
	cmdBuffer, err := c.encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end encoding: %w", err)
	}
	return cmdBuffer, nil
}
