package ratchet

import (
	"fmt"
	"time"

	"github.com/philpax/ratchet/internal/gpu"
)

// submitTimeout bounds how long a resolve waits for the device to signal
// completion of its submitted command batch.
const submitTimeout = 30 * time.Second

// execute records every compiled dispatch into a single compute pass, in
// schedule order, and submits it as one command batch.
func execute(backend *gpu.Backend, records []dispatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	pass, err := gpu.BeginComputePass(backend.Device(), "ratchet-resolve")
	if err != nil {
		return fmt.Errorf("ratchet: begin compute pass: %w", err)
	}

	for _, r := range records {
		pass.SetPipeline(r.pipeline)
		pass.SetBindGroup(0, r.bindGroup, []uint32{r.uniformOffset})
		pass.Dispatch(r.workgroups.X, r.workgroups.Y, r.workgroups.Z)
	}

	cmdBuffer, err := pass.End()
	if err != nil {
		return fmt.Errorf("ratchet: end compute pass: %w", err)
	}

	if err := backend.Submit(cmdBuffer, submitTimeout); err != nil {
		return fmt.Errorf("ratchet: submit dispatch batch: %w", err)
	}
	return nil
}

// Resolve runs every tensor in targets through the scheduler, planner,
// compiler, and executable, in one batch: after it returns successfully,
// every target's storage is populated and safe to read (via To or a
// future host-readback helper). Resolving a set of targets that only
// reach Const tensors, or that are already fully resolved, is a no-op.
//
// All targets must share the same device, and resolving against the CPU
// device is unsupported: this engine only executes on the GPU (see
// [Device], [RequestDevice]).
func Resolve(targets ...Tensor) error {
	if len(targets) == 0 {
		return nil
	}

	device := targets[0].Device()
	for _, t := range targets[1:] {
		if !t.Device().equal(device) {
			return &DeviceError{Message: "Resolve targets must share a single device"}
		}
	}
	if device.Kind() != DeviceGPU {
		return &DeviceError{Message: "Resolve requires a GPU device; this engine does not execute kernels on the CPU"}
	}

	order, err := Schedule(targets)
	if err != nil {
		return err
	}
	if len(order) == 0 {
		return nil
	}

	plan := planAllocation(order, targets)

	records, err := compile(device.backend, order, plan)
	if err != nil {
		return err
	}

	return execute(device.backend, records)
}
