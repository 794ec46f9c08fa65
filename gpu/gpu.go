//go:build !nogpu

// Package gpu registers the default GPU provider: it negotiates a Vulkan
// instance and adapter itself and opens a device against it. Importing this
// package (for its init side effect) is the usual way to run the engine
// against a real GPU; a host application that already owns a device should
// instead implement [ratchet.GPUProvider] directly and call
// [ratchet.RegisterGPUProvider] with its own adapter, bypassing this
// package's negotiation entirely.
package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/philpax/ratchet"
	internalgpu "github.com/philpax/ratchet/internal/gpu"
)

func init() {
	if err := ratchet.RegisterGPUProvider(&vulkanProvider{}); err != nil {
		ratchet.Logger().Warn("gpu: default provider registration failed", "err", err)
	}
}

// vulkanProvider negotiates a Vulkan instance and adapter on demand. It
// holds no state between OpenBackend calls: each call opens an independent
// device, matching how ratchet.RequestDevice is meant to be used, once per
// long-lived computation rather than per tensor.
type vulkanProvider struct{}

// OpenBackend implements ratchet.GPUProvider.
func (vulkanProvider) OpenBackend(adapterPreference string) (*internalgpu.Backend, error) {
	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("gpu: vulkan backend not available")
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: no GPU adapters found")
	}
	selected := selectAdapter(adapters, adapterPreference)

	opened, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	backend, err := internalgpu.Open(selected.Info.Name, opened.Device, opened.Queue)
	if err != nil {
		opened.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	backend.SetCloser(func() {
		opened.Device.Destroy()
		instance.Destroy()
	})
	return backend, nil
}

// selectAdapter picks an adapter from the enumerated list honoring
// preference ("discrete", "integrated", or "" for the first GPU-class
// adapter found), falling back to the first adapter of any kind if no
// match exists.
func selectAdapter(adapters []hal.ExposedAdapter, preference string) *hal.ExposedAdapter {
	var want gputypes.DeviceType
	switch preference {
	case "discrete":
		want = gputypes.DeviceTypeDiscreteGPU
	case "integrated":
		want = gputypes.DeviceTypeIntegratedGPU
	default:
		for i := range adapters {
			if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
				adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
				return &adapters[i]
			}
		}
		return &adapters[0]
	}

	for i := range adapters {
		if adapters[i].Info.DeviceType == want {
			return &adapters[i]
		}
	}
	return &adapters[0]
}
