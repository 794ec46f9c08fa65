package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// Submit submits cmdBuffer to queue and blocks until the device signals
// completion via a fence, or timeout elapses.
func Submit(device hal.Device, queue hal.Queue, cmdBuffer hal.CommandBuffer, timeout time.Duration) error {
	defer cmdBuffer.Destroy()

	fence, err := device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmdBuffer}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	ok, err := device.Wait(fence, 1, timeout)
	if err != nil {
		return fmt.Errorf("gpu: wait for submission fence: %w", err)
	}
	if !ok {
		return fmt.Errorf("gpu: submission fence timed out after %s", timeout)
	}
	return nil
}
