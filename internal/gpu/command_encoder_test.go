package gpu

import (
	"testing"
	"time"
)

func TestSubmitWaitsForFence(t *testing.T) {
	device := newFakeHALDeviceFull()
	queue := newFakeHALQueue()

	cmdBuffer := &fakeHALCommandBuffer{}
	if err := Submit(device, queue, cmdBuffer, time.Second); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if queue.submits != 1 {
		t.Errorf("submits = %d, want 1", queue.submits)
	}
	if !cmdBuffer.destroyed {
		t.Error("command buffer was not destroyed after submit")
	}
}
