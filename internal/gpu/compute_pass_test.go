package gpu

import "testing"

func TestComputePassRecordsDispatch(t *testing.T) {
	device := newFakeHALDeviceFull()
	pass, err := BeginComputePass(device, "test-pass")
	if err != nil {
		t.Fatalf("BeginComputePass: %v", err)
	}

	pass.SetPipeline(nil)
	pass.SetBindGroup(0, nil, []uint32{0})
	pass.Dispatch(4, 1, 1)

	cmdBuffer, err := pass.End()
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if cmdBuffer == nil {
		t.Fatal("End returned nil command buffer")
	}

	fake := device.lastEncoder
	if !fake.begun {
		t.Error("encoder was never begun")
	}
	if !fake.ended {
		t.Error("encoder was never ended")
	}
	if fake.pass == nil {
		t.Fatal("compute pass was never started")
	}
	if fake.pass.pipelinesSet != 1 {
		t.Errorf("pipelinesSet = %d, want 1", fake.pass.pipelinesSet)
	}
	if fake.pass.bindGroupsSet != 1 {
		t.Errorf("bindGroupsSet = %d, want 1", fake.pass.bindGroupsSet)
	}
	if fake.pass.dispatches != 1 {
		t.Errorf("dispatches = %d, want 1", fake.pass.dispatches)
	}
	if !fake.pass.ended {
		t.Error("pass was never ended")
	}
}
