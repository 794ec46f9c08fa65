package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestRoundSizeBucketsNearbySizes(t *testing.T) {
	cases := []struct{ a, b uint64 }{
		{1, 200},
		{257, 500},
		{4097, 4352},
	}
	for _, c := range cases {
		if roundSize(c.a) != roundSize(c.b) {
			t.Errorf("roundSize(%d)=%d, roundSize(%d)=%d; want same bucket", c.a, roundSize(c.a), c.b, roundSize(c.b))
		}
	}
}

func TestPoolPutGetReusesBuffer(t *testing.T) {
	device := newFakeHALDevice()
	pool := NewPool(device, DefaultSoftCap)

	buf, err := pool.Get(1024, gputypes.BufferUsageStorage, "t")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	pool.Put(buf)

	reused, err := pool.Get(1024, gputypes.BufferUsageStorage, "t")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reused != buf {
		t.Fatal("Pool did not reuse the freed buffer")
	}
}

func TestPoolEvictsOverSoftCap(t *testing.T) {
	device := newFakeHALDevice()
	pool := NewPool(device, 1)

	a, _ := pool.Get(256, gputypes.BufferUsageStorage, "a")
	b, _ := pool.Get(256, gputypes.BufferUsageStorage, "b")
	pool.Put(a)
	pool.Put(b)

	stats := pool.Stats()
	if stats.Idle != 1 {
		t.Fatalf("Stats().Idle = %d, want 1 (soft cap eviction)", stats.Idle)
	}
}
