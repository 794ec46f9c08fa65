package gpu

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// poolKey identifies a class of reusable buffers: a rounded size bucket
// plus the exact usage flags a request needs. Buffers are only reused
// within their own bucket so a binding never sees a buffer smaller than
// requested or lacking a usage flag it needs.
type poolKey struct {
	sizeRounded uint64
	usage       gputypes.BufferUsage
}

// roundSize buckets a requested size up to the next power-of-two-ish
// granularity (256 bytes) so that nearby tensor sizes share a bucket and
// reuse each other's buffers instead of round-tripping through the
// allocator for every distinct numel.
func roundSize(size uint64) uint64 {
	const granule = 256
	return (size + granule - 1) &^ (granule - 1)
}

type poolEntry struct {
	buf     *Buffer
	key     poolKey
	element *list.Element
}

// Pool is the GPU buffer pool described by the allocation strategy: keyed
// by (size_rounded, usage_flags), reused on Put, and bounded by a soft cap
// of idle buffers evicted LRU-first. It is process-wide per GPU device and
// safe for concurrent use.
type Pool struct {
	mu sync.Mutex

	device hal.Device

	// free holds, per key, the idle buffers available for reuse, each also
	// linked into lru so the pool can evict the globally least-recently
	// freed buffer first regardless of its key.
	free map[poolKey][]*poolEntry
	lru  *list.List

	idleCount int
	softCap   int
}

// DefaultSoftCap is the default maximum number of idle pooled buffers
// before eviction begins; it is deliberately small since GPU buffers are
// comparatively expensive relative to the tiny host-side cache entries
// this mirrors.
const DefaultSoftCap = 64

// NewPool creates a buffer pool against device with the given soft cap. A
// softCap <= 0 uses DefaultSoftCap.
func NewPool(device hal.Device, softCap int) *Pool {
	if softCap <= 0 {
		softCap = DefaultSoftCap
	}
	return &Pool{
		device:  device,
		free:    make(map[poolKey][]*poolEntry),
		lru:     list.New(),
		softCap: softCap,
	}
}

// Get returns a buffer of at least size bytes with usage, reusing a freed
// entry when one of the right key is idle, or allocating a fresh one
// otherwise. The pool keeps no reference count: a buffer goes back to the
// free list only through an explicit Put.
func (p *Pool) Get(size uint64, usage gputypes.BufferUsage, label string) (*Buffer, error) {
	key := poolKey{sizeRounded: roundSize(size), usage: usage}

	p.mu.Lock()
	if bucket := p.free[key]; len(bucket) > 0 {
		entry := bucket[len(bucket)-1]
		p.free[key] = bucket[:len(bucket)-1]
		p.lru.Remove(entry.element)
		p.idleCount--
		p.mu.Unlock()
		return entry.buf, nil
	}
	p.mu.Unlock()

	return CreateBuffer(p.device, &BufferDescriptor{
		Label: label,
		Size:  key.sizeRounded,
		Usage: usage,
	})
}

// Put returns a buffer to the free list for its key, evicting the
// least-recently-freed buffer first if doing so would exceed the soft cap.
func (p *Pool) Put(buf *Buffer) {
	if buf == nil {
		return
	}
	key := poolKey{sizeRounded: buf.Size(), usage: buf.Usage()}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry := &poolEntry{buf: buf, key: key}
	entry.element = p.lru.PushFront(entry)
	p.free[key] = append(p.free[key], entry)
	p.idleCount++

	for p.idleCount > p.softCap {
		back := p.lru.Back()
		if back == nil {
			break
		}
		evicted := back.Value.(*poolEntry)
		p.lru.Remove(back)
		p.removeFromBucketLocked(evicted)
		p.idleCount--
		evicted.buf.destroy()
	}
}

func (p *Pool) removeFromBucketLocked(entry *poolEntry) {
	bucket := p.free[entry.key]
	for i, e := range bucket {
		if e == entry {
			p.free[entry.key] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

// Stats reports the number of idle buffers currently held by the pool.
type Stats struct {
	Idle int
	Cap  int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Idle: p.idleCount, Cap: p.softCap}
}

func (s Stats) String() string {
	return fmt.Sprintf("Pool[%d/%d idle]", s.Idle, s.Cap)
}

// Close destroys every idle buffer and empties the pool.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, bucket := range p.free {
		for _, entry := range bucket {
			entry.buf.destroy()
		}
	}
	p.free = make(map[poolKey][]*poolEntry)
	p.lru = list.New()
	p.idleCount = 0
}
