package compute

import (
	"sync"

	"github.com/spindle-gpu/spindle/driver"
)

// BufferSize represents different buffer size categories for pooling.
type BufferSize int

const (
	// SmallBuffer for regions < 4KB.
	SmallBuffer BufferSize = iota
	// MediumBuffer for regions 4KB-1MB.
	MediumBuffer
	// LargeBuffer for regions > 1MB.
	LargeBuffer
)

const (
	// Size thresholds for buffer categories.
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
	maxPoolSize     = 100         // Max buffers per category
)

// BufferPool manages device buffer reuse to reduce allocation overhead.
// Buffers are categorized by size and allocation flags. An acquired
// buffer may be larger than requested; its recorded flags always cover
// the requested ones.
type BufferPool struct {
	ctx *Context

	// Pools organized by size category
	small  []*Buffer
	medium []*Buffer
	large  []*Buffer

	mu sync.Mutex

	// Statistics
	totalAllocated uint64
	totalReleased  uint64
	poolHits       uint64
	poolMisses     uint64
}

// NewBufferPool creates a new buffer pool allocating from the given
// context.
func NewBufferPool(ctx *Context) *BufferPool {
	return &BufferPool{
		ctx:    ctx,
		small:  make([]*Buffer, 0, maxPoolSize),
		medium: make([]*Buffer, 0, maxPoolSize),
		large:  make([]*Buffer, 0, maxPoolSize),
	}
}

// Acquire gets a buffer from the pool or allocates a new one.
// Returns a buffer that matches or exceeds the requested size and
// whose flags include the requested flags.
func (p *BufferPool) Acquire(size int, flags ...driver.MemFlag) (*Buffer, error) {
	want := combineMemFlags(flags, 0)

	p.mu.Lock()
	category := p.categorize(size)
	pool := p.getPool(category)

	// Try to find a suitable buffer in the pool
	for i, b := range pool {
		if b.Size() >= size && b.flags&want == want {
			// Found a match - remove from pool and return
			p.removeFromPool(category, i)
			p.poolHits++
			p.mu.Unlock()
			return b, nil
		}
	}

	// No suitable buffer found - create new one
	p.poolMisses++
	p.totalAllocated++
	p.mu.Unlock()

	return p.ctx.CreateBuffer(size, want)
}

// Release returns a buffer to the pool for reuse.
// If the pool is full, the buffer is released natively instead.
func (p *BufferPool) Release(b *Buffer) error {
	if b == nil || b.Released() {
		return nil
	}

	p.mu.Lock()
	p.totalReleased++

	category := p.categorize(b.Size())
	pool := p.getPool(category)

	// Check if pool has space
	if len(pool) >= maxPoolSize {
		p.mu.Unlock()
		// Pool is full - release buffer immediately
		return b.Release()
	}

	// Add to pool
	p.addToPool(category, b)
	p.mu.Unlock()
	return nil
}

// Clear releases all pooled buffers.
// Should be called when the context is released.
func (p *BufferPool) Clear() error {
	p.mu.Lock()
	var rs []Releaser
	for _, b := range p.small {
		rs = append(rs, b)
	}
	p.small = p.small[:0]
	for _, b := range p.medium {
		rs = append(rs, b)
	}
	p.medium = p.medium[:0]
	for _, b := range p.large {
		rs = append(rs, b)
	}
	p.large = p.large[:0]
	p.mu.Unlock()

	return ReleaseAll(rs...)
}

// Stats returns statistics about buffer pool usage.
func (p *BufferPool) Stats() (allocated, released, hits, misses uint64, pooledCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.totalAllocated, p.totalReleased, p.poolHits, p.poolMisses,
		len(p.small) + len(p.medium) + len(p.large)
}

// categorize determines the size category for a buffer.
func (p *BufferPool) categorize(size int) BufferSize {
	if size < smallThreshold {
		return SmallBuffer
	}
	if size < mediumThreshold {
		return MediumBuffer
	}
	return LargeBuffer
}

// getPool returns the pool slice for a given category.
func (p *BufferPool) getPool(category BufferSize) []*Buffer {
	switch category {
	case SmallBuffer:
		return p.small
	case MediumBuffer:
		return p.medium
	case LargeBuffer:
		return p.large
	default:
		return nil
	}
}

// addToPool adds a buffer to the appropriate pool category.
func (p *BufferPool) addToPool(category BufferSize, b *Buffer) {
	switch category {
	case SmallBuffer:
		p.small = append(p.small, b)
	case MediumBuffer:
		p.medium = append(p.medium, b)
	case LargeBuffer:
		p.large = append(p.large, b)
	}
}

// removeFromPool removes a buffer at index i from the appropriate pool.
func (p *BufferPool) removeFromPool(category BufferSize, i int) {
	switch category {
	case SmallBuffer:
		p.small = append(p.small[:i], p.small[i+1:]...)
	case MediumBuffer:
		p.medium = append(p.medium[:i], p.medium[i+1:]...)
	case LargeBuffer:
		p.large = append(p.large[:i], p.large[i+1:]...)
	}
}
