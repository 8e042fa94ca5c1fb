package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-gpu/spindle/driver"
)

func TestPoolReuse(t *testing.T) {
	_, s := rig(t, nil)
	pool := NewBufferPool(s.Context)
	t.Cleanup(func() { _ = pool.Clear() })

	b1, err := pool.Acquire(1024)
	require.NoError(t, err)
	require.NoError(t, pool.Release(b1))

	// A smaller request in the same category reuses the pooled buffer.
	b2, err := pool.Acquire(512)
	require.NoError(t, err)
	assert.Same(t, b1, b2)
	assert.GreaterOrEqual(t, b2.Size(), 512)

	allocated, released, hits, misses, pooled := pool.Stats()
	assert.Equal(t, uint64(1), allocated)
	assert.Equal(t, uint64(1), released)
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.Equal(t, 0, pooled)

	require.NoError(t, pool.Release(b2))
}

func TestPoolFlagCovering(t *testing.T) {
	_, s := rig(t, nil)
	pool := NewBufferPool(s.Context)
	t.Cleanup(func() { _ = pool.Clear() })

	ro, err := pool.Acquire(256, driver.MemReadOnly)
	require.NoError(t, err)
	require.NoError(t, pool.Release(ro))

	// A read-only leftover cannot serve a read-write request.
	rw, err := pool.Acquire(256)
	require.NoError(t, err)
	assert.NotSame(t, ro, rw)

	_, _, hits, misses, pooled := pool.Stats()
	assert.Equal(t, uint64(0), hits)
	assert.Equal(t, uint64(2), misses)
	assert.Equal(t, 1, pooled)

	require.NoError(t, pool.Release(rw))
}

func TestPoolCategoriesAndClear(t *testing.T) {
	_, s := rig(t, nil)
	pool := NewBufferPool(s.Context)

	small, err := pool.Acquire(1024)
	require.NoError(t, err)
	medium, err := pool.Acquire(64 * 1024)
	require.NoError(t, err)
	large, err := pool.Acquire(2 * 1024 * 1024)
	require.NoError(t, err)
	for _, b := range []*Buffer{small, medium, large} {
		require.NoError(t, pool.Release(b))
	}
	_, _, _, _, pooled := pool.Stats()
	require.Equal(t, 3, pooled)

	got, err := pool.Acquire(512)
	require.NoError(t, err)
	assert.Same(t, small, got, "the small category serves sub-4KB requests")
	require.NoError(t, pool.Release(got))

	require.NoError(t, pool.Clear())
	_, _, _, _, pooled = pool.Stats()
	assert.Equal(t, 0, pooled)
	for _, b := range []*Buffer{small, medium, large} {
		assert.True(t, b.Released())
	}

	assert.NoError(t, pool.Release(nil))
	assert.NoError(t, pool.Release(small), "an already-released buffer is not repooled")
	_, released, _, _, pooled := pool.Stats()
	assert.Equal(t, uint64(4), released)
	assert.Equal(t, 0, pooled)
}
