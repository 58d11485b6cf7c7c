package distcache

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/aukilabs/raido/spatial"
	"github.com/stretchr/testify/require"
)

func TestDistanceCacheDefaults(t *testing.T) {
	c := New()
	require.Equal(t, DefaultCapacity, c.Capacity())
	require.True(t, c.IsEmpty())

	c = New(WithCapacity(-1), WithTTL(0), WithPositionTolerance(-3))
	require.Equal(t, DefaultCapacity, c.Capacity())
	require.Equal(t, uint32(DefaultTTLFrames), c.ttl)
	require.Equal(t, float32(DefaultPositionTolerance), c.tolerance)
}

func TestDistanceCacheTTL(t *testing.T) {
	c := New()
	camera := spatial.NewVector3f(0, 0, 0)
	entity := spatial.NewVector3f(10, 0, 0)

	require.Equal(t, float32(10), c.GetOrComputeDistanceWithFrame(camera, entity, 1, 0))
	require.Equal(t, uint64(1), c.Stats().Misses)

	require.Equal(t, float32(10), c.GetOrComputeDistanceWithFrame(camera, entity, 1, 4))
	require.Equal(t, uint64(1), c.Stats().Hits)

	require.Equal(t, float32(10), c.GetOrComputeDistanceWithFrame(camera, entity, 1, 5))
	require.Equal(t, uint64(2), c.Stats().Misses)

	entry, ok := c.Get(1)
	require.True(t, ok)
	require.Equal(t, uint32(5), entry.Frame)
}

func TestDistanceCachePositionTolerance(t *testing.T) {
	c := New()
	camera := spatial.NewVector3f(0, 0, 0)

	c.GetOrComputeDistanceWithFrame(camera, spatial.NewVector3f(10, 0, 0), 1, 0)

	d := c.GetOrComputeDistanceWithFrame(camera, spatial.NewVector3f(10.005, 0, 0), 1, 1)
	require.Equal(t, float32(10), d)
	require.Equal(t, uint64(1), c.Stats().Hits)

	d = c.GetOrComputeDistanceWithFrame(camera, spatial.NewVector3f(15, 0, 0), 1, 2)
	require.Equal(t, float32(15), d)
	require.Equal(t, uint64(2), c.Stats().Misses)

	t.Run("camera movement", func(t *testing.T) {
		d := c.GetOrComputeDistanceWithFrame(spatial.NewVector3f(5, 0, 0), spatial.NewVector3f(15, 0, 0), 1, 3)
		require.Equal(t, float32(10), d)
		require.Equal(t, uint64(3), c.Stats().Misses)
	})
}

func TestDistanceCacheEviction(t *testing.T) {
	c := New(WithCapacity(2))
	camera := spatial.NewVector3f(0, 0, 0)

	c.GetOrComputeDistanceWithFrame(camera, spatial.NewVector3f(1, 0, 0), 1, 0)
	c.GetOrComputeDistanceWithFrame(camera, spatial.NewVector3f(2, 0, 0), 2, 1)
	c.GetOrComputeDistanceWithFrame(camera, spatial.NewVector3f(3, 0, 0), 3, 2)

	require.Equal(t, 2, c.Len())
	require.Equal(t, uint64(1), c.Stats().Evictions)

	_, ok := c.Get(1)
	require.False(t, ok)
	_, ok = c.Get(3)
	require.True(t, ok)

	t.Run("updating an entry does not evict", func(t *testing.T) {
		c.InsertCachedDistance(2, 42, 3, camera, camera)
		require.Equal(t, 2, c.Len())
		require.Equal(t, uint64(1), c.Stats().Evictions)
	})

	t.Run("ties evict the least recently written", func(t *testing.T) {
		c := New(WithCapacity(2))
		c.InsertCachedDistance(1, 1, 0, camera, camera)
		c.InsertCachedDistance(2, 2, 0, camera, camera)
		c.InsertCachedDistance(1, 1, 0, camera, camera)
		c.InsertCachedDistance(3, 3, 0, camera, camera)

		_, ok := c.Get(2)
		require.False(t, ok)
		_, ok = c.Get(1)
		require.True(t, ok)
	})
}

func TestDistanceCacheEvictsSmallestFrame(t *testing.T) {
	c := New(WithCapacity(16))
	camera := spatial.NewVector3f(0, 0, 0)
	r := rand.New(rand.NewSource(11))

	frames := make(map[uint32]uint32)
	for id := uint32(0); id < 16; id++ {
		frame := (uint32)(r.Intn(1000))
		frames[id] = frame
		c.InsertCachedDistance(id, 1, frame, camera, camera)
	}

	for id := uint32(100); id < 108; id++ {
		var minFrame uint32 = 1 << 31
		for _, f := range frames {
			if f < minFrame {
				minFrame = f
			}
		}

		c.InsertCachedDistance(id, 1, 2000, camera, camera)
		frames[id] = 2000

		for cachedID, f := range frames {
			if _, ok := c.Get(cachedID); !ok {
				require.Equal(t, minFrame, f)
				delete(frames, cachedID)
			}
		}
		require.Len(t, frames, 16)
		require.Equal(t, 16, c.Len())
	}
}

func TestDistanceCacheCleanup(t *testing.T) {
	c := New()
	camera := spatial.NewVector3f(0, 0, 0)

	for i := uint32(0); i < 5; i++ {
		c.GetOrComputeDistanceWithFrame(camera, spatial.NewVector3f((float32)(i), 0, 0), i, i)
	}
	require.Equal(t, 5, c.Len())

	require.Equal(t, 2, c.CleanupExpired(6))
	require.Equal(t, 3, c.Len())

	require.Equal(t, 3, c.CleanupExpired(10))
	require.True(t, c.IsEmpty())
	require.Equal(t, uint64(5), c.Stats().Evictions)

	t.Run("future entries are kept", func(t *testing.T) {
		c.InsertCachedDistance(1, 1, 100, camera, camera)
		require.Zero(t, c.CleanupExpired(10))
		require.Equal(t, 1, c.Len())
	})
}

func TestDistanceCacheRemove(t *testing.T) {
	c := New(WithCapacity(4))
	camera := spatial.NewVector3f(0, 0, 0)

	for i := uint32(0); i < 4; i++ {
		c.InsertCachedDistance(i, 1, i, camera, camera)
	}

	require.True(t, c.Remove(0))
	require.False(t, c.Remove(0))
	require.Equal(t, 3, c.Len())
	require.Zero(t, c.Stats().Evictions)

	// the heap stays consistent: the next eviction takes frame 1.
	c.InsertCachedDistance(10, 1, 10, camera, camera)
	c.InsertCachedDistance(11, 1, 11, camera, camera)
	_, ok := c.Get(1)
	require.False(t, ok)
	_, ok = c.Get(2)
	require.True(t, ok)
}

func TestDistanceCacheStats(t *testing.T) {
	c := New()
	require.Zero(t, c.Stats().HitRate)

	camera := spatial.NewVector3f(0, 0, 0)
	entity := spatial.NewVector3f(3, 4, 0)

	require.Equal(t, float32(5), c.GetOrComputeDistance(camera, entity, 1))
	require.Equal(t, float32(5), c.GetOrComputeDistance(camera, entity, 1))

	stats := c.Stats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, 1, stats.Size)
	require.Equal(t, float32(0.5), stats.HitRate)
	require.Equal(t,
		"DistanceCache Stats: 1/2048 entries, 50.0% hit rate, 1 hits, 1 misses, 0 evictions",
		stats.String(),
	)
	require.True(t, strings.Contains(stats.String(), "50.0%"))
}

func TestDistanceCacheClear(t *testing.T) {
	c := New()
	camera := spatial.NewVector3f(0, 0, 0)

	for i := uint32(0); i < 10; i++ {
		c.GetOrComputeDistance(camera, spatial.NewVector3f((float32)(i), 0, 0), i)
	}
	c.GetOrComputeDistance(camera, spatial.NewVector3f(1, 0, 0), 1)

	c.Clear()
	require.True(t, c.IsEmpty())
	require.Equal(t, CacheStats{Capacity: DefaultCapacity}, c.Stats())

	c.GetOrComputeDistance(camera, spatial.NewVector3f(1, 0, 0), 1)
	require.Equal(t, 1, c.Len())
}

func TestCachedDistance(t *testing.T) {
	camera := spatial.NewVector3f(0, 0, 0)
	entity := spatial.NewVector3f(100, 0, 0)
	entry := NewCachedDistance(100, 10, camera, entity)

	require.Equal(t, spatial.MortonKeyFromPosition(entity), entry.MortonKey)

	require.True(t, entry.IsValid(10, 5))
	require.True(t, entry.IsValid(14, 5))
	require.False(t, entry.IsValid(15, 5))
	require.True(t, entry.IsValid(3, 5))

	require.True(t, entry.IsPositionAccurate(camera, entity, 0.01))
	require.False(t, entry.IsPositionAccurate(camera, spatial.NewVector3f(100, 0.01, 0), 0.01))
}
