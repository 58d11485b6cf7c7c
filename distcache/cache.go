// Package distcache memoizes camera to entity distances across frames.
package distcache

import (
	"container/heap"

	"github.com/aukilabs/raido/spatial"
)

const (
	DefaultCapacity          = 2048
	DefaultTTLFrames         = 5
	DefaultPositionTolerance = 0.01
)

// Option configures a DistanceCache. Zero or negative values are ignored and
// the default is kept.
type Option func(*DistanceCache)

func WithCapacity(capacity int) Option {
	return func(c *DistanceCache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

func WithTTL(frames uint32) Option {
	return func(c *DistanceCache) {
		if frames > 0 {
			c.ttl = frames
		}
	}
}

func WithPositionTolerance(tolerance float32) Option {
	return func(c *DistanceCache) {
		if tolerance > 0 {
			c.tolerance = tolerance
		}
	}
}

// DistanceCache is a bounded map of entity id to the last distance computed
// for it. An entry is reused while it is younger than the TTL and neither the
// camera nor the entity moved beyond the position tolerance.
//
// When full, inserting a new id evicts the entry with the oldest frame, ties
// going to the least recently written one.
//
// It is not safe for concurrent use.
type DistanceCache struct {
	capacity  int
	ttl       uint32
	tolerance float32

	entries map[uint32]*entry
	order   entryHeap
	seq     uint64

	hits      uint64
	misses    uint64
	evictions uint64
}

func New(options ...Option) *DistanceCache {
	c := &DistanceCache{
		capacity:  DefaultCapacity,
		ttl:       DefaultTTLFrames,
		tolerance: DefaultPositionTolerance,
	}

	for _, o := range options {
		o(c)
	}

	c.entries = make(map[uint32]*entry, c.capacity)
	c.order = make(entryHeap, 0, c.capacity)
	return c
}

// GetOrComputeDistance is GetOrComputeDistanceWithFrame at frame 0.
func (c *DistanceCache) GetOrComputeDistance(cameraPos, entityPos spatial.Vector3f, id uint32) float32 {
	return c.GetOrComputeDistanceWithFrame(cameraPos, entityPos, id, 0)
}

// GetOrComputeDistanceWithFrame returns the cached distance of id when it is
// still valid at frame for the given positions. Otherwise it computes the
// distance and stores it.
func (c *DistanceCache) GetOrComputeDistanceWithFrame(cameraPos, entityPos spatial.Vector3f, id uint32, frame uint32) float32 {
	if e, ok := c.entries[id]; ok &&
		e.IsValid(frame, c.ttl) &&
		e.IsPositionAccurate(cameraPos, entityPos, c.tolerance) {
		c.hits++
		return e.Distance
	}

	c.misses++
	distance := (float32)(spatial.Distance(cameraPos, entityPos))
	c.InsertCachedDistance(id, distance, frame, cameraPos, entityPos)
	return distance
}

// InsertCachedDistance stores a distance for id, replacing any previous one.
func (c *DistanceCache) InsertCachedDistance(id uint32, distance float32, frame uint32, cameraPos, entityPos spatial.Vector3f) {
	c.seq++

	if e, ok := c.entries[id]; ok {
		e.CachedDistance = NewCachedDistance(distance, frame, cameraPos, entityPos)
		e.seq = c.seq
		heap.Fix(&c.order, e.index)
		return
	}

	if len(c.entries) >= c.capacity {
		oldest := heap.Pop(&c.order).(*entry)
		delete(c.entries, oldest.id)
		c.evictions++
	}

	e := &entry{
		CachedDistance: NewCachedDistance(distance, frame, cameraPos, entityPos),
		id:             id,
		seq:            c.seq,
	}
	c.entries[id] = e
	heap.Push(&c.order, e)
}

// CleanupExpired removes the entries that are no longer valid at frame and
// returns how many were removed. Removed entries count as evictions.
func (c *DistanceCache) CleanupExpired(frame uint32) int {
	removed := 0

	for len(c.order) > 0 && !c.order[0].IsValid(frame, c.ttl) {
		e := heap.Pop(&c.order).(*entry)
		delete(c.entries, e.id)
		removed++
	}

	c.evictions += (uint64)(removed)
	return removed
}

// Get returns the entry of id, valid or not.
func (c *DistanceCache) Get(id uint32) (CachedDistance, bool) {
	e, ok := c.entries[id]
	if !ok {
		return CachedDistance{}, false
	}
	return e.CachedDistance, true
}

// Remove drops the entry of id. It does not count as an eviction.
func (c *DistanceCache) Remove(id uint32) bool {
	e, ok := c.entries[id]
	if !ok {
		return false
	}

	heap.Remove(&c.order, e.index)
	delete(c.entries, id)
	return true
}

// Clear removes every entry and resets the counters.
func (c *DistanceCache) Clear() {
	c.entries = make(map[uint32]*entry, c.capacity)
	c.order = make(entryHeap, 0, c.capacity)
	c.seq = 0
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

func (c *DistanceCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
		Capacity:  c.capacity,
		HitRate:   hitRate(c.hits, c.misses),
	}
}

func (c *DistanceCache) Len() int {
	return len(c.entries)
}

func (c *DistanceCache) IsEmpty() bool {
	return len(c.entries) == 0
}

func (c *DistanceCache) Capacity() int {
	return c.capacity
}
