package distcache

import (
	"fmt"
)

// CacheStats is a snapshot of the cache counters.
type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`

	// The ratio of hits over lookups, between 0 and 1.
	HitRate float32 `json:"hit_rate"`
}

func (s CacheStats) String() string {
	return fmt.Sprintf("DistanceCache Stats: %d/%d entries, %.1f%% hit rate, %d hits, %d misses, %d evictions",
		s.Size,
		s.Capacity,
		s.HitRate*100,
		s.Hits,
		s.Misses,
		s.Evictions,
	)
}

func hitRate(hits, misses uint64) float32 {
	if hits+misses == 0 {
		return 0
	}
	return (float32)(hits) / (float32)(hits+misses)
}
