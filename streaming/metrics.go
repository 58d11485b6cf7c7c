package streaming

import (
	"time"

	"github.com/aukilabs/raido/distcache"
	"github.com/aukilabs/raido/spatial"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	levelLabel = "level"
)

var (
	streamChunkLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_chunk_loads",
		Help: "The number of chunks loaded into the spatial index.",
	}, []string{levelLabel})

	streamChunkUnloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_chunk_unloads",
		Help: "The number of chunks removed from streaming.",
	}, []string{levelLabel})

	streamLoadedChunks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stream_loaded_chunks",
		Help: "The number of chunks currently loaded.",
	}, []string{levelLabel})

	streamCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_distance_cache_hits",
		Help: "The number of distances served from the distance cache.",
	})

	streamCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_distance_cache_misses",
		Help: "The number of distances computed because of a distance cache miss.",
	})

	streamCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_distance_cache_evictions",
		Help: "The number of entries evicted from the distance cache.",
	})

	streamTickLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "stream_tick_latency",
		Help: "The time to compute the streaming update of a frame.",
	})
)

func instrumentChunkLoad(level spatial.LODLevel) {
	labels := prometheus.Labels{levelLabel: level.String()}
	streamChunkLoads.With(labels).Inc()
	streamLoadedChunks.With(labels).Inc()
}

func instrumentChunkUnload(level spatial.LODLevel, wasLoaded bool) {
	labels := prometheus.Labels{levelLabel: level.String()}
	streamChunkUnloads.With(labels).Inc()
	if wasLoaded {
		streamLoadedChunks.With(labels).Dec()
	}
}

func instrumentReleaseLoaded(level spatial.LODLevel, count int) {
	if count == 0 {
		return
	}

	streamLoadedChunks.
		With(prometheus.Labels{levelLabel: level.String()}).
		Sub((float64)(count))
}

// instrumentCacheStats reports the counters accumulated since the previous
// snapshot. A cleared cache restarts from zero.
func instrumentCacheStats(previous, current distcache.CacheStats) {
	if current.Hits < previous.Hits ||
		current.Misses < previous.Misses ||
		current.Evictions < previous.Evictions {
		previous = distcache.CacheStats{}
	}

	streamCacheHits.Add((float64)(current.Hits - previous.Hits))
	streamCacheMisses.Add((float64)(current.Misses - previous.Misses))
	streamCacheEvictions.Add((float64)(current.Evictions - previous.Evictions))
}

func instrumentTickLatency(start time.Time) {
	streamTickLatency.Observe(time.Since(start).Seconds())
}
