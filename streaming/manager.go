// Package streaming decides which chunks of the world grid are loaded,
// generated and unloaded as a viewpoint moves.
package streaming

import (
	"sort"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/raido/distcache"
	"github.com/aukilabs/raido/spatial"
)

const (
	ErrTypeChunkNotTracked    = "chunk_not_tracked"
	ErrTypeChunkAlreadyLoaded = "chunk_already_loaded"
)

// Update is the result of a streaming tick.
type Update struct {
	Frame    uint32               `json:"frame"`
	Loaded   []spatial.WorldCoord `json:"loaded,omitempty"`
	Unloaded []UnloadedChunk      `json:"unloaded,omitempty"`
}

// IsEmpty reports whether the tick changed nothing.
func (u Update) IsEmpty() bool {
	return len(u.Loaded) == 0 && len(u.Unloaded) == 0
}

// Option configures a Manager.
type Option func(*Manager)

// WithIndex sets the spatial index the manager loads chunks into.
func WithIndex(index spatial.Index) Option {
	return func(m *Manager) {
		m.index = index
	}
}

// WithCache sets the distance cache used by Distance.
func WithCache(cache *distcache.DistanceCache) Option {
	return func(m *Manager) {
		m.cache = cache
	}
}

// Manager tracks the chunks around a single viewpoint.
//
// A chunk enters the manager queued when it comes within the streaming radius
// of its level, is handed to a generator with NextToGenerate and is loaded
// once FinalizeChunk indexes its content. It leaves the manager when it goes
// beyond its streaming radius times the unload hysteresis, or when its level
// holds more chunks than allowed and it has been out of range for long
// enough.
//
// A Manager is not safe for concurrent use.
type Manager struct {
	config Config
	index  spatial.Index
	cache  *distcache.DistanceCache

	chunks          map[spatial.WorldCoord]*Chunk
	loadedCount     [len(spatial.Levels)]int
	generationQueue []spatial.WorldCoord

	viewpoint    spatial.Vector3f
	hasViewpoint bool
	frame        uint32

	reportedCacheStats distcache.CacheStats
}

func NewManager(config Config, options ...Option) *Manager {
	m := &Manager{
		config: config,
		chunks: make(map[spatial.WorldCoord]*Chunk),
	}

	for _, o := range options {
		o(m)
	}

	if m.index == nil {
		m.index = spatial.NewHierarchicalQuadtree()
	}
	if m.cache == nil {
		m.cache = distcache.New(config.Cache.Options()...)
	}
	return m
}

// Tick moves the viewpoint and computes the chunks to load and unload for the
// given frame, within the frame budgets. Non finite viewpoints are ignored.
func (m *Manager) Tick(viewpoint spatial.Vector3f, frame uint32) Update {
	update := Update{Frame: frame}
	if !viewpoint.IsFinite() {
		return update
	}

	start := time.Now()
	defer instrumentTickLatency(start)

	m.viewpoint = viewpoint
	m.hasViewpoint = true
	m.frame = frame

	for _, c := range m.chunks {
		c.DistanceToActive = (float32)(spatial.Distance(viewpoint, c.Coord.ToWorldPos()))
		if c.DistanceToActive <= c.Coord.StreamingRadius() {
			c.LastSeenFrame = frame
		}
	}

	update.Unloaded = m.unloadChunks(frame)
	update.Loaded = m.queueChunks(frame)
	if !update.IsEmpty() {
		logs.WithTag("frame", frame).
			WithTag("queued", len(update.Loaded)).
			WithTag("unloaded", len(update.Unloaded)).
			Debug("streaming chunks changed")
	}

	if m.shouldCleanupCache(frame) {
		m.cache.CleanupExpired(frame)
	}

	stats := m.cache.Stats()
	instrumentCacheStats(m.reportedCacheStats, stats)
	m.reportedCacheStats = stats

	return update
}

func (m *Manager) unloadChunks(frame uint32) []UnloadedChunk {
	type candidate struct {
		coord spatial.WorldCoord
		score float64
	}

	var candidates []candidate
	for coord, c := range m.chunks {
		if m.shouldUnload(c, frame) {
			candidates = append(candidates, candidate{
				coord: coord,
				score: (float64)(c.DistanceToActive) + (float64)(age(frame, c.LastSeenFrame)),
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].coord.Less(candidates[j].coord)
	})

	if len(candidates) > m.config.UnloadBudget {
		candidates = candidates[:m.config.UnloadBudget]
	}

	var unloaded []UnloadedChunk
	for _, c := range candidates {
		unloaded = append(unloaded, m.unloadChunk(c.coord))
	}
	return unloaded
}

func (m *Manager) shouldUnload(c *Chunk, frame uint32) bool {
	radius := (float64)(c.Coord.StreamingRadius()) * m.config.UnloadHysteresis
	if (float64)(c.DistanceToActive) > radius {
		return true
	}

	level := c.Coord.Level
	return m.loadedCount[level] > m.config.MaxLoaded.Level(level) &&
		age(frame, c.LastSeenFrame) >= m.config.IdleUnloadFrames
}

func (m *Manager) unloadChunk(coord spatial.WorldCoord) UnloadedChunk {
	c := m.chunks[coord]
	delete(m.chunks, coord)

	wasLoaded := c.State == ChunkLoaded
	if wasLoaded {
		m.loadedCount[coord.Level]--
	}

	if c.State == ChunkQueued {
		m.removeFromGenerationQueue(coord)
	}

	m.index.RemoveNode(coord)
	for _, id := range c.Entities {
		m.cache.Remove(id)
	}

	instrumentChunkUnload(coord.Level, wasLoaded)

	return UnloadedChunk{
		Coord:    coord,
		Entities: c.Entities,
	}
}

func (m *Manager) queueChunks(frame uint32) []spatial.WorldCoord {
	type candidate struct {
		coord    spatial.WorldCoord
		priority float32
	}

	var candidates []candidate
	for _, coord := range m.index.StreamingCoords(m.viewpoint) {
		if _, ok := m.chunks[coord]; ok {
			continue
		}

		distance := (float32)(spatial.Distance(m.viewpoint, coord.ToWorldPos()))
		candidates = append(candidates, candidate{
			coord:    coord,
			priority: chunkPriority(coord.Level, distance),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority > candidates[j].priority
	})

	if len(candidates) > m.config.LoadBudget {
		candidates = candidates[:m.config.LoadBudget]
	}

	var queued []spatial.WorldCoord
	for _, c := range candidates {
		m.chunks[c.coord] = newChunk(c.coord, m.viewpoint, frame)
		m.generationQueue = append(m.generationQueue, c.coord)
		queued = append(queued, c.coord)
	}
	return queued
}

func (m *Manager) shouldCleanupCache(frame uint32) bool {
	return !m.config.DisableDistanceCache &&
		!m.config.DisableCacheCleanup &&
		m.config.CleanupInterval > 0 &&
		frame%m.config.CleanupInterval == 0
}

// NextToGenerate hands out the queued chunk with the highest priority and
// marks it as generating.
func (m *Manager) NextToGenerate() (GenerationJob, bool) {
	best := -1
	var bestChunk *Chunk

	for i, coord := range m.generationQueue {
		c := m.chunks[coord]
		if bestChunk == nil ||
			c.Priority() > bestChunk.Priority() ||
			(c.Priority() == bestChunk.Priority() && coord.Less(bestChunk.Coord)) {
			best = i
			bestChunk = c
		}
	}

	if bestChunk == nil {
		return GenerationJob{}, false
	}

	m.generationQueue = append(m.generationQueue[:best], m.generationQueue[best+1:]...)
	bestChunk.State = ChunkGenerating

	return GenerationJob{
		Coord:    bestChunk.Coord,
		Seed:     bestChunk.Seed,
		Priority: bestChunk.Priority(),
	}, true
}

func (m *Manager) removeFromGenerationQueue(coord spatial.WorldCoord) {
	for i, c := range m.generationQueue {
		if c == coord {
			m.generationQueue = append(m.generationQueue[:i], m.generationQueue[i+1:]...)
			return
		}
	}
}

// FinalizeChunk indexes the generated content of a chunk and marks it as
// loaded. Placements outside of the chunk are skipped and their number is
// returned.
func (m *Manager) FinalizeChunk(coord spatial.WorldCoord, placements []Placement) (int, error) {
	c, ok := m.chunks[coord]
	if !ok {
		return 0, errors.New("chunk is not tracked").
			WithType(ErrTypeChunkNotTracked).
			WithTag("coord", coord.String())
	}

	if c.State == ChunkLoaded {
		return 0, errors.New("chunk is already loaded").
			WithType(ErrTypeChunkAlreadyLoaded).
			WithTag("coord", coord.String())
	}

	if c.State == ChunkQueued {
		m.removeFromGenerationQueue(coord)
	}

	rejected := 0
	for _, p := range placements {
		if !coord.Contains(p.Position) || !m.index.InsertEntity(p.ID, p.Position, coord.Level) {
			rejected++
			continue
		}
		c.Entities = append(c.Entities, p.ID)
	}

	c.State = ChunkLoaded
	m.loadedCount[coord.Level]++
	instrumentChunkLoad(coord.Level)

	return rejected, nil
}

// Distance returns the distance between the viewpoint and an entity, served
// from the distance cache unless it is disabled.
func (m *Manager) Distance(id uint32, pos spatial.Vector3f) float32 {
	if m.config.DisableDistanceCache {
		return (float32)(spatial.Distance(m.viewpoint, pos))
	}
	return m.cache.GetOrComputeDistanceWithFrame(m.viewpoint, pos, id, m.frame)
}

func (m *Manager) QueryEntities(center spatial.Vector3f, radius float32, level spatial.LODLevel) []uint32 {
	return m.index.QueryEntities(center, radius, level)
}

// StreamingCoords returns the coordinates in streaming range of the current
// viewpoint. It returns nil before the first tick.
func (m *Manager) StreamingCoords() []spatial.WorldCoord {
	if !m.hasViewpoint {
		return nil
	}
	return m.index.StreamingCoords(m.viewpoint)
}

// Chunk returns a copy of a tracked chunk.
func (m *Manager) Chunk(coord spatial.WorldCoord) (Chunk, bool) {
	c, ok := m.chunks[coord]
	if !ok {
		return Chunk{}, false
	}
	return *c, true
}

func (m *Manager) IndexDebugInfo() spatial.DebugInfo {
	return m.index.GetDebugInfo()
}

func (m *Manager) CacheStats() distcache.CacheStats {
	return m.cache.Stats()
}

func (m *Manager) Viewpoint() (spatial.Vector3f, bool) {
	return m.viewpoint, m.hasViewpoint
}

func (m *Manager) Frame() uint32 {
	return m.frame
}

func (m *Manager) Config() Config {
	return m.config
}

// Close releases the loaded chunks from the shared metrics. The manager must
// not be used afterwards.
func (m *Manager) Close() {
	for _, level := range spatial.Levels {
		instrumentReleaseLoaded(level, m.loadedCount[level])
		m.loadedCount[level] = 0
	}
}

func age(frame, since uint32) uint32 {
	if frame < since {
		return 0
	}
	return frame - since
}
