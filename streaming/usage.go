package streaming

import (
	"github.com/aukilabs/raido/spatial"
)

// LevelUsage is the number of loaded chunks of a level and its limit.
type LevelUsage struct {
	Level  spatial.LODLevel `json:"level"`
	Loaded int              `json:"loaded"`
	Max    int              `json:"max"`
}

// Usage summarizes what a manager currently holds.
type Usage struct {
	Levels          []LevelUsage `json:"levels"`
	TotalChunks     int          `json:"total_chunks"`
	Generating      int          `json:"generating"`
	GenerationQueue int          `json:"generation_queue"`
	IndexedEntities int          `json:"indexed_entities"`
}

func (m *Manager) Usage() Usage {
	usage := Usage{
		Levels:          make([]LevelUsage, 0, len(spatial.Levels)),
		TotalChunks:     len(m.chunks),
		GenerationQueue: len(m.generationQueue),
	}

	for _, level := range spatial.Levels {
		usage.Levels = append(usage.Levels, LevelUsage{
			Level:  level,
			Loaded: m.loadedCount[level],
			Max:    m.config.MaxLoaded.Level(level),
		})
	}

	for _, c := range m.chunks {
		switch c.State {
		case ChunkGenerating:
			usage.Generating++
		case ChunkLoaded:
			usage.IndexedEntities += len(c.Entities)
		}
	}

	return usage
}
