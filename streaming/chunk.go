package streaming

import (
	"encoding/binary"

	"github.com/aukilabs/raido/spatial"
	"github.com/cespare/xxhash/v2"
)

type ChunkState int

const (
	// A chunk that is tracked and waits for its content to be generated.
	ChunkQueued ChunkState = iota

	// A chunk handed to a generator with NextToGenerate.
	ChunkGenerating

	// A chunk whose content is indexed.
	ChunkLoaded
)

func (s ChunkState) String() string {
	switch s {
	case ChunkQueued:
		return "queued"
	case ChunkGenerating:
		return "generating"
	case ChunkLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

func (s ChunkState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Chunk is a cell of the world grid tracked by the streaming manager.
type Chunk struct {
	Coord            spatial.WorldCoord `json:"coord"`
	State            ChunkState         `json:"state"`
	DistanceToActive float32            `json:"distance_to_active"`
	LastSeenFrame    uint32             `json:"last_seen_frame"`
	Parent           spatial.WorldCoord `json:"parent"`
	HasParent        bool               `json:"has_parent"`
	Seed             uint64             `json:"seed"`
	Entities         []uint32           `json:"entities,omitempty"`
}

func newChunk(coord spatial.WorldCoord, viewpoint spatial.Vector3f, frame uint32) *Chunk {
	parent, hasParent := coord.Parent()

	return &Chunk{
		Coord:            coord,
		State:            ChunkQueued,
		DistanceToActive: (float32)(spatial.Distance(viewpoint, coord.ToWorldPos())),
		LastSeenFrame:    frame,
		Parent:           parent,
		HasParent:        hasParent,
		Seed:             ChunkSeed(coord),
	}
}

// Priority returns the generation priority of the chunk. Closer and finer
// chunks come first.
func (c *Chunk) Priority() float32 {
	return chunkPriority(c.Coord.Level, c.DistanceToActive)
}

func chunkPriority(level spatial.LODLevel, distance float32) float32 {
	return 1 / (distance + 1) * (float32)(level+1)
}

// ChunkSeed returns a deterministic generation seed for a chunk coordinate.
func ChunkSeed(coord spatial.WorldCoord) uint64 {
	var b [9]byte
	b[0] = (byte)(coord.Level)
	binary.LittleEndian.PutUint32(b[1:5], (uint32)(coord.X))
	binary.LittleEndian.PutUint32(b[5:9], (uint32)(coord.Z))
	return xxhash.Sum64(b[:])
}

// Placement is an entity produced by the generation of a chunk.
type Placement struct {
	ID       uint32           `json:"id"`
	Position spatial.Vector3f `json:"position"`
}

// GenerationJob describes a chunk whose content must be generated.
type GenerationJob struct {
	Coord    spatial.WorldCoord `json:"coord"`
	Seed     uint64             `json:"seed"`
	Priority float32            `json:"priority"`
}

// UnloadedChunk is a chunk removed from the manager with the entities that
// were indexed in it.
type UnloadedChunk struct {
	Coord    spatial.WorldCoord `json:"coord"`
	Entities []uint32           `json:"entities,omitempty"`
}
