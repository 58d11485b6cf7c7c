package spatial

import (
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeInvalidLODLevel = "invalid_lod_level"
)

// LODLevel is a level of detail of the world grid. Levels are ordered from
// the coarsest (LODMacro) to the finest (LODMicro).
type LODLevel uint8

const (
	LODMacro LODLevel = iota
	LODRegion
	LODLocal
	LODDetail
	LODMicro
)

// Levels lists every level from the coarsest to the finest.
var Levels = [...]LODLevel{LODMacro, LODRegion, LODLocal, LODDetail, LODMicro}

const (
	MacroChunkSize  = 10000
	RegionChunkSize = 2000
	LocalChunkSize  = 400
	DetailChunkSize = 100
	MicroChunkSize  = 25

	MacroStreamingRadius  = 50000
	RegionStreamingRadius = 20000
	LocalStreamingRadius  = 5000
	DetailStreamingRadius = 2000
	MicroStreamingRadius  = 500
)

type levelInfo struct {
	name            string
	chunkSize       float32
	streamingRadius float32
	subdivisions    int32
}

// Chunk sizes divide evenly by the subdivision ratio of the coarser level,
// which is what makes parent/child containment exact.
var levelInfos = [...]levelInfo{
	LODMacro:  {"macro", MacroChunkSize, MacroStreamingRadius, 5},
	LODRegion: {"region", RegionChunkSize, RegionStreamingRadius, 5},
	LODLocal:  {"local", LocalChunkSize, LocalStreamingRadius, 4},
	LODDetail: {"detail", DetailChunkSize, DetailStreamingRadius, 4},
	LODMicro:  {"micro", MicroChunkSize, MicroStreamingRadius, 0},
}

func (l LODLevel) Valid() bool {
	return l <= LODMicro
}

func (l LODLevel) info() levelInfo {
	if !l.Valid() {
		return levelInfos[LODMicro]
	}
	return levelInfos[l]
}

// ChunkSize returns the side length of a cell at this level.
func (l LODLevel) ChunkSize() float32 {
	return l.info().chunkSize
}

// StreamingRadius returns the distance from the viewpoint within which cells
// of this level are active.
func (l LODLevel) StreamingRadius() float32 {
	return l.info().streamingRadius
}

// Subdivisions returns how many cells of the next finer level fit along one
// axis of a cell of this level. Micro returns 0.
func (l LODLevel) Subdivisions() int32 {
	return l.info().subdivisions
}

// Finer returns the next finer level.
func (l LODLevel) Finer() (LODLevel, bool) {
	if l >= LODMicro {
		return l, false
	}
	return l + 1, true
}

// Coarser returns the next coarser level.
func (l LODLevel) Coarser() (LODLevel, bool) {
	if l == LODMacro || !l.Valid() {
		return l, false
	}
	return l - 1, true
}

func (l LODLevel) String() string {
	if !l.Valid() {
		return "unknown"
	}
	return levelInfos[l].name
}

func ParseLODLevel(s string) (LODLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, l := range Levels {
		if levelInfos[l].name == name {
			return l, nil
		}
	}

	return 0, errors.New("unknown lod level").
		WithType(ErrTypeInvalidLODLevel).
		WithTag("level", s)
}

func (l LODLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, errors.New("unknown lod level").
			WithType(ErrTypeInvalidLODLevel).
			WithTag("level", uint8(l))
	}
	return []byte(l.String()), nil
}

func (l *LODLevel) UnmarshalText(b []byte) error {
	level, err := ParseLODLevel(string(b))
	if err != nil {
		return err
	}
	*l = level
	return nil
}
