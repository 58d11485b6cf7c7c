package distcache

import (
	"github.com/aukilabs/raido/spatial"
)

// CachedDistance is a distance computed between a camera and an entity at a
// given frame.
type CachedDistance struct {
	Distance  float32            `json:"distance"`
	Frame     uint32             `json:"frame"`
	MortonKey spatial.MortonKey3 `json:"morton_key"`
	CameraPos spatial.Vector3f   `json:"-"`
	EntityPos spatial.Vector3f   `json:"-"`
}

// NewCachedDistance returns a cached distance keyed by the Morton code of the
// entity position.
func NewCachedDistance(distance float32, frame uint32, cameraPos, entityPos spatial.Vector3f) CachedDistance {
	return CachedDistance{
		Distance:  distance,
		Frame:     frame,
		MortonKey: spatial.MortonKeyFromPosition(entityPos),
		CameraPos: cameraPos,
		EntityPos: entityPos,
	}
}

// IsValid reports whether the entry is younger than ttl frames. Frames older
// than the entry count as age 0.
func (c CachedDistance) IsValid(frame, ttl uint32) bool {
	return age(frame, c.Frame) < ttl
}

// IsPositionAccurate reports whether both the camera and the entity moved by
// strictly less than tolerance since the distance was computed.
func (c CachedDistance) IsPositionAccurate(cameraPos, entityPos spatial.Vector3f, tolerance float32) bool {
	t := (float64)(tolerance)
	return spatial.Distance(c.CameraPos, cameraPos) < t &&
		spatial.Distance(c.EntityPos, entityPos) < t
}

func age(frame, since uint32) uint32 {
	if frame < since {
		return 0
	}
	return frame - since
}

type entry struct {
	CachedDistance

	id    uint32
	seq   uint64
	index int
}

// entryHeap orders entries by frame, then by write order.
type entryHeap []*entry

func (h entryHeap) Len() int {
	return len(h)
}

func (h entryHeap) Less(i, j int) bool {
	if h[i].Frame != h[j].Frame {
		return h[i].Frame < h[j].Frame
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
