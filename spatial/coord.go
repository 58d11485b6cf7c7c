package spatial

import (
	"fmt"
	"math"
)

// WorldCoord identifies exactly one grid cell: a (x, z) cell index at a given
// level of detail. Cells of one level tile the x-z plane.
type WorldCoord struct {
	Level LODLevel `json:"level"`
	X     int32    `json:"x"`
	Z     int32    `json:"z"`
}

func NewWorldCoord(level LODLevel, x, z int32) WorldCoord {
	return WorldCoord{Level: level, X: x, Z: z}
}

// FromWorldPos returns the cell that contains pos at the given level. Cell
// indexes are floored so negative positions map to negative cells without a
// gap around zero.
func FromWorldPos(pos Vector3f, level LODLevel) WorldCoord {
	size := level.ChunkSize()
	return WorldCoord{
		Level: level,
		X:     cellIndex(pos.x, size),
		Z:     cellIndex(pos.z, size),
	}
}

// ToWorldPos returns the center of the cell. Height is not part of a cell so
// y is always 0.
func (c WorldCoord) ToWorldPos() Vector3f {
	size := (float64)(c.Level.ChunkSize())
	return Vector3f{
		x: (float32)(((float64)(c.X) + 0.5) * size),
		y: 0,
		z: (float32)(((float64)(c.Z) + 0.5) * size),
	}
}

// Bounds returns the min and max corners of the cell. The cell covers the
// half-open ranges [min.x, max.x[ and [min.z, max.z[.
func (c WorldCoord) Bounds() (Vector3f, Vector3f) {
	size := (float64)(c.Level.ChunkSize())
	min := Vector3f{
		x: (float32)((float64)(c.X) * size),
		z: (float32)((float64)(c.Z) * size),
	}
	max := Vector3f{
		x: (float32)(((float64)(c.X) + 1) * size),
		z: (float32)(((float64)(c.Z) + 1) * size),
	}
	return min, max
}

// Contains reports whether pos lies within the cell. Y is ignored.
func (c WorldCoord) Contains(pos Vector3f) bool {
	min, max := c.Bounds()
	return pos.x >= min.x && pos.x < max.x && pos.z >= min.z && pos.z < max.z
}

// StreamingRadius returns the streaming radius of the cell level.
func (c WorldCoord) StreamingRadius() float32 {
	return c.Level.StreamingRadius()
}

// Parent returns the cell of the next coarser level that contains c. It
// returns false for macro cells.
func (c WorldCoord) Parent() (WorldCoord, bool) {
	level, ok := c.Level.Coarser()
	if !ok {
		return WorldCoord{}, false
	}

	ratio := level.Subdivisions()
	return WorldCoord{
		Level: level,
		X:     floorDiv(c.X, ratio),
		Z:     floorDiv(c.Z, ratio),
	}, true
}

// Children returns the cells of the next finer level that tile c, ordered by
// x then z. It returns nil for micro cells.
func (c WorldCoord) Children() []WorldCoord {
	level, ok := c.Level.Finer()
	if !ok {
		return nil
	}

	ratio := c.Level.Subdivisions()
	children := make([]WorldCoord, 0, ratio*ratio)
	for dx := int32(0); dx < ratio; dx++ {
		for dz := int32(0); dz < ratio; dz++ {
			children = append(children, WorldCoord{
				Level: level,
				X:     c.X*ratio + dx,
				Z:     c.Z*ratio + dz,
			})
		}
	}
	return children
}

func (c WorldCoord) String() string {
	return fmt.Sprintf("%s(%d,%d)", c.Level, c.X, c.Z)
}

// Less orders coordinates by level, then x, then z.
func (c WorldCoord) Less(o WorldCoord) bool {
	if c.Level != o.Level {
		return c.Level < o.Level
	}
	if c.X != o.X {
		return c.X < o.X
	}
	return c.Z < o.Z
}

// cellIndex floors v/size into an int32 cell index. NaN maps to cell 0 and
// values beyond the int32 range are clamped so the conversion is always
// defined.
func cellIndex(v float32, size float32) int32 {
	q := math.Floor((float64)(v) / (float64)(size))
	switch {
	case math.IsNaN(q):
		return 0
	case q <= math.MinInt32:
		return math.MinInt32
	case q >= math.MaxInt32:
		return math.MaxInt32
	}
	return (int32)(q)
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
