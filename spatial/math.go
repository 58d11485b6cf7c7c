package spatial

import (
	"math"

	"github.com/segmentio/encoding/json"
)

func EqualWithEpsilon(a float32, b float32, epsilon float64) bool {
	return math.Abs((float64)(a-b)) <= epsilon
}

func isFinite(v float32) bool {
	return !math.IsNaN((float64)(v)) && !math.IsInf((float64)(v), 0)
}

// Vector3f is a position in the shared world space. Y is the height axis and
// is ignored by the grid, which only partitions the x-z plane.
type Vector3f struct {
	x float32
	y float32
	z float32
}

func NewVector3f(x, y, z float32) Vector3f {
	return Vector3f{x, y, z}
}

func (v Vector3f) X() float32 {
	return v.x
}

func (v Vector3f) Y() float32 {
	return v.y
}

func (v Vector3f) Z() float32 {
	return v.z
}

func (v1 Vector3f) EqualWithEpsilon(v2 Vector3f, epsilon float64) bool {
	return math.Abs((float64)(v1.x-v2.x)) <= epsilon &&
		math.Abs((float64)(v1.y-v2.y)) <= epsilon &&
		math.Abs((float64)(v1.z-v2.z)) <= epsilon
}

func (v1 Vector3f) Equal(v2 Vector3f) bool {
	return v1.x == v2.x && v1.y == v2.y && v1.z == v2.z
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vector3f) IsFinite() bool {
	return isFinite(v.x) && isFinite(v.y) && isFinite(v.z)
}

func Add(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.x + b.x, a.y + b.y, a.z + b.z}
}

func Sub(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.x - b.x, a.y - b.y, a.z - b.z}
}

func Mul(a Vector3f, s float32) Vector3f {
	return Vector3f{a.x * s, a.y * s, a.z * s}
}

// Length is computed in float64 so that large world coordinates keep
// sub-centimeter precision.
func (a Vector3f) Length() float64 {
	x := (float64)(a.x)
	y := (float64)(a.y)
	z := (float64)(a.z)
	return math.Sqrt(x*x + y*y + z*z)
}

// Distance returns the euclidean distance between a and b.
func Distance(a Vector3f, b Vector3f) float64 {
	dx := (float64)(a.x) - (float64)(b.x)
	dy := (float64)(a.y) - (float64)(b.y)
	dz := (float64)(a.z) - (float64)(b.z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

type jsonVector3f struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (v Vector3f) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonVector3f{X: v.x, Y: v.y, Z: v.z})
}

func (v *Vector3f) UnmarshalJSON(b []byte) error {
	var j jsonVector3f
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}

	*v = Vector3f{j.X, j.Y, j.Z}
	return nil
}
