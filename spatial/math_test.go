package spatial

import (
	"math"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestEqualWithEpsilon(t *testing.T) {
	require.True(t, EqualWithEpsilon(0.1, 0.2, 0.11))
	require.False(t, EqualWithEpsilon(0.1, 0.3, 0.11))
}

func TestVectorClass(t *testing.T) {
	zeroVector := Vector3f{0, 0, 0}
	oneVector := Vector3f{1, 1, 1}

	require.True(t, zeroVector.Equal(NewVector3f(0, 0, 0)))
	require.True(t, oneVector.EqualWithEpsilon(Vector3f{0.9, 1.1, 1}, 0.11))

	require.True(t, oneVector.Equal(Add(zeroVector, oneVector)))
	require.True(t, oneVector.Equal(Sub(oneVector, zeroVector)))
	require.True(t, zeroVector.Equal(Mul(oneVector, 0)))

	l1Vector := Vector3f{1, 0, 0}
	require.True(t, 1 == l1Vector.Length())

	v := NewVector3f(1, 2, 3)
	require.Equal(t, float32(1), v.X())
	require.Equal(t, float32(2), v.Y())
	require.Equal(t, float32(3), v.Z())
}

func TestVectorIsFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	require.True(t, NewVector3f(1, 2, 3).IsFinite())
	require.False(t, NewVector3f(nan, 0, 0).IsFinite())
	require.False(t, NewVector3f(0, inf, 0).IsFinite())
	require.False(t, NewVector3f(0, 0, -inf).IsFinite())
}

func TestDistance(t *testing.T) {
	require.Equal(t, 5.0, Distance(Vector3f{0, 0, 0}, Vector3f{3, 4, 0}))
	require.Equal(t, 10.0, Distance(Vector3f{0, 0, 0}, Vector3f{10, 0, 0}))

	// far from the origin, float32 squared distances lose the centimeters
	// but the float64 computation does not.
	a := Vector3f{100000, 0, 100000}
	b := Vector3f{100000.0078125, 0, 100000}
	require.InDelta(t, 0.0078125, Distance(a, b), 1e-9)
}

func TestVectorJSON(t *testing.T) {
	b, err := json.Marshal(NewVector3f(1, 2.5, -3))
	require.NoError(t, err)
	require.JSONEq(t, `{"x":1,"y":2.5,"z":-3}`, string(b))

	var v Vector3f
	require.NoError(t, json.Unmarshal([]byte(`{"x":4,"z":6}`), &v))
	require.True(t, v.Equal(NewVector3f(4, 0, 6)))

	require.Error(t, json.Unmarshal([]byte(`{"x":"a"}`), &v))
}
