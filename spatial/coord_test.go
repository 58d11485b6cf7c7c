package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLODLevel(t *testing.T) {
	t.Run("constants", func(t *testing.T) {
		require.Equal(t, float32(10000), LODMacro.ChunkSize())
		require.Equal(t, float32(2000), LODRegion.ChunkSize())
		require.Equal(t, float32(400), LODLocal.ChunkSize())
		require.Equal(t, float32(100), LODDetail.ChunkSize())
		require.Equal(t, float32(25), LODMicro.ChunkSize())

		require.Equal(t, float32(MacroStreamingRadius), LODMacro.StreamingRadius())
		require.Equal(t, float32(MicroStreamingRadius), LODMicro.StreamingRadius())

		require.Equal(t, int32(5), LODMacro.Subdivisions())
		require.Equal(t, int32(5), LODRegion.Subdivisions())
		require.Equal(t, int32(4), LODLocal.Subdivisions())
		require.Equal(t, int32(4), LODDetail.Subdivisions())
		require.Equal(t, int32(0), LODMicro.Subdivisions())
	})

	t.Run("chunk sizes divide evenly", func(t *testing.T) {
		for _, l := range Levels {
			finer, ok := l.Finer()
			if !ok {
				continue
			}
			require.Equal(t, l.ChunkSize(), finer.ChunkSize()*float32(l.Subdivisions()))
		}
	})

	t.Run("ordering", func(t *testing.T) {
		require.True(t, LODMacro < LODRegion)
		require.True(t, LODDetail < LODMicro)

		_, ok := LODMacro.Coarser()
		require.False(t, ok)
		_, ok = LODMicro.Finer()
		require.False(t, ok)
	})

	t.Run("parse", func(t *testing.T) {
		for _, l := range Levels {
			parsed, err := ParseLODLevel(l.String())
			require.NoError(t, err)
			require.Equal(t, l, parsed)
		}

		l, err := ParseLODLevel(" Local ")
		require.NoError(t, err)
		require.Equal(t, LODLocal, l)

		_, err = ParseLODLevel("nano")
		require.Error(t, err)
	})

	t.Run("text", func(t *testing.T) {
		b, err := LODDetail.MarshalText()
		require.NoError(t, err)
		require.Equal(t, "detail", string(b))

		var l LODLevel
		require.NoError(t, l.UnmarshalText([]byte("micro")))
		require.Equal(t, LODMicro, l)

		_, err = LODLevel(42).MarshalText()
		require.Error(t, err)
	})
}

func TestWorldCoordCreation(t *testing.T) {
	coord := NewWorldCoord(LODLocal, 5, -3)
	require.Equal(t, LODLocal, coord.Level)
	require.Equal(t, int32(5), coord.X)
	require.Equal(t, int32(-3), coord.Z)
	require.Equal(t, "local(5,-3)", coord.String())
}

func TestWorldCoordFromWorldPos(t *testing.T) {
	coord := FromWorldPos(Vector3f{1200, 0, -800}, LODLocal)
	require.Equal(t, NewWorldCoord(LODLocal, 3, -2), coord)

	t.Run("floors negative positions", func(t *testing.T) {
		coord := FromWorldPos(Vector3f{-0.5, 0, -399.9}, LODLocal)
		require.Equal(t, NewWorldCoord(LODLocal, -1, -1), coord)

		coord = FromWorldPos(Vector3f{-400, 0, 0}, LODLocal)
		require.Equal(t, NewWorldCoord(LODLocal, -1, 0), coord)
	})

	t.Run("ignores height", func(t *testing.T) {
		require.Equal(t,
			FromWorldPos(Vector3f{10, 0, 10}, LODMicro),
			FromWorldPos(Vector3f{10, 5000, 10}, LODMicro),
		)
	})

	t.Run("non finite positions map to a defined cell", func(t *testing.T) {
		nan := float32(math.NaN())
		inf := float32(math.Inf(1))

		coord := FromWorldPos(Vector3f{nan, 0, inf}, LODMicro)
		require.Equal(t, int32(0), coord.X)
		require.Equal(t, int32(math.MaxInt32), coord.Z)
	})
}

func TestWorldCoordToWorldPos(t *testing.T) {
	pos := NewWorldCoord(LODLocal, 2, -1).ToWorldPos()
	require.Equal(t, float32(1000), pos.X())
	require.Equal(t, float32(0), pos.Y())
	require.Equal(t, float32(-200), pos.Z())
}

func TestWorldCoordRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		pos := Vector3f{
			x: (r.Float32() - 0.5) * 200000,
			y: (r.Float32() - 0.5) * 1000,
			z: (r.Float32() - 0.5) * 200000,
		}

		for _, level := range Levels {
			center := FromWorldPos(pos, level).ToWorldPos()
			half := float64(level.ChunkSize()) / 2

			require.LessOrEqual(t, math.Abs(float64(center.x-pos.x)), half)
			require.LessOrEqual(t, math.Abs(float64(center.z-pos.z)), half)
		}
	}
}

func TestWorldCoordBounds(t *testing.T) {
	coord := NewWorldCoord(LODDetail, -2, 3)
	min, max := coord.Bounds()
	require.True(t, min.Equal(Vector3f{-200, 0, 300}))
	require.True(t, max.Equal(Vector3f{-100, 0, 400}))

	require.True(t, coord.Contains(Vector3f{-200, 0, 300}))
	require.True(t, coord.Contains(Vector3f{-100.001, 10, 399.999}))
	require.False(t, coord.Contains(Vector3f{-100, 0, 350}))
	require.False(t, coord.Contains(Vector3f{-150, 0, 400}))
}

func TestParentChildRelationships(t *testing.T) {
	localCoord := NewWorldCoord(LODLocal, 8, 12)
	parent, ok := localCoord.Parent()
	require.True(t, ok)
	require.Equal(t, NewWorldCoord(LODRegion, 1, 2), parent)

	children := parent.Children()
	require.Len(t, children, 25)
	require.Contains(t, children, localCoord)

	t.Run("macro has no parent", func(t *testing.T) {
		_, ok := NewWorldCoord(LODMacro, 3, 3).Parent()
		require.False(t, ok)
	})

	t.Run("micro has no children", func(t *testing.T) {
		require.Nil(t, NewWorldCoord(LODMicro, 3, 3).Children())
	})

	t.Run("negative coordinates floor", func(t *testing.T) {
		c := NewWorldCoord(LODLocal, -1, -6)
		parent, ok := c.Parent()
		require.True(t, ok)
		require.Equal(t, NewWorldCoord(LODRegion, -1, -2), parent)
		require.Contains(t, parent.Children(), c)
	})

	t.Run("every coordinate is a child of its parent", func(t *testing.T) {
		for _, level := range Levels[1:] {
			for x := int32(-12); x <= 12; x++ {
				for z := int32(-12); z <= 12; z++ {
					c := NewWorldCoord(level, x, z)
					parent, ok := c.Parent()
					require.True(t, ok)
					require.Contains(t, parent.Children(), c, "coord %s", c)
				}
			}
		}
	})

	t.Run("children are contained in their parent", func(t *testing.T) {
		parent := NewWorldCoord(LODRegion, -3, 7)
		for _, c := range parent.Children() {
			require.True(t, parent.Contains(c.ToWorldPos()))

			p, ok := c.Parent()
			require.True(t, ok)
			require.Equal(t, parent, p)
		}
	})
}

func TestFloorDiv(t *testing.T) {
	require.Equal(t, int32(1), floorDiv(5, 5))
	require.Equal(t, int32(0), floorDiv(4, 5))
	require.Equal(t, int32(-1), floorDiv(-1, 5))
	require.Equal(t, int32(-1), floorDiv(-5, 5))
	require.Equal(t, int32(-2), floorDiv(-6, 5))
}
