package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMortonKeyCreation(t *testing.T) {
	pos := Vector3f{100, 200, 300}
	key := MortonKeyFromPosition(pos)
	decoded := key.Position()

	require.Less(t, Distance(decoded, pos), 1.0)
}

func TestMortonKeyRawConversion(t *testing.T) {
	raw := uint64(0x123456789abcdef0)
	key := MortonKeyFromRaw(raw)
	require.Equal(t, raw, key.Raw())
}

func TestMortonKeyRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 5000; i++ {
		pos := Vector3f{
			x: (r.Float32()*2 - 1) * 1000000,
			y: (r.Float32()*2 - 1) * 1000000,
			z: (r.Float32()*2 - 1) * 1000000,
		}

		decoded := MortonKeyFromPosition(pos).Position()
		require.LessOrEqual(t, math.Abs(float64(decoded.x-pos.x)), 0.5)
		require.LessOrEqual(t, math.Abs(float64(decoded.y-pos.y)), 0.5)
		require.LessOrEqual(t, math.Abs(float64(decoded.z-pos.z)), 0.5)
		require.Less(t, Distance(decoded, pos), 1.0)
	}

	t.Run("supported range bounds", func(t *testing.T) {
		min := Vector3f{MortonMinCoord, MortonMinCoord, MortonMinCoord}
		max := Vector3f{MortonMaxCoord, MortonMaxCoord, MortonMaxCoord}

		require.Less(t, Distance(MortonKeyFromPosition(min).Position(), min), 1.0)
		require.Less(t, Distance(MortonKeyFromPosition(max).Position(), max), 1.0)
	})
}

func TestMortonKeyClamping(t *testing.T) {
	far := MortonKeyFromPosition(Vector3f{1e9, -1e9, 0}).Position()
	require.Equal(t, float32(MortonMaxCoord+0.5), far.x)
	require.Equal(t, float32(MortonMinCoord+0.5), far.y)

	nan := float32(math.NaN())
	decoded := MortonKeyFromPosition(Vector3f{nan, 0, 0}).Position()
	require.Equal(t, float32(MortonMinCoord+0.5), decoded.x)
}

func TestMortonKeyInterleaving(t *testing.T) {
	origin := MortonKeyFromPosition(Vector3f{})

	// moving one quantum on an axis flips the lowest bit of that axis.
	require.Equal(t, origin.Raw()|1, MortonKeyFromPosition(Vector3f{1, 0, 0}).Raw())
	require.Equal(t, origin.Raw()|2, MortonKeyFromPosition(Vector3f{0, 1, 0}).Raw())
	require.Equal(t, origin.Raw()|4, MortonKeyFromPosition(Vector3f{0, 0, 1}).Raw())
}

func TestMortonKeyCommonPrefix(t *testing.T) {
	key1 := MortonKeyFromPosition(Vector3f{100, 100, 100})
	key2 := MortonKeyFromPosition(Vector3f{101, 101, 101})
	key3 := MortonKeyFromPosition(Vector3f{1000, 1000, 1000})

	closePrefix := key1.CommonPrefixLength(key2)
	farPrefix := key1.CommonPrefixLength(key3)
	require.Greater(t, closePrefix, farPrefix)

	require.Equal(t, uint32(63), key1.CommonPrefixLength(key1))
	require.Equal(t, key1.CommonPrefixLength(key3), key3.CommonPrefixLength(key1))

	t.Run("close points share longer prefixes on average", func(t *testing.T) {
		r := rand.New(rand.NewSource(3))

		var closeSum, farSum uint64
		for i := 0; i < 1000; i++ {
			p := Vector3f{
				x: (r.Float32()*2 - 1) * 100000,
				y: (r.Float32()*2 - 1) * 1000,
				z: (r.Float32()*2 - 1) * 100000,
			}
			near := Add(p, Vector3f{r.Float32() - 0.5, r.Float32() - 0.5, r.Float32() - 0.5})
			far := Add(p, Vector3f{50000, 0, -50000})

			key := MortonKeyFromPosition(p)
			closeSum += uint64(key.CommonPrefixLength(MortonKeyFromPosition(near)))
			farSum += uint64(key.CommonPrefixLength(MortonKeyFromPosition(far)))
		}

		require.Greater(t, closeSum, farSum)
	})
}
