package spatial

import (
	"math"
	"math/bits"
)

// Morton (Z-order) encoding of 3D positions.
//
// Each axis is quantized to 21 bits with a resolution of 1 world unit and an
// offset of 2^20, which gives a supported range of [-1048576, 1048575] on each
// axis. The 3 quantized values are bit-interleaved (x in bit 0, y in bit 1, z
// in bit 2) into the 63 low bits of a uint64. Decoding returns the center of
// the quantization step, so a round trip drifts by at most 0.5 on each axis.

const (
	mortonBitsPerAxis = 21
	mortonUsedBits    = 3 * mortonBitsPerAxis
	mortonOffset      = 1 << (mortonBitsPerAxis - 1)
	mortonMaxQuantum  = 1<<mortonBitsPerAxis - 1
	mortonAxisMask    = 0x1fffff

	MortonMinCoord = -mortonOffset
	MortonMaxCoord = mortonOffset - 1
)

// MortonKey3 is a Z-order key of a 3D position.
type MortonKey3 uint64

func MortonKeyFromPosition(pos Vector3f) MortonKey3 {
	x := quantizeMortonAxis(pos.x)
	y := quantizeMortonAxis(pos.y)
	z := quantizeMortonAxis(pos.z)
	return MortonKey3(spreadBits(x) | spreadBits(y)<<1 | spreadBits(z)<<2)
}

func MortonKeyFromRaw(v uint64) MortonKey3 {
	return MortonKey3(v)
}

func (k MortonKey3) Raw() uint64 {
	return uint64(k)
}

// Position decodes the key back to the center of its quantization step.
func (k MortonKey3) Position() Vector3f {
	v := uint64(k)
	return Vector3f{
		x: dequantizeMortonAxis(compactBits(v)),
		y: dequantizeMortonAxis(compactBits(v >> 1)),
		z: dequantizeMortonAxis(compactBits(v >> 2)),
	}
}

// CommonPrefixLength returns the number of equal leading bits of the two keys,
// out of the 63 bits a key uses.
//
// Longer prefixes tend to mean closer positions but this is only a coarse
// heuristic: two adjacent positions on each side of a large power of two
// boundary share a short prefix. It must not be used for exact neighbour
// queries.
func (k MortonKey3) CommonPrefixLength(other MortonKey3) uint32 {
	diff := (uint64(k) ^ uint64(other)) << (64 - mortonUsedBits)
	if diff == 0 {
		return mortonUsedBits
	}
	return uint32(bits.LeadingZeros64(diff))
}

func quantizeMortonAxis(v float32) uint64 {
	q := math.Floor((float64)(v)) + mortonOffset
	if !(q >= 0) {
		return 0
	}
	if q > mortonMaxQuantum {
		return mortonMaxQuantum
	}
	return uint64(q)
}

func dequantizeMortonAxis(q uint64) float32 {
	return (float32)((float64)(q) - mortonOffset + 0.5)
}

// spreadBits inserts two zero bits between each of the 21 low bits of v.
func spreadBits(v uint64) uint64 {
	v &= mortonAxisMask
	v = (v | v<<32) & 0x1f00000000ffff
	v = (v | v<<16) & 0x1f0000ff0000ff
	v = (v | v<<8) & 0x100f00f00f00f00f
	v = (v | v<<4) & 0x10c30c30c30c30c3
	v = (v | v<<2) & 0x1249249249249249
	return v
}

// compactBits is the inverse of spreadBits.
func compactBits(v uint64) uint64 {
	v &= 0x1249249249249249
	v = (v ^ (v >> 2)) & 0x10c30c30c30c30c3
	v = (v ^ (v >> 4)) & 0x100f00f00f00f00f
	v = (v ^ (v >> 8)) & 0x1f0000ff0000ff
	v = (v ^ (v >> 16)) & 0x1f00000000ffff
	v = (v ^ (v >> 32)) & mortonAxisMask
	return v
}
