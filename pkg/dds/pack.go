package dds

import "math"

// Small floats share the half precision exponent: 5 bits with bias 15.
const (
	smallExpBias = 15
	smallExpMax  = 0x1F
)

// PackR11G11B10 packs three non-negative floats into the unsigned
// 11/11/10 bit float format. Red is in the low bits. Negative values and
// -Inf become 0; values above the largest finite one are clamped to it.
func PackR11G11B10(r, g, b float32) uint32 {
	return packSmallFloat(r, 6) | packSmallFloat(g, 6)<<11 | packSmallFloat(b, 5)<<22
}

// UnpackR11G11B10 is the inverse of PackR11G11B10.
func UnpackR11G11B10(v uint32) (r, g, b float32) {
	return unpackSmallFloat(v&0x7FF, 6), unpackSmallFloat(v>>11&0x7FF, 6), unpackSmallFloat(v>>22&0x3FF, 5)
}

// PackHalf converts v to IEEE 754 half precision, rounding to nearest.
func PackHalf(v float32) uint16 {
	sign := uint16(0)
	if math.Signbit(float64(v)) {
		sign = 0x8000
		v = -v
	}
	if v != v {
		return 0x7E00
	}
	return sign | uint16(packSmallFloat(v, 10))
}

// UnpackHalf converts a half precision value to float32.
func UnpackHalf(h uint16) float32 {
	v := unpackSmallFloat(uint32(h&0x7FFF), 10)
	if h&0x8000 != 0 {
		return -v
	}
	return v
}

// packSmallFloat encodes v as an unsigned float with a 5 bit exponent and
// mantBits of mantissa.
func packSmallFloat(v float32, mantBits uint) uint32 {
	inf := uint32(smallExpMax) << mantBits
	switch {
	case v != v:
		return inf | 1
	case v <= 0:
		return 0
	case math.IsInf(float64(v), 1):
		return inf
	}

	bits := math.Float32bits(v)
	exp := int(bits>>23&0xFF) - 127 + smallExpBias
	mant := bits&0x7FFFFF | 0x800000
	shift := 23 - mantBits
	if exp <= 0 {
		// Subnormal: the implicit one moves into the mantissa.
		shift += uint(1 - exp)
		if shift > 24 {
			return 0
		}
		// Rounding up into the smallest normal sets the exponent bit.
		return (mant + 1<<(shift-1)) >> shift
	}

	m := (mant + 1<<(shift-1)) >> shift
	if m >= 1<<(mantBits+1) {
		m >>= 1
		exp++
	}
	if exp >= smallExpMax {
		return inf - 1
	}
	return uint32(exp)<<mantBits | m&(1<<mantBits-1)
}

func unpackSmallFloat(v uint32, mantBits uint) float32 {
	exp := int(v >> mantBits & smallExpMax)
	mant := float64(v & (1<<mantBits - 1))
	scale := float64(uint32(1) << mantBits)
	switch exp {
	case 0:
		return float32(math.Ldexp(mant/scale, 1-smallExpBias))
	case smallExpMax:
		if mant != 0 {
			return float32(math.NaN())
		}
		return float32(math.Inf(1))
	default:
		return float32(math.Ldexp(1+mant/scale, exp-smallExpBias))
	}
}
