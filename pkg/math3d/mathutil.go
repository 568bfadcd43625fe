package math3d

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Log2Floor returns floor(log2(n)) for n >= 1 and 0 otherwise.
func Log2Floor[T constraints.Integer](n T) int {
	l := 0
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}

// Log2Ceil returns ceil(log2(x)) for x > 1 and 0 otherwise.
func Log2Ceil[T constraints.Float](x T) int {
	if x <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(x))))
}

// HalveDim returns the next mip dimension: floor(n/2), never below 1.
func HalveDim[T constraints.Integer](n T) T {
	n >>= 1
	if n == 0 {
		return 1
	}
	return n
}

// MipDim returns the dimension of mip level l for a base dimension n.
func MipDim[T constraints.Integer](n T, l int) T {
	for range l {
		n = HalveDim(n)
	}
	return n
}

// Sign returns -1 for negative values and 1 otherwise.
func Sign[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -1
	}
	return 1
}

// Rint rounds to the nearest integer, halves away from zero.
func Rint(x float64) int {
	return int(math.Round(x))
}
