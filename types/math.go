package types

import "math"

const floatCmpEpsilon = 1e-7

// Clamp v to the [lo, hi] range.
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Linear interpolation between a and b.
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Exp evaluates e^x in float32.
func Exp(x float32) float32 {
	return float32(math.Exp(float64(x)))
}

// Returns false for NaN and +/-Inf.
func IsFinite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

// Returns true if n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Natural logarithm in float32.
func Log(x float32) float32 {
	return float32(math.Log(float64(x)))
}

// Raise x to the power y in float32.
func Pow(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}
