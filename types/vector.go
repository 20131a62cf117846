package types

import (
	"math"

	"golang.org/x/image/math/f32"
)

type Vec2 f32.Vec2
type Vec3 f32.Vec3

// Define a 3 component vector.
func XYZ(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

// Define a 3 component vector with all components set to s.
func Splat3(s float32) Vec3 {
	return Vec3{s, s, s}
}

// Add a vector.
func (v Vec3) Add(v2 Vec3) Vec3 {
	return Vec3{v[0] + v2[0], v[1] + v2[1], v[2] + v2[2]}
}

// Subtract a vector.
func (v Vec3) Sub(v2 Vec3) Vec3 {
	return Vec3{v[0] - v2[0], v[1] - v2[1], v[2] - v2[2]}
}

// Multiply a 3 component vector with a scalar.
func (v Vec3) Mul(s float32) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Component-wise multiplication.
func (v Vec3) MulVec(v2 Vec3) Vec3 {
	return Vec3{v[0] * v2[0], v[1] * v2[1], v[2] * v2[2]}
}

// Add v2 scaled by s.
func (v Vec3) MulAdd(v2 Vec3, s float32) Vec3 {
	return Vec3{v[0] + v2[0]*s, v[1] + v2[1]*s, v[2] + v2[2]*s}
}

// Get 3 component vector length.
func (v Vec3) Len() float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
}

// Normalize 3 component vector. Zero-length vectors normalize to the zero vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < floatCmpEpsilon {
		return Vec3{}
	}
	l = 1.0 / l
	return Vec3{v[0] * l, v[1] * l, v[2] * l}
}

// Returns true if all components are zero.
func (v Vec3) IsZero() bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

// Returns true if no component is NaN or Inf.
func (v Vec3) IsFinite() bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// Get the largest component.
func (v Vec3) MaxComponent() float32 {
	return max(v[0], v[1], v[2])
}

// Get Rec.709 luminance treating the vector as a linear rgb color.
func (v Vec3) Luminance() float32 {
	return 0.2126*v[0] + 0.7152*v[1] + 0.0722*v[2]
}

// Linearly interpolate towards v2.
func (v Vec3) Lerp(v2 Vec3, t float32) Vec3 {
	return Vec3{
		v[0] + (v2[0]-v[0])*t,
		v[1] + (v2[1]-v[1])*t,
		v[2] + (v2[2]-v[2])*t,
	}
}

// Calculate dot product of 2 vectors
func (v Vec3) Dot(v2 Vec3) float32 {
	return v[0]*v2[0] + v[1]*v2[1] + v[2]*v2[2]
}

// Calculate cross product of 2 vectors.
func (v Vec3) Cross(v2 Vec3) Vec3 {
	return Vec3{v[1]*v2[2] - v[2]*v2[1], v[2]*v2[0] - v[0]*v2[2], v[0]*v2[1] - v[1]*v2[0]}
}
