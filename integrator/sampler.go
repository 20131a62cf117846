package integrator

import (
	"math/rand/v2"

	"github.com/achilleasa/nimbus/types"
)

// A Sampler produces the random numbers consumed by a single estimate. It is
// reseeded per pixel (or per batch item) so results do not depend on which
// worker processes which item.
type Sampler struct {
	src *rand.PCG
	rng *rand.Rand
}

// Create a sampler for the given seed and stream.
func NewSampler(seed, stream uint64) *Sampler {
	src := rand.NewPCG(seed, stream)
	return &Sampler{
		src: src,
		rng: rand.New(src),
	}
}

// Reseed the sampler.
func (s *Sampler) Seed(seed, stream uint64) {
	s.src.Seed(seed, stream)
}

// Get a uniform sample in [0, 1).
func (s *Sampler) Float() float32 {
	return s.rng.Float32()
}

// Get a pair of uniform samples in [0, 1).
func (s *Sampler) Vec2() types.Vec2 {
	return types.Vec2{s.rng.Float32(), s.rng.Float32()}
}

// Derive a stream id from a frame counter and an item index.
func Stream(frame uint32, index int) uint64 {
	return mix64(uint64(frame)<<32 ^ uint64(uint32(index)))
}

// splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
