package core

import (
	"math/rand"
)

// Sampler provides the random stream for scattering algorithms
// Can be swapped out for deterministic testing or different sampling patterns
type Sampler interface {
	Get1D() float64
	Get2D() Vec2
}

// RandomSampler wraps a standard Go random generator
type RandomSampler struct {
	random *rand.Rand
}

// NewRandomSampler creates a sampler from a Go random generator
func NewRandomSampler(random *rand.Rand) *RandomSampler {
	return &RandomSampler{random: random}
}

// NewSeededSampler creates a sampler whose stream is fully determined by seed
func NewSeededSampler(seed int64) *RandomSampler {
	return NewRandomSampler(rand.New(rand.NewSource(seed)))
}

// Get1D returns a random float64 in [0, 1)
func (r *RandomSampler) Get1D() float64 {
	return r.random.Float64()
}

// Get2D returns two random float64 values in [0, 1), X drawn before Y
func (r *RandomSampler) Get2D() Vec2 {
	x := r.random.Float64()
	y := r.random.Float64()
	return NewVec2(x, y)
}

// SampleBarycentric maps a 2D sample to uniform barycentric weights over a triangle.
// Samples with r1+r2 > 1 are folded back by reflecting both coordinates.
// The returned weights apply to (v0, v1, v2) in that order.
func SampleBarycentric(sample Vec2) (float64, float64, float64) {
	r1, r2 := sample.X, sample.Y
	if r1+r2 > 1 {
		r1 = 1 - r1
		r2 = 1 - r2
	}
	return r1, r2, 1 - r1 - r2
}
