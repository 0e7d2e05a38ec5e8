// Package resample converts variable-length point sequences into sequences of exactly N points.
package resample

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hyperjump/egaku/internal/models"
)

// DefaultJitterRatio is the standard deviation of padding noise relative to the drawing scale.
const DefaultJitterRatio = 1e-4

// Resampler produces exactly n points from seq. A nil seed draws fresh randomness;
// a non-nil seed makes the output reproducible.
type Resampler interface {
	Resample(seq models.Sequence, n int, seed *uint64) (models.Sequence, error)
}

// Policy names a resampling strategy.
type Policy string

const (
	// PolicyFPS selects points by farthest-point sampling and pads small inputs with jitter.
	PolicyFPS Policy = "fps"
	// PolicyUniform picks evenly spaced indices and pads small inputs by random repetition.
	PolicyUniform Policy = "uniform"
)

// New creates a resampler for the named policy. An empty policy selects FPS.
func New(policy string, jitterRatio float64, upscale bool) (Resampler, error) {
	switch Policy(policy) {
	case PolicyFPS, "":
		return NewFPS(jitterRatio, upscale), nil
	case PolicyUniform:
		return Uniform{}, nil
	default:
		return nil, fmt.Errorf("unknown resample policy: %s (supported: fps, uniform)", policy)
	}
}

// Seed returns a pointer to s, for passing literal seeds to Resample.
func Seed(s uint64) *uint64 {
	return &s
}

// SeedForName returns a stable seed for a reference drawing name, so the same drawing always
// receives the same padding across runs.
func SeedForName(name string) uint64 {
	var h uint64
	for _, c := range name {
		h = 31*h + uint64(c)
	}
	return h
}

// newRand returns a generator owned by a single Resample call.
func newRand(seed *uint64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
}

// gaussian draws a standard normal sample with the Box-Muller transform.
func gaussian(rng *rand.Rand) float64 {
	u1 := 1 - rng.Float64() // (0, 1]
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

func checkArgs(seq models.Sequence, n int) error {
	if len(seq) == 0 {
		return models.ErrEmptySequence
	}
	if n < 1 {
		return fmt.Errorf("target size must be positive, got %d", n)
	}
	return nil
}
