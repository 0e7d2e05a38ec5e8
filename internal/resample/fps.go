package resample

import (
	"math"
	"math/rand/v2"

	"github.com/hyperjump/egaku/internal/geometry"
	"github.com/hyperjump/egaku/internal/models"
)

// FPS resamples with farthest-point sampling. Inputs with at most n points are padded with
// jittered copies of existing points.
type FPS struct {
	// JitterRatio scales the padding noise standard deviation by the bounding-box diagonal.
	JitterRatio float64
	// Upscale pads with an extra n/2 candidates and then selects n of them by FPS.
	Upscale bool
}

// NewFPS returns an FPS resampler. A non-positive jitterRatio selects DefaultJitterRatio.
func NewFPS(jitterRatio float64, upscale bool) *FPS {
	if jitterRatio <= 0 {
		jitterRatio = DefaultJitterRatio
	}
	return &FPS{JitterRatio: jitterRatio, Upscale: upscale}
}

// Resample returns exactly n points. Oversized inputs come back in selection order.
func (f *FPS) Resample(seq models.Sequence, n int, seed *uint64) (models.Sequence, error) {
	if err := checkArgs(seq, n); err != nil {
		return nil, err
	}
	if len(seq) > n {
		return farthestPoints(seq, n), nil
	}

	padded := f.pad(seq, n, newRand(seed))
	if len(padded) > n {
		return farthestPoints(padded, n), nil
	}
	return padded, nil
}

func (f *FPS) pad(seq models.Sequence, n int, rng *rand.Rand) models.Sequence {
	scale := geometry.BoundingBox(seq).Diagonal()
	if scale == 0 {
		scale = 1.0
	}
	sigma := f.JitterRatio * scale

	repeat := n - len(seq)
	if f.Upscale {
		repeat += n / 2
	}
	out := make(models.Sequence, len(seq), len(seq)+repeat)
	copy(out, seq)
	for range repeat {
		p := seq[rng.IntN(len(seq))]
		p.X += gaussian(rng) * sigma
		p.Y += gaussian(rng) * sigma
		p.Z += gaussian(rng) * sigma
		out = append(out, p)
	}
	return out
}

// farthestPoints greedily selects n points of seq, starting from the point farthest from the
// centroid. Ties go to the first point in scan order.
func farthestPoints(seq models.Sequence, n int) models.Sequence {
	centroid := geometry.Centroid(seq)
	first, far := 0, -1.0
	for i, p := range seq {
		if d := geometry.Distance(p, centroid); d > far {
			first, far = i, d
		}
	}

	nearest := make([]float64, len(seq))
	for i := range nearest {
		nearest[i] = math.Inf(1)
	}
	selected := make([]bool, len(seq))
	selected[first] = true
	out := make(models.Sequence, 0, n)
	out = append(out, seq[first])

	last := first
	for len(out) < n {
		next, best := -1, -1.0
		for i, p := range seq {
			if selected[i] {
				continue
			}
			if d := geometry.Distance(p, seq[last]); d < nearest[i] {
				nearest[i] = d
			}
			if nearest[i] > best {
				next, best = i, nearest[i]
			}
		}
		selected[next] = true
		out = append(out, seq[next])
		last = next
	}
	return out
}
