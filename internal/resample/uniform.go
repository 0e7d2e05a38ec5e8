package resample

import (
	"github.com/hyperjump/egaku/internal/models"
)

// Uniform downsamples by evenly spaced indices and upsamples by random repetition.
type Uniform struct{}

// Resample returns exactly n points.
func (Uniform) Resample(seq models.Sequence, n int, seed *uint64) (models.Sequence, error) {
	if err := checkArgs(seq, n); err != nil {
		return nil, err
	}
	switch {
	case len(seq) > n:
		out := make(models.Sequence, n)
		for i, idx := range uniformIndices(len(seq), n) {
			out[i] = seq[idx]
		}
		return out, nil
	case len(seq) < n:
		rng := newRand(seed)
		out := make(models.Sequence, len(seq), n)
		copy(out, seq)
		for len(out) < n {
			out = append(out, seq[rng.IntN(len(seq))])
		}
		return out, nil
	default:
		return seq.Clone(), nil
	}
}

// uniformIndices returns n indices spread evenly over [0, size-1], each truncated toward zero.
// The last index is always size-1.
func uniformIndices(size, n int) []int {
	idx := make([]int, n)
	if n == 1 {
		return idx
	}
	step := float64(size-1) / float64(n-1)
	for i := range idx[:n-1] {
		j := int(float64(i) * step)
		if j > size-1 {
			j = size - 1
		}
		idx[i] = j
	}
	idx[n-1] = size - 1
	return idx
}
