// Package geometry provides point-sequence helpers: anchor normalization, centroid,
// bounding box and pairwise distances.
package geometry

import (
	"math"

	"github.com/hyperjump/egaku/internal/models"
	"gonum.org/v1/gonum/spatial/r3"
)

// Normalize translates seq so that its first point becomes the origin.
// The input is not modified.
func Normalize(seq models.Sequence) (models.Sequence, error) {
	if len(seq) == 0 {
		return nil, models.ErrEmptySequence
	}
	anchor := seq[0].Vec()
	out := make(models.Sequence, len(seq))
	for i, p := range seq {
		out[i] = models.FromVec(r3.Sub(p.Vec(), anchor))
	}
	return out, nil
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b models.Point) float64 {
	return r3.Norm(r3.Sub(a.Vec(), b.Vec()))
}

// Centroid returns the mean of all points. seq must be non-empty.
func Centroid(seq models.Sequence) models.Point {
	var sum r3.Vec
	for _, p := range seq {
		sum = r3.Add(sum, p.Vec())
	}
	return models.FromVec(r3.Scale(1/float64(len(seq)), sum))
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max models.Point
}

// Diagonal returns the length of the box diagonal.
func (b Box) Diagonal() float64 {
	return Distance(b.Min, b.Max)
}

// BoundingBox returns the axis-aligned bounds of seq. seq must be non-empty.
func BoundingBox(seq models.Sequence) Box {
	b := Box{Min: seq[0], Max: seq[0]}
	for _, p := range seq[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Min.Z = math.Min(b.Min.Z, p.Z)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
		b.Max.Z = math.Max(b.Max.Z, p.Z)
	}
	return b
}

// MaxPairwiseDistance returns the largest distance between any two points of seq.
func MaxPairwiseDistance(seq models.Sequence) float64 {
	var best float64
	for i := range seq {
		for j := i + 1; j < len(seq); j++ {
			if d := Distance(seq[i], seq[j]); d > best {
				best = d
			}
		}
	}
	return best
}
