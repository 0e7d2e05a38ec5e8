// Package models defines core data structures for drawings, point sequences, and match results.
package models

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrEmptySequence is returned when an operation receives a sequence with no points.
	ErrEmptySequence = errors.New("point sequence is empty")
	// ErrSizeMismatch is returned when a sequence does not have the expected number of points.
	ErrSizeMismatch = errors.New("point sequence size mismatch")
	// ErrEmbeddingFailed wraps failures reported by an embedding backend.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// Point is a 3D coordinate of a drawn stroke.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns p as a gonum vector.
func (p Point) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// FromVec converts a gonum vector to a Point.
func FromVec(v r3.Vec) Point {
	return Point{X: v.X, Y: v.Y, Z: v.Z}
}

// Sequence is an ordered list of points. Index 0 is the anchor used for normalization.
type Sequence []Point

// Clone returns a copy of s that does not share backing storage.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}
