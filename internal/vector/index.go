// Package vector provides embedding distance and nearest-neighbour indexes over reference embeddings.
package vector

import "context"

// VectorIndex defines embedding storage and nearest-neighbour search.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Size() int
	Close() error
}

// VectorResult is a single search hit (ID is the reference drawing name).
type VectorResult struct {
	ID       string
	Distance float64 // Euclidean distance to the query; smaller is closer
}
