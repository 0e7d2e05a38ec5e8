package embedding

import (
	"context"

	"github.com/hyperjump/egaku/internal/features"
)

// MockEmbedder is a deterministic embedder for tests and model-less runs. Each output element
// pools the row means of the feature matrix, so identical matrices always get identical
// embeddings and nearby matrices get nearby ones.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed pools row means of both channels into the embedding buckets.
func (e *MockEmbedder) Embed(ctx context.Context, m *features.Matrix) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	counts := make([]int, e.dimensions)
	for i := 0; i < m.N; i++ {
		var dist, height float64
		for j := 0; j < m.N; j++ {
			dist += float64(m.At(i, j, features.ChannelDistance))
			height += float64(m.At(i, j, features.ChannelHeight))
		}
		k := i % e.dimensions
		emb[k] += float32((dist + 0.5*height) / float64(m.N))
		counts[k]++
	}
	for k, c := range counts {
		if c > 1 {
			emb[k] /= float32(c)
		}
	}
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
