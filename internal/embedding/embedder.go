// Package embedding provides feature-matrix embedding via ONNX, a deterministic mock, and caching.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/egaku/internal/features"
	"github.com/hyperjump/egaku/internal/models"
)

// DefaultDimensions is the embedding length produced by the drawing model.
const DefaultDimensions = 128

// Embedder produces a fixed-length embedding for a feature matrix.
// Close releases backend resources; callers own the embedder's lifetime.
type Embedder interface {
	Embed(ctx context.Context, m *features.Matrix) ([]float32, error)
	Dimensions() int
	Close() error
}

// DimensionMismatchError reports an embedding or input of the wrong size.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Unwrap lets callers test for models.ErrEmbeddingFailed.
func (e *DimensionMismatchError) Unwrap() error { return models.ErrEmbeddingFailed }

// ONNXConfig describes an ONNX drawing model.
type ONNXConfig struct {
	ModelPath  string
	Points     int
	Dimensions int
	InputName  string
	OutputName string
	CacheSize  int
}

// Func adapts a plain function to the Embedder interface.
type Func struct {
	Fn   func(ctx context.Context, m *features.Matrix) ([]float32, error)
	Dims int
}

// Embed calls the wrapped function.
func (f *Func) Embed(ctx context.Context, m *features.Matrix) ([]float32, error) {
	return f.Fn(ctx, m)
}

// Dimensions returns the configured embedding length.
func (f *Func) Dimensions() int {
	return f.Dims
}

// Close is a no-op for Func.
func (f *Func) Close() error {
	return nil
}

// Validate checks that emb has the embedder's dimension and only finite values.
func Validate(e Embedder, emb []float32) error {
	if len(emb) != e.Dimensions() {
		return &DimensionMismatchError{Expected: e.Dimensions(), Actual: len(emb)}
	}
	for i, v := range emb {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: non-finite value %v at %d", models.ErrEmbeddingFailed, v, i)
		}
	}
	return nil
}
