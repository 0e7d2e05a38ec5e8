package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/egaku/internal/features"
	"github.com/hyperjump/egaku/internal/models"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	// a becomes most recent, so c evicts b
	c.Get("a")
	c.Set("c", []float32{6})
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestEmbeddingCache_ZeroCapacity(t *testing.T) {
	c := NewEmbeddingCache(0)
	c.Set("a", []float32{1})
	if _, ok := c.Get("a"); ok {
		t.Error("zero capacity cache should not store")
	}
}

func matrix(t *testing.T, n int, scale float64) *features.Matrix {
	t.Helper()
	seq := make(models.Sequence, n)
	for i := range seq {
		seq[i] = models.Point{X: float64(i) * scale, Y: float64(i*i%5) * scale}
	}
	m, err := features.Encode(seq, n)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestCachedEmbedder(t *testing.T) {
	calls := 0
	inner := &Func{Dims: 4, Fn: func(ctx context.Context, m *features.Matrix) ([]float32, error) {
		calls++
		return []float32{float32(m.N), 0, 0, 0}, nil
	}}
	e := NewCachedEmbedder(inner, 8)
	defer e.Close()
	ctx := context.Background()

	m := matrix(t, 6, 1)
	for i := 0; i < 3; i++ {
		if _, err := e.Embed(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("inner called %d times, want 1", calls)
	}
	if e.Dimensions() != 4 {
		t.Errorf("Dimensions() = %d", e.Dimensions())
	}
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	calls := 0
	inner := &Func{Dims: 2, Fn: func(ctx context.Context, m *features.Matrix) ([]float32, error) {
		calls++
		return nil, models.ErrEmbeddingFailed
	}}
	e := NewCachedEmbedder(inner, 8)
	m := matrix(t, 3, 1)
	for i := 0; i < 2; i++ {
		if _, err := e.Embed(context.Background(), m); !errors.Is(err, models.ErrEmbeddingFailed) {
			t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("inner called %d times, want 2", calls)
	}
}
