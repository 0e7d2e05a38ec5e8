//go:build cgo
// +build cgo

// Package embedding provides ONNX-based embedding (requires CGO and onnxruntime library).
package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/egaku/internal/features"
	"github.com/hyperjump/egaku/internal/models"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a drawing model through ONNX Runtime. The model takes one
// 1 x N x N x 2 float tensor and returns a 1 x D embedding.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	points     int
	dimensions int
	cache      *EmbeddingCache
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXEmbedder creates an ONNX embedder. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	if cfg.Points <= 0 || cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("points and dimensions must be positive")
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	n := int64(cfg.Points)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, n, n, features.Channels),
		make([]float32, cfg.Points*cfg.Points*features.Channels))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(cfg.Dimensions)), make([]float32, cfg.Dimensions))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:      session,
		points:       cfg.Points,
		dimensions:   cfg.Dimensions,
		cache:        NewEmbeddingCache(cfg.CacheSize),
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Embed returns the embedding for m, using cache when available.
func (e *ONNXEmbedder) Embed(ctx context.Context, m *features.Matrix) ([]float32, error) {
	if m.N != e.points {
		return nil, &DimensionMismatchError{Expected: e.points, Actual: m.N}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := m.Key()
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("%w: embedder closed", models.ErrEmbeddingFailed)
	}

	copy(e.inputTensor.GetData(), m.Data)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: inference: %v", models.ErrEmbeddingFailed, err)
	}

	embedding := make([]float32, e.dimensions)
	copy(embedding, e.outputTensor.GetData()[:e.dimensions])
	e.cache.Set(key, embedding)
	return embedding, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		_ = e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return err
}
