// Package features builds the pairwise-relation matrix consumed by the embedding model.
package features

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/hyperjump/egaku/internal/geometry"
	"github.com/hyperjump/egaku/internal/models"
)

// Channels is the number of values stored per point pair.
const Channels = 2

const (
	// ChannelDistance holds the scaled Euclidean distance between two points.
	ChannelDistance = 0
	// ChannelHeight holds the scaled difference in Y between two points.
	ChannelHeight = 1
)

const scaleEpsilon = 1e-8

// Matrix is an N x N x 2 row-major tensor of pairwise features.
type Matrix struct {
	N    int
	Data []float32
}

// At returns the value for pair (i, j) on channel c.
func (m *Matrix) At(i, j, c int) float32 {
	return m.Data[(i*m.N+j)*Channels+c]
}

func (m *Matrix) set(i, j, c int, v float32) {
	m.Data[(i*m.N+j)*Channels+c] = v
}

// Channel returns a copy of one channel as an N x N grid.
func (m *Matrix) Channel(c int) [][]float32 {
	out := make([][]float32, m.N)
	for i := range out {
		out[i] = make([]float32, m.N)
		for j := range out[i] {
			out[i][j] = m.At(i, j, c)
		}
	}
	return out
}

// Shape returns the tensor shape without the batch dimension.
func (m *Matrix) Shape() []int64 {
	return []int64{int64(m.N), int64(m.N), Channels}
}

// Key returns a content hash of the matrix, used to cache embeddings.
func (m *Matrix) Key() string {
	h := sha256.New()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(m.N))
	h.Write(buf[:])
	for _, v := range m.Data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Encode builds the feature matrix for seq, which must hold exactly n points.
// Channel 0 is symmetric, channel 1 antisymmetric, and the diagonal is zero.
func Encode(seq models.Sequence, n int) (*Matrix, error) {
	if len(seq) == 0 {
		return nil, models.ErrEmptySequence
	}
	if len(seq) != n {
		return nil, fmt.Errorf("%w: got %d points, want %d", models.ErrSizeMismatch, len(seq), n)
	}

	dist := make([]float64, n*n)
	var maxDist float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := geometry.Distance(seq[i], seq[j])
			dist[i*n+j] = d
			dist[j*n+i] = d
			if d > maxDist {
				maxDist = d
			}
		}
	}
	scale := maxDist + scaleEpsilon

	m := &Matrix{N: n, Data: make([]float32, n*n*Channels)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := float32(dist[i*n+j] / scale)
			h := float32((seq[i].Y - seq[j].Y) / scale)
			m.set(i, j, ChannelDistance, d)
			m.set(j, i, ChannelDistance, d)
			m.set(i, j, ChannelHeight, h)
			m.set(j, i, ChannelHeight, -h)
		}
	}
	return m, nil
}
