package features

import (
	"math"
	"testing"

	"github.com/hyperjump/egaku/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spiral(n int) models.Sequence {
	seq := make(models.Sequence, n)
	for i := range seq {
		a := float64(i) * 0.4
		seq[i] = models.Point{X: a * math.Cos(a), Y: a * math.Sin(a), Z: 0.1 * a}
	}
	return seq
}

func TestEncode_Symmetry(t *testing.T) {
	const n = 32
	m, err := Encode(spiral(n), n)
	require.NoError(t, err)
	require.Len(t, m.Data, n*n*Channels)

	for i := 0; i < n; i++ {
		assert.Zero(t, m.At(i, i, ChannelDistance))
		assert.Zero(t, m.At(i, i, ChannelHeight))
		for j := 0; j < n; j++ {
			assert.Equal(t, m.At(i, j, ChannelDistance), m.At(j, i, ChannelDistance))
			assert.Equal(t, m.At(i, j, ChannelHeight), -m.At(j, i, ChannelHeight))
		}
	}
}

func TestEncode_Values(t *testing.T) {
	seq := models.Sequence{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 4}}
	m, err := Encode(seq, 3)
	require.NoError(t, err)

	scale := 5 + scaleEpsilon
	assert.InDelta(t, 3/scale, m.At(0, 1, ChannelDistance), 1e-6)
	assert.InDelta(t, 4/scale, m.At(1, 2, ChannelDistance), 1e-6)
	assert.InDelta(t, 5/scale, m.At(0, 2, ChannelDistance), 1e-6)
	assert.InDelta(t, -4/scale, m.At(0, 2, ChannelHeight), 1e-6)
	assert.InDelta(t, 4/scale, m.At(2, 0, ChannelHeight), 1e-6)

	var maxD float32
	for _, row := range m.Channel(ChannelDistance) {
		for _, v := range row {
			if v > maxD {
				maxD = v
			}
		}
	}
	assert.LessOrEqual(t, maxD, float32(1))
}

func TestEncode_DegenerateInput(t *testing.T) {
	seq := models.Sequence{{X: 1, Y: 1}, {X: 1, Y: 1}}
	m, err := Encode(seq, 2)
	require.NoError(t, err)
	for _, v := range m.Data {
		assert.False(t, math.IsNaN(float64(v)))
		assert.Zero(t, v)
	}
}

func TestEncode_Errors(t *testing.T) {
	_, err := Encode(nil, 4)
	assert.ErrorIs(t, err, models.ErrEmptySequence)

	_, err = Encode(spiral(3), 4)
	assert.ErrorIs(t, err, models.ErrSizeMismatch)
}

func TestEncode_TranslationInvariantAfterAnchoring(t *testing.T) {
	// relative positions are what the encoder sees
	base := spiral(16)
	shifted := make(models.Sequence, len(base))
	for i, p := range base {
		shifted[i] = models.Point{X: p.X + 5, Y: p.Y + 5, Z: p.Z + 5}
	}
	a, err := Encode(base, 16)
	require.NoError(t, err)
	b, err := Encode(shifted, 16)
	require.NoError(t, err)
	assert.InDeltaSlice(t, a.Data, b.Data, 1e-5)
}

func TestMatrix_Key(t *testing.T) {
	a, _ := Encode(spiral(8), 8)
	b, _ := Encode(spiral(8), 8)
	c, _ := Encode(spiral(9)[1:], 8)
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, []int64{8, 8, 2}, a.Shape())
}
