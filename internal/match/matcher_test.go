package match

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/hyperjump/egaku/internal/embedding"
	"github.com/hyperjump/egaku/internal/features"
	"github.com/hyperjump/egaku/internal/library"
	"github.com/hyperjump/egaku/internal/models"
	"github.com/hyperjump/egaku/internal/resample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lookupEmbedder returns fixed embeddings for known feature matrices.
type lookupEmbedder struct {
	mu    sync.Mutex
	dims  int
	table map[string][]float32
	fail  map[string]bool
	calls int
}

func newLookup(dims int) *lookupEmbedder {
	return &lookupEmbedder{dims: dims, table: map[string][]float32{}, fail: map[string]bool{}}
}

func (l *lookupEmbedder) Embed(ctx context.Context, m *features.Matrix) ([]float32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	key := m.Key()
	if l.fail[key] {
		return nil, errors.New("backend declined")
	}
	emb, ok := l.table[key]
	if !ok {
		return nil, errors.New("unknown matrix")
	}
	return emb, nil
}

func (l *lookupEmbedder) Dimensions() int { return l.dims }
func (l *lookupEmbedder) Close() error    { return nil }

func (l *lookupEmbedder) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *lookupEmbedder) set(t *testing.T, m *Matcher, seq models.Sequence, seed uint64, emb []float32) {
	t.Helper()
	mat, err := m.Pipeline(seq, seed)
	require.NoError(t, err)
	l.table[mat.Key()] = emb
}

func (l *lookupEmbedder) setFail(t *testing.T, m *Matcher, seq models.Sequence, seed uint64) {
	t.Helper()
	mat, err := m.Pipeline(seq, seed)
	require.NoError(t, err)
	l.fail[mat.Key()] = true
}

var (
	query  = models.Sequence{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	circle = models.Sequence{{X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}, {X: 0, Y: -1}}
	square = models.Sequence{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}, {X: 0, Y: 0}}
	zigzag = models.Sequence{{X: 0}, {X: 1, Y: 1}, {X: 2}, {X: 3, Y: 1}, {X: 4}}
)

func mustLibrary(t *testing.T, seqs map[string]models.Sequence) *library.Library {
	t.Helper()
	lib, err := library.New(seqs)
	require.NoError(t, err)
	return lib
}

func smallMatcher(e embedding.Embedder, opts ...Option) *Matcher {
	return New(e, append([]Option{WithPoints(16)}, opts...)...)
}

func TestMatch_EmptyLibraryNoEmbedding(t *testing.T) {
	e := newLookup(2)
	m := smallMatcher(e)
	ctx := context.Background()

	for _, lib := range []*library.Library{nil, mustLibrary(t, nil)} {
		res, err := m.Match(ctx, query, lib)
		require.NoError(t, err)
		assert.False(t, res.Matched)
		assert.Equal(t, models.NoMatch, res.String())
	}
	assert.Zero(t, e.Calls())
}

func TestMatch_NotReady(t *testing.T) {
	m := New(nil)
	assert.False(t, m.Ready())
	res, err := m.Match(context.Background(), query, mustLibrary(t, map[string]models.Sequence{"circle": circle}))
	require.NoError(t, err)
	assert.Equal(t, models.NoMatch, res.String())
}

func TestMatch_PicksClosestReference(t *testing.T) {
	e := newLookup(2)
	m := smallMatcher(e)
	e.set(t, m, query, 0, []float32{0, 0})
	e.set(t, m, circle, resample.SeedForName("circle"), []float32{3, 4})
	e.set(t, m, square, resample.SeedForName("square"), []float32{1, 0})

	lib := mustLibrary(t, map[string]models.Sequence{"circle": circle, "square": square})
	res, err := m.Match(context.Background(), query, lib)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "square", res.Name)
	assert.InDelta(t, 1.0, res.Distance, 1e-12)
	assert.Equal(t, 3, e.Calls())
}

func TestMatch_TieGoesToFirstName(t *testing.T) {
	e := newLookup(2)
	m := smallMatcher(e)
	e.set(t, m, query, 0, []float32{0, 0})
	e.set(t, m, zigzag, resample.SeedForName("zigzag"), []float32{0, 2})
	e.set(t, m, circle, resample.SeedForName("circle"), []float32{2, 0})
	e.set(t, m, square, resample.SeedForName("square"), []float32{0, -2})

	lib := mustLibrary(t, map[string]models.Sequence{"zigzag": zigzag, "square": square, "circle": circle})
	for i := 0; i < 5; i++ {
		res, err := m.Match(context.Background(), query, lib)
		require.NoError(t, err)
		assert.Equal(t, "circle", res.Name)
	}
}

func TestMatch_SkipsFailedReferences(t *testing.T) {
	e := newLookup(2)
	m := smallMatcher(e)
	e.set(t, m, query, 0, []float32{0, 0})
	e.setFail(t, m, circle, resample.SeedForName("circle"))
	e.set(t, m, square, resample.SeedForName("square"), []float32{9, 9})

	lib := mustLibrary(t, map[string]models.Sequence{"circle": circle, "square": square})
	res, err := m.Match(context.Background(), query, lib)
	require.NoError(t, err)
	assert.Equal(t, "square", res.Name)
}

func TestMatch_SkipsWrongDimension(t *testing.T) {
	e := newLookup(2)
	m := smallMatcher(e)
	e.set(t, m, query, 0, []float32{0, 0})
	e.set(t, m, circle, resample.SeedForName("circle"), []float32{0.1, 0, 0})
	e.set(t, m, square, resample.SeedForName("square"), []float32{5, 5})

	lib := mustLibrary(t, map[string]models.Sequence{"circle": circle, "square": square})
	res, err := m.Match(context.Background(), query, lib)
	require.NoError(t, err)
	assert.Equal(t, "square", res.Name)
}

func TestMatch_NaNEmbeddingsNeverWin(t *testing.T) {
	nan := float32(math.NaN())
	e := newLookup(2)
	m := smallMatcher(e)
	e.set(t, m, query, 0, []float32{0, 0})
	e.set(t, m, circle, resample.SeedForName("circle"), []float32{nan, 0})
	e.set(t, m, square, resample.SeedForName("square"), []float32{7, 7})

	lib := mustLibrary(t, map[string]models.Sequence{"circle": circle, "square": square})
	res, err := m.Match(context.Background(), query, lib)
	require.NoError(t, err)
	assert.Equal(t, "square", res.Name)

	ranked, err := m.Rank(context.Background(), query, lib, 5)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "square", ranked[0].Name)

	e.set(t, m, query, 0, []float32{nan, nan})
	res, err = m.Match(context.Background(), query, lib)
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestMatch_AllReferencesFail(t *testing.T) {
	e := newLookup(2)
	m := smallMatcher(e)
	e.set(t, m, query, 0, []float32{0, 0})

	lib := mustLibrary(t, map[string]models.Sequence{"circle": circle, "square": square})
	res, err := m.Match(context.Background(), query, lib)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, models.NoMatch, res.String())
}

func TestMatch_QueryFailureAborts(t *testing.T) {
	e := newLookup(2)
	m := smallMatcher(e)
	e.set(t, m, circle, resample.SeedForName("circle"), []float32{0, 0})

	lib := mustLibrary(t, map[string]models.Sequence{"circle": circle})
	res, err := m.Match(context.Background(), query, lib)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, 1, e.Calls(), "references must not be embedded after the query fails")

	res, err = m.Match(context.Background(), nil, lib)
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestMatch_CancelledContext(t *testing.T) {
	m := smallMatcher(embedding.NewMockEmbedder(8))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Match(ctx, query, mustLibrary(t, map[string]models.Sequence{"circle": circle}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatch_TranslatedReference(t *testing.T) {
	shifted := make(models.Sequence, len(query))
	for i, p := range query {
		shifted[i] = models.Point{X: p.X + 5, Y: p.Y + 5, Z: p.Z + 5}
	}
	m := New(embedding.NewMockEmbedder(embedding.DefaultDimensions))
	require.Equal(t, DefaultPoints, m.Points())

	a, err := m.Pipeline(query, 0)
	require.NoError(t, err)
	b, err := m.Pipeline(shifted, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, a.Data, b.Data, 1e-4)

	ctx := context.Background()
	qa, err := m.Embed(ctx, query, 0)
	require.NoError(t, err)
	qb, err := m.Embed(ctx, shifted, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, qa, qb, 1e-4)

	res, err := m.Match(ctx, query, mustLibrary(t, map[string]models.Sequence{"hook": shifted}))
	require.NoError(t, err)
	assert.Equal(t, "hook", res.Name)
}

func TestMatch_ConcurrentCallsAgree(t *testing.T) {
	m := smallMatcher(embedding.NewMockEmbedder(8), WithWorkers(2))
	lib := mustLibrary(t, map[string]models.Sequence{"circle": circle, "square": square, "zigzag": zigzag})
	want, err := m.Match(context.Background(), zigzag, lib)
	require.NoError(t, err)
	require.True(t, want.Matched)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := m.Match(context.Background(), zigzag, lib)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestRank(t *testing.T) {
	e := newLookup(2)
	m := smallMatcher(e)
	e.set(t, m, query, 0, []float32{0, 0})
	e.set(t, m, circle, resample.SeedForName("circle"), []float32{3, 4})
	e.set(t, m, square, resample.SeedForName("square"), []float32{1, 0})
	e.set(t, m, zigzag, resample.SeedForName("zigzag"), []float32{0, 2})

	lib := mustLibrary(t, map[string]models.Sequence{"circle": circle, "square": square, "zigzag": zigzag})
	ranked, err := m.Rank(context.Background(), query, lib, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, models.RankedMatch{Name: "square", Distance: 1, Rank: 1}, ranked[0])
	assert.Equal(t, models.RankedMatch{Name: "zigzag", Distance: 2, Rank: 2}, ranked[1])

	none, err := m.Rank(context.Background(), query, nil, 3)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPipeline_UniformResampler(t *testing.T) {
	m := smallMatcher(embedding.NewMockEmbedder(4), WithResampler(resample.Uniform{}))
	mat, err := m.Pipeline(square, 1)
	require.NoError(t, err)
	assert.Equal(t, 16, mat.N)
	assert.Zero(t, mat.At(0, 0, features.ChannelDistance))
}

func TestService_GetMatch(t *testing.T) {
	store := library.NewStore()
	svc := NewService(smallMatcher(embedding.NewMockEmbedder(8)), store)
	ctx := context.Background()

	assert.Equal(t, models.NoMatch, svc.GetMatch(ctx, query), "store not ready")

	store.Replace(mustLibrary(t, map[string]models.Sequence{"hook": query}))
	assert.Equal(t, "hook", svc.GetMatch(ctx, query))

	ranked, err := svc.Rank(ctx, query, 5)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "hook", ranked[0].Name)
	assert.Same(t, store, svc.Store())
	assert.NotNil(t, svc.Matcher())
}
