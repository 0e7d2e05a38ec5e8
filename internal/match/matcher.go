// Package match ranks reference drawings against a query drawing by embedding distance.
package match

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/egaku/internal/embedding"
	"github.com/hyperjump/egaku/internal/features"
	"github.com/hyperjump/egaku/internal/geometry"
	"github.com/hyperjump/egaku/internal/library"
	"github.com/hyperjump/egaku/internal/models"
	"github.com/hyperjump/egaku/internal/resample"
	"github.com/hyperjump/egaku/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultPoints is the number of points every sequence is resampled to.
const DefaultPoints = 128

// Matcher runs the query and every reference through resample -> normalize -> encode -> embed
// and picks the reference whose embedding is closest to the query's.
type Matcher struct {
	embedder  embedding.Embedder
	resampler resample.Resampler
	points    int
	querySeed uint64
	workers   int
	logger    *zap.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithResampler overrides the default FPS resampler.
func WithResampler(r resample.Resampler) Option {
	return func(m *Matcher) { m.resampler = r }
}

// WithPoints sets the resample size N.
func WithPoints(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.points = n
		}
	}
}

// WithQuerySeed sets the seed used to resample queries.
func WithQuerySeed(seed uint64) Option {
	return func(m *Matcher) { m.querySeed = seed }
}

// WithWorkers bounds how many references are embedded concurrently.
func WithWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithLogger sets a logger for skipped references and match outcomes.
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a matcher around embedder. A nil embedder yields a matcher that is never ready.
func New(embedder embedding.Embedder, opts ...Option) *Matcher {
	m := &Matcher{
		embedder:  embedder,
		resampler: resample.NewFPS(resample.DefaultJitterRatio, false),
		points:    DefaultPoints,
		workers:   4,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Points returns the resample size N.
func (m *Matcher) Points() int {
	return m.points
}

// Ready reports whether the matcher has an embedder to run.
func (m *Matcher) Ready() bool {
	return m != nil && m.embedder != nil
}

// Pipeline resamples seq to N points with seed, anchors it at its first point, and encodes it.
func (m *Matcher) Pipeline(seq models.Sequence, seed uint64) (*features.Matrix, error) {
	sampled, err := m.resampler.Resample(seq, m.points, resample.Seed(seed))
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	if len(sampled) != m.points {
		return nil, fmt.Errorf("resample: %w: got %d points, want %d", models.ErrSizeMismatch, len(sampled), m.points)
	}
	normalized, err := geometry.Normalize(sampled)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return features.Encode(normalized, m.points)
}

// Embed runs the pipeline and the embedder for one sequence.
func (m *Matcher) Embed(ctx context.Context, seq models.Sequence, seed uint64) ([]float32, error) {
	mat, err := m.Pipeline(seq, seed)
	if err != nil {
		return nil, err
	}
	emb, err := m.embedder.Embed(ctx, mat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingFailed, err)
	}
	if err := embedding.Validate(m.embedder, emb); err != nil {
		return nil, err
	}
	return emb, nil
}

type scored struct {
	name string
	emb  []float32
}

// embedReferences embeds every reference in lib, in name order. Failed references are nil.
func (m *Matcher) embedReferences(ctx context.Context, lib *library.Library) ([]scored, error) {
	names := lib.Names()
	out := make([]scored, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seq, _ := lib.Get(name)
			emb, err := m.Embed(gctx, seq, resample.SeedForName(name))
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				m.logger.Debug("reference skipped", zap.String("name", name), zap.Error(err))
				return nil
			}
			out[i] = scored{name: name, emb: emb}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Match returns the reference closest to query. It returns the "None" result without
// embedding anything when the matcher or library is not ready or the library is empty, and
// when the query itself cannot be embedded. References that fail are skipped. On an exact
// distance tie the lexicographically first name wins. The error is non-nil only when ctx ends.
func (m *Matcher) Match(ctx context.Context, query models.Sequence, lib *library.Library) (models.MatchResult, error) {
	if !m.Ready() || lib == nil || lib.Len() == 0 {
		return models.NoMatchResult(), nil
	}

	q, err := m.Embed(ctx, query, m.querySeed)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.NoMatchResult(), ctxErr
		}
		m.logger.Debug("query embedding failed", zap.Error(err))
		return models.NoMatchResult(), nil
	}

	refs, err := m.embedReferences(ctx, lib)
	if err != nil {
		return models.NoMatchResult(), err
	}

	result := models.NoMatchResult()
	for _, ref := range refs {
		if ref.emb == nil {
			continue
		}
		d := vector.EuclideanDistance(q, ref.emb)
		if math.IsNaN(d) {
			continue
		}
		if !result.Matched || d < result.Distance {
			result = models.MatchResult{Name: ref.name, Distance: d, Matched: true}
		}
	}
	m.logger.Debug("match complete",
		zap.String("name", result.String()),
		zap.Float64("distance", result.Distance),
		zap.Int("references", len(refs)),
	)
	return result, nil
}

// Rank returns up to k references ordered by distance to query, closest first, with the same
// skip and tie-break rules as Match. It returns nil when Match would return "None".
func (m *Matcher) Rank(ctx context.Context, query models.Sequence, lib *library.Library, k int) ([]models.RankedMatch, error) {
	if !m.Ready() || lib == nil || lib.Len() == 0 || k <= 0 {
		return nil, nil
	}
	q, err := m.Embed(ctx, query, m.querySeed)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		m.logger.Debug("query embedding failed", zap.Error(err))
		return nil, nil
	}
	refs, err := m.embedReferences(ctx, lib)
	if err != nil {
		return nil, err
	}

	idx, err := vector.NewVectorIndex(string(vector.IndexTypeMemory), m.embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	defer idx.Close()
	for _, ref := range refs {
		if ref.emb == nil {
			continue
		}
		if err := idx.Add(ctx, []string{ref.name}, [][]float32{ref.emb}); err != nil {
			return nil, err
		}
	}
	hits, err := idx.Search(ctx, q, k)
	if err != nil {
		return nil, err
	}
	ranked := make([]models.RankedMatch, len(hits))
	for i, h := range hits {
		ranked[i] = models.RankedMatch{Name: h.ID, Distance: h.Distance, Rank: i + 1}
	}
	return ranked, nil
}
