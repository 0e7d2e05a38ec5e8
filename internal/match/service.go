package match

import (
	"context"

	"github.com/hyperjump/egaku/internal/library"
	"github.com/hyperjump/egaku/internal/models"
)

// Service binds a Matcher to a library store and serves host queries.
type Service struct {
	matcher *Matcher
	store   *library.Store
}

// NewService returns a service matching against the store's current snapshot.
func NewService(matcher *Matcher, store *library.Store) *Service {
	return &Service{matcher: matcher, store: store}
}

// Matcher returns the underlying matcher.
func (s *Service) Matcher() *Matcher {
	return s.matcher
}

// Store returns the underlying library store.
func (s *Service) Store() *library.Store {
	return s.store
}

// Match matches points against the current library snapshot.
func (s *Service) Match(ctx context.Context, points models.Sequence) (models.MatchResult, error) {
	return s.matcher.Match(ctx, points, s.store.Snapshot())
}

// Rank ranks the current library snapshot against points.
func (s *Service) Rank(ctx context.Context, points models.Sequence, k int) ([]models.RankedMatch, error) {
	return s.matcher.Rank(ctx, points, s.store.Snapshot(), k)
}

// GetMatch returns the name of the closest reference drawing, or "None".
func (s *Service) GetMatch(ctx context.Context, points models.Sequence) string {
	result, err := s.Match(ctx, points)
	if err != nil {
		return models.NoMatch
	}
	return result.String()
}
