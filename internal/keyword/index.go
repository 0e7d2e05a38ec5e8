// Package keyword provides name and description search over the drawing catalog.
package keyword

import (
	"context"

	"github.com/hyperjump/egaku/internal/models"
)

// Catalog defines catalog search operations. Entries are keyed by drawing name.
type Catalog interface {
	Index(ctx context.Context, name, description string) error
	IndexDrawings(ctx context.Context, drawings []*models.Drawing) error
	// Search returns up to limit drawing names. An empty query lists every name in order.
	Search(ctx context.Context, query string, limit int) ([]*CatalogResult, error)
	Delete(ctx context.Context, name string) error
	DocCount() (uint64, error)
	Close() error
}

// CatalogResult is a single catalog search hit.
type CatalogResult struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Names returns the names of results in order.
func Names(results []*CatalogResult) []string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	return names
}
