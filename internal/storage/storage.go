// Package storage defines the persistence interface for reference drawings.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/egaku/internal/models"
)

// ErrNotFound is returned when a drawing does not exist.
var ErrNotFound = errors.New("drawing not found")

// Storage defines drawing persistence operations. Drawings are keyed by name.
type Storage interface {
	// PutDrawing inserts d or replaces the drawing with the same name.
	PutDrawing(ctx context.Context, d *models.Drawing) error
	GetDrawing(ctx context.Context, name string) (*models.Drawing, error)
	DeleteDrawing(ctx context.Context, name string) error
	// DeleteBySource removes every drawing imported from path and returns their names.
	DeleteBySource(ctx context.Context, path string) ([]string, error)
	ListDrawings(ctx context.Context, offset, limit int) ([]*models.Drawing, error)

	CountDrawings(ctx context.Context) (int64, error)

	Close() error
}

// ListAll returns every stored drawing ordered by name.
func ListAll(ctx context.Context, s Storage) ([]*models.Drawing, error) {
	n, err := s.CountDrawings(ctx)
	if err != nil {
		return nil, fmt.Errorf("count drawings: %w", err)
	}
	drawings, err := s.ListDrawings(ctx, 0, int(n))
	if err != nil {
		return nil, fmt.Errorf("list drawings: %w", err)
	}
	return drawings, nil
}
