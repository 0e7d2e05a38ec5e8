package models

import (
	"fmt"
	"strings"
	"time"
)

// Drawing is the interchange record for a stored reference drawing.
type Drawing struct {
	ID          string    `json:"id,omitempty" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Count       int       `json:"count" db:"count"`
	Points      Sequence  `json:"points" db:"points"`
	SourcePath  string    `json:"source_path,omitempty" db:"source_path"`
	CreatedAt   time.Time `json:"created_at,omitzero" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitzero" db:"updated_at"`
}

// Validate checks that the drawing has a name and points, and that count agrees with the points
// when it is set. A zero count is filled in from the points.
func (d *Drawing) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("drawing name cannot be empty")
	}
	if len(d.Points) == 0 {
		return fmt.Errorf("drawing %q: %w", d.Name, ErrEmptySequence)
	}
	if d.Count == 0 {
		d.Count = len(d.Points)
	}
	if d.Count != len(d.Points) {
		return fmt.Errorf("drawing %q: count %d does not match %d points", d.Name, d.Count, len(d.Points))
	}
	return nil
}

// Sequence returns a copy of the drawing's points.
func (d *Drawing) Sequence() Sequence {
	return d.Points.Clone()
}
