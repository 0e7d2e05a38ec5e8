package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/egaku/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and migrates the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// SchemaVersion returns the applied migration version.
func (s *SQLiteStorage) SchemaVersion() (uint, error) {
	version, dirty, err := schemaVersion(s.db)
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// PutDrawing validates d and inserts it, or replaces the stored drawing with the same name.
// A replaced drawing keeps its ID and creation time.
func (s *SQLiteStorage) PutDrawing(ctx context.Context, d *models.Drawing) error {
	if err := d.Validate(); err != nil {
		return err
	}
	pointsJSON, err := json.Marshal(d.Points)
	if err != nil {
		return fmt.Errorf("failed to marshal points: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var id string
	var createdAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM drawings WHERE name = ?`, d.Name,
	).Scan(&id, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		d.CreatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO drawings (`+drawingColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Name, d.Description, d.Count, string(pointsJSON), d.SourcePath, now, now,
		)
	case err == nil:
		d.ID, d.CreatedAt = id, createdAt
		_, err = tx.ExecContext(ctx,
			`UPDATE drawings SET description = ?, point_count = ?, points = ?, source_path = ?, updated_at = ?
			 WHERE id = ?`,
			d.Description, d.Count, string(pointsJSON), d.SourcePath, now, d.ID,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to store drawing %q: %w", d.Name, err)
	}
	d.UpdatedAt = now
	return tx.Commit()
}

const drawingColumns = `id, name, description, point_count, points, source_path, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDrawing(row scanner) (*models.Drawing, error) {
	var d models.Drawing
	var pointsJSON string
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Count, &pointsJSON, &d.SourcePath, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pointsJSON), &d.Points); err != nil {
		return nil, fmt.Errorf("failed to unmarshal points of %q: %w", d.Name, err)
	}
	return &d, nil
}

// GetDrawing returns a drawing by name.
func (s *SQLiteStorage) GetDrawing(ctx context.Context, name string) (*models.Drawing, error) {
	d, err := scanDrawing(s.db.QueryRowContext(ctx,
		`SELECT `+drawingColumns+` FROM drawings WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return d, err
}

// DeleteDrawing removes a drawing by name.
func (s *SQLiteStorage) DeleteDrawing(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM drawings WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// DeleteBySource removes every drawing whose source path is path.
func (s *SQLiteStorage) DeleteBySource(ctx context.Context, path string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT name FROM drawings WHERE source_path = ? ORDER BY name`, path)
	if err != nil {
		return nil, err
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM drawings WHERE source_path = ?`, path); err != nil {
		return nil, err
	}
	return names, tx.Commit()
}

// ListDrawings returns drawings ordered by name with offset and limit.
func (s *SQLiteStorage) ListDrawings(ctx context.Context, offset, limit int) ([]*models.Drawing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+drawingColumns+` FROM drawings ORDER BY name LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drawings []*models.Drawing
	for rows.Next() {
		d, err := scanDrawing(rows)
		if err != nil {
			return nil, err
		}
		drawings = append(drawings, d)
	}
	return drawings, rows.Err()
}

// CountDrawings returns the total number of drawings.
func (s *SQLiteStorage) CountDrawings(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drawings`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
