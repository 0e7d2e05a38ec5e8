package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/egaku/internal/models"
)

// DefaultExtensions lists the file extensions read as drawing files.
var DefaultExtensions = []string{".json"}

// LoadFile reads one drawing file. The file holds either a single drawing record or an
// array of them. A single record without a name takes the file name without extension.
func LoadFile(path string) ([]*models.Drawing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	drawings, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(drawings) == 1 && strings.TrimSpace(drawings[0].Name) == "" {
		drawings[0].Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	for _, d := range drawings {
		d.SourcePath = path
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return drawings, nil
}

// Decode parses a drawing record or an array of drawing records.
func Decode(data []byte) ([]*models.Drawing, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty drawing file")
	}
	if trimmed[0] == '[' {
		var drawings []*models.Drawing
		if err := json.Unmarshal(trimmed, &drawings); err != nil {
			return nil, fmt.Errorf("failed to parse drawings: %w", err)
		}
		return drawings, nil
	}
	var d models.Drawing
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return nil, fmt.Errorf("failed to parse drawing: %w", err)
	}
	return []*models.Drawing{&d}, nil
}

// LoadDir reads every drawing file under dir whose extension is in exts
// (all files when exts is empty). Subdirectories are read only when recursive is set.
func LoadDir(dir string, exts []string, recursive bool) ([]*models.Drawing, error) {
	var drawings []*models.Drawing
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !MatchExtension(path, exts) {
			return nil
		}
		loaded, err := LoadFile(path)
		if err != nil {
			return err
		}
		drawings = append(drawings, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drawings, nil
}

// SaveFile writes one drawing record as indented JSON.
func SaveFile(path string, d *models.Drawing) error {
	if err := d.Validate(); err != nil {
		return err
	}
	out := *d
	out.SourcePath = ""
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal drawing: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// MatchExtension reports whether path has one of exts (case-insensitive, leading dot optional).
func MatchExtension(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range exts {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
