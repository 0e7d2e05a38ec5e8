package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
sampling:
  policy: uniform
  query_seed: 42
match:
  workers: 8
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Sampling.Policy != "uniform" || cfg.Sampling.QuerySeed != 42 {
		t.Errorf("unexpected sampling config: %+v", cfg.Sampling)
	}
	if cfg.Match.Workers != 8 || cfg.Match.TopK != 5 {
		t.Errorf("unexpected match config: %+v", cfg.Match)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
embedding:
  backend: mock
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	if cfg.Embedding.Backend != BackendMock {
		t.Errorf("backend = %s", cfg.Embedding.Backend)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/drawings.db"
embedding:
  model_path: "/opt/models/encoder.onnx"
library:
  directories: ["./drawings"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "drawings.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if cfg.Embedding.ModelPath != "/opt/models/encoder.onnx" {
		t.Errorf("absolute model_path changed: %s", cfg.Embedding.ModelPath)
	}
	if len(cfg.Library.Directories) != 1 {
		t.Fatalf("library directories: got %d", len(cfg.Library.Directories))
	}
	if want := filepath.Join(dir, "drawings"); cfg.Library.Directories[0] != want {
		t.Errorf("library directory = %s, want %s", cfg.Library.Directories[0], want)
	}
	if !cfg.Library.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"backend", "embedding:\n  backend: tflite\n", "backend"},
		{"policy", "sampling:\n  policy: random\n", "policy"},
		{"points", "embedding:\n  points: -4\n", "points"},
		{"jitter", "sampling:\n  jitter_ratio: -1\n", "jitter_ratio"},
		{"yaml", "server: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8090 {
		t.Errorf("default server: got %+v", cfg.Server)
	}
	if cfg.Embedding.Points != 128 || cfg.Embedding.Dimensions != 128 {
		t.Errorf("default embedding shape: got %+v", cfg.Embedding)
	}
	if cfg.Embedding.Backend != BackendONNX || cfg.Embedding.InputName != "input" || cfg.Embedding.OutputName != "output" {
		t.Errorf("default embedding names: got %+v", cfg.Embedding)
	}
	if cfg.Sampling.Policy != "fps" || cfg.Sampling.JitterRatio != 1e-4 || cfg.Sampling.Upscale {
		t.Errorf("default sampling: got %+v", cfg.Sampling)
	}
	if len(cfg.Library.Extensions) != 1 || cfg.Library.Extensions[0] != ".json" {
		t.Errorf("library extensions: got %v", cfg.Library.Extensions)
	}
	if cfg.Library.Recursive != nil {
		t.Error("recursive should stay unset without directories")
	}
	if cfg.Match.Workers != 4 || cfg.Match.TopK != 5 {
		t.Errorf("default match: got %+v", cfg.Match)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLibraryConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		l := &LibraryConfig{}
		if got := l.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		l := &LibraryConfig{Recursive: &f}
		if got := l.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Storage.DatabasePath = "/tmp/db"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.Storage.DatabasePath != "/tmp/db" {
		t.Errorf("loaded: got %+v", loaded)
	}
}
