package watcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/egaku/internal/keyword"
	"github.com/hyperjump/egaku/internal/library"
	"github.com/hyperjump/egaku/internal/models"
	"github.com/hyperjump/egaku/internal/storage"
	"go.uber.org/zap"
)

// Reloader applies drawing file changes to the library store and, when set, to the
// persistent storage and the catalog.
type Reloader struct {
	store   *library.Store
	storage storage.Storage
	catalog keyword.Catalog
	logger  *zap.Logger

	mu      sync.Mutex
	sources map[string][]string // file path -> drawing names loaded from it
}

// NewReloader creates a reloader. db and catalog may be nil.
func NewReloader(store *library.Store, db storage.Storage, catalog keyword.Catalog, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{
		store:   store,
		storage: db,
		catalog: catalog,
		logger:  logger,
		sources: make(map[string][]string),
	}
}

// LoadDirs reads every drawing file under dirs and replaces the store's snapshot with them,
// marking the store ready. Drawings already in storage but not on disk are kept.
func (r *Reloader) LoadDirs(ctx context.Context, dirs, exts []string, recursive bool) (int, error) {
	var drawings []*models.Drawing
	for _, dir := range dirs {
		loaded, err := library.LoadDir(dir, exts, recursive)
		if err != nil {
			return 0, fmt.Errorf("load %s: %w", dir, err)
		}
		drawings = append(drawings, loaded...)
	}

	all := drawings
	if r.storage != nil {
		for _, d := range drawings {
			if err := r.storage.PutDrawing(ctx, d); err != nil {
				return 0, err
			}
		}
		stored, err := storage.ListAll(ctx, r.storage)
		if err != nil {
			return 0, err
		}
		all = stored
	}
	lib, err := library.FromDrawings(all)
	if err != nil {
		return 0, err
	}
	r.store.Replace(lib)

	r.mu.Lock()
	for _, d := range drawings {
		r.claimLocked(d.SourcePath, d.Name)
	}
	r.mu.Unlock()

	if r.catalog != nil {
		if err := r.catalog.IndexDrawings(ctx, all); err != nil {
			return 0, err
		}
	}
	r.logger.Info("reference library loaded", zap.Int("drawings", len(drawings)), zap.Int("references", r.store.Len()))
	return len(drawings), nil
}

// Reload re-reads path and replaces every drawing previously loaded from it.
func (r *Reloader) Reload(ctx context.Context, path string) error {
	drawings, err := library.LoadFile(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := make(map[string]bool, len(drawings))
	for _, d := range drawings {
		current[d.Name] = true
		if r.storage != nil {
			if err := r.storage.PutDrawing(ctx, d); err != nil {
				return err
			}
		}
		if err := r.store.Upsert(d.Name, d.Points); err != nil {
			return err
		}
		if r.catalog != nil {
			if err := r.catalog.Index(ctx, d.Name, d.Description); err != nil {
				return err
			}
		}
	}
	for _, name := range r.sources[path] {
		if !current[name] {
			if err := r.removeLocked(ctx, name); err != nil {
				return err
			}
		}
	}

	delete(r.sources, path)
	names := make([]string, 0, len(current))
	for name := range current {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.claimLocked(path, name)
	}
	r.logger.Debug("drawing file reloaded", zap.String("path", path), zap.Strings("names", names))
	return nil
}

// Remove drops every drawing loaded from path.
func (r *Reloader) Remove(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := r.sources[path]
	if r.storage != nil {
		stored, err := r.storage.DeleteBySource(ctx, path)
		if err != nil {
			return err
		}
		names = append(names, stored...)
	}
	for _, name := range names {
		if err := r.removeLocked(ctx, name); err != nil {
			return err
		}
	}
	delete(r.sources, path)
	r.logger.Debug("drawing file removed", zap.String("path", path), zap.Strings("names", names))
	return nil
}

// claimLocked records path as the file that defines name, taking it away from any other file
// so that a later change to that file does not remove it.
func (r *Reloader) claimLocked(path, name string) {
	for other, names := range r.sources {
		if other == path {
			continue
		}
		for i, n := range names {
			if n == name {
				r.sources[other] = append(names[:i:i], names[i+1:]...)
				break
			}
		}
		if len(r.sources[other]) == 0 {
			delete(r.sources, other)
		}
	}
	for _, n := range r.sources[path] {
		if n == name {
			return
		}
	}
	r.sources[path] = append(r.sources[path], name)
}

func (r *Reloader) removeLocked(ctx context.Context, name string) error {
	r.store.Delete(name)
	if r.storage != nil {
		if err := r.storage.DeleteDrawing(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	if r.catalog != nil {
		return r.catalog.Delete(ctx, name)
	}
	return nil
}

// Watch returns a Watcher whose events are applied through r. Failures are logged.
func (r *Reloader) Watch(ctx context.Context, dirs, exts []string, recursive bool, opts ...Option) *Watcher {
	onChange := func(path string) {
		if err := r.Reload(ctx, path); err != nil {
			r.logger.Warn("drawing reload failed", zap.String("path", path), zap.Error(err))
		}
	}
	onRemove := func(path string) {
		if err := r.Remove(ctx, path); err != nil {
			r.logger.Warn("drawing removal failed", zap.String("path", path), zap.Error(err))
		}
	}
	return New(dirs, exts, recursive, onChange, onRemove, append([]Option{WithLogger(r.logger)}, opts...)...)
}
