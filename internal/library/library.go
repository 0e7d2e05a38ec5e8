// Package library holds the reference drawings a query is matched against.
package library

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/egaku/internal/models"
)

// Library is an immutable snapshot of named reference sequences.
// Names are iterated in lexicographic order.
type Library struct {
	seqs  map[string]models.Sequence
	names []string
}

// New builds a library from name -> sequence pairs. Empty names or sequences are rejected.
func New(seqs map[string]models.Sequence) (*Library, error) {
	lib := &Library{seqs: make(map[string]models.Sequence, len(seqs))}
	for name, seq := range seqs {
		if name == "" {
			return nil, fmt.Errorf("reference name cannot be empty")
		}
		if len(seq) == 0 {
			return nil, fmt.Errorf("reference %q: %w", name, models.ErrEmptySequence)
		}
		lib.seqs[name] = seq.Clone()
	}
	lib.sortNames()
	return lib, nil
}

// FromDrawings builds a library from interchange records. Later duplicates replace earlier ones.
func FromDrawings(drawings []*models.Drawing) (*Library, error) {
	seqs := make(map[string]models.Sequence, len(drawings))
	for _, d := range drawings {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		seqs[d.Name] = d.Points
	}
	return New(seqs)
}

func (l *Library) sortNames() {
	l.names = make([]string, 0, len(l.seqs))
	for name := range l.seqs {
		l.names = append(l.names, name)
	}
	sort.Strings(l.names)
}

// Names returns the reference names in lexicographic order.
func (l *Library) Names() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.names...)
}

// Get returns the sequence stored under name. The returned slice must not be modified.
func (l *Library) Get(name string) (models.Sequence, bool) {
	if l == nil {
		return nil, false
	}
	seq, ok := l.seqs[name]
	return seq, ok
}

// Len returns the number of references.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.seqs)
}

func (l *Library) with(name string, seq models.Sequence) *Library {
	next := &Library{seqs: make(map[string]models.Sequence, l.Len()+1)}
	if l != nil {
		for k, v := range l.seqs {
			next.seqs[k] = v
		}
	}
	next.seqs[name] = seq.Clone()
	next.sortNames()
	return next
}

func (l *Library) without(name string) *Library {
	next := &Library{seqs: make(map[string]models.Sequence, l.Len())}
	if l != nil {
		for k, v := range l.seqs {
			if k != name {
				next.seqs[k] = v
			}
		}
	}
	next.sortNames()
	return next
}

// Store publishes library snapshots to concurrent readers. Writers build a new snapshot and
// swap it in, so a match in progress keeps the snapshot it started with.
type Store struct {
	current atomic.Pointer[Library]
	ready   atomic.Bool
	mu      sync.Mutex // serializes writers
}

// NewStore returns an empty store that is not yet ready.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current library, or nil while the store is not ready.
func (s *Store) Snapshot() *Library {
	if !s.ready.Load() {
		return nil
	}
	return s.current.Load()
}

// Ready reports whether the initial load has completed.
func (s *Store) Ready() bool {
	return s.ready.Load()
}

// Replace installs lib as the current snapshot and marks the store ready.
func (s *Store) Replace(lib *Library) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lib == nil {
		lib = &Library{seqs: map[string]models.Sequence{}}
	}
	s.current.Store(lib)
	s.ready.Store(true)
}

// Upsert adds or replaces one reference.
func (s *Store) Upsert(name string, seq models.Sequence) error {
	if name == "" {
		return fmt.Errorf("reference name cannot be empty")
	}
	if len(seq) == 0 {
		return fmt.Errorf("reference %q: %w", name, models.ErrEmptySequence)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(s.current.Load().with(name, seq))
	return nil
}

// Delete removes one reference. Deleting a missing name is not an error.
func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current.Load()
	if _, ok := cur.Get(name); !ok {
		return
	}
	s.current.Store(cur.without(name))
}

// Len returns the number of references in the current snapshot.
func (s *Store) Len() int {
	return s.current.Load().Len()
}
