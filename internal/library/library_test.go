package library

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/egaku/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tri = models.Sequence{{X: 0}, {X: 1}, {X: 1, Y: 1}}

func TestNew_SortedNames(t *testing.T) {
	lib, err := New(map[string]models.Sequence{"zeta": tri, "alpha": tri, "mid": tri})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, lib.Names())
	assert.Equal(t, 3, lib.Len())
	seq, ok := lib.Get("mid")
	assert.True(t, ok)
	assert.Equal(t, tri, seq)
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(map[string]models.Sequence{"": tri})
	assert.Error(t, err)
	_, err = New(map[string]models.Sequence{"empty": {}})
	assert.True(t, errors.Is(err, models.ErrEmptySequence))
}

func TestNilLibrary(t *testing.T) {
	var lib *Library
	assert.Zero(t, lib.Len())
	assert.Nil(t, lib.Names())
	_, ok := lib.Get("x")
	assert.False(t, ok)
}

func TestStore_Readiness(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Ready())
	assert.Nil(t, s.Snapshot())

	s.Replace(nil)
	assert.True(t, s.Ready())
	require.NotNil(t, s.Snapshot())
	assert.Zero(t, s.Snapshot().Len())
}

func TestStore_CopyOnWrite(t *testing.T) {
	s := NewStore()
	lib, _ := New(map[string]models.Sequence{"a": tri})
	s.Replace(lib)

	before := s.Snapshot()
	require.NoError(t, s.Upsert("b", tri))
	assert.Equal(t, 1, before.Len(), "existing snapshot must not change")
	assert.Equal(t, []string{"a", "b"}, s.Snapshot().Names())

	s.Delete("a")
	s.Delete("missing")
	assert.Equal(t, []string{"b"}, s.Snapshot().Names())
	assert.Equal(t, 1, s.Len())

	assert.Error(t, s.Upsert("", tri))
	assert.Error(t, s.Upsert("c", nil))
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := NewStore()
	s.Replace(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := s.Snapshot()
				for _, name := range snap.Names() {
					_, ok := snap.Get(name)
					assert.True(t, ok)
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Upsert(string(rune('a'+i%26)), tri))
	}
	wg.Wait()
}

func TestLoadFile_SingleAndArray(t *testing.T) {
	dir := t.TempDir()
	single := filepath.Join(dir, "hook.json")
	require.NoError(t, os.WriteFile(single, []byte(`{"count":3,"points":[{"x":0,"y":0,"z":0},{"x":1,"y":0,"z":0},{"x":1,"y":1,"z":0}]}`), 0600))
	drawings, err := LoadFile(single)
	require.NoError(t, err)
	require.Len(t, drawings, 1)
	assert.Equal(t, "hook", drawings[0].Name)
	assert.Equal(t, single, drawings[0].SourcePath)
	assert.Equal(t, tri, drawings[0].Points)

	multi := filepath.Join(dir, "set.json")
	require.NoError(t, os.WriteFile(multi, []byte(`[
		{"name":"a","count":1,"points":[{"x":1,"y":2,"z":3}]},
		{"name":"b","points":[{"x":4,"y":5,"z":6}]}
	]`), 0600))
	drawings, err = LoadFile(multi)
	require.NoError(t, err)
	require.Len(t, drawings, 2)
	assert.Equal(t, 1, drawings[1].Count)
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name":"x","count":2,"points":[{"x":1}]}`), 0600))
	_, err := LoadFile(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  "), 0600))
	_, err = LoadFile(empty)
	assert.Error(t, err)
}

func TestLoadDir_Recursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, SaveFile(filepath.Join(dir, "top.json"), &models.Drawing{Name: "top", Points: tri}))
	require.NoError(t, SaveFile(filepath.Join(sub, "deep.json"), &models.Drawing{Name: "deep", Points: tri}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0600))

	flat, err := LoadDir(dir, DefaultExtensions, false)
	require.NoError(t, err)
	require.Len(t, flat, 1)
	assert.Equal(t, "top", flat[0].Name)

	all, err := LoadDir(dir, DefaultExtensions, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	lib, err := FromDrawings(all)
	require.NoError(t, err)
	assert.Equal(t, []string{"deep", "top"}, lib.Names())
}

func TestMatchExtension(t *testing.T) {
	assert.True(t, MatchExtension("a/b.JSON", []string{"json"}))
	assert.True(t, MatchExtension("a/b.txt", nil))
	assert.False(t, MatchExtension("a/b.txt", []string{".json"}))
}
