package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveReadDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save("cache/metrics.json", []byte(`{"a":1}`))
	require.NoError(t, err)

	data, err := s.Read("cache/metrics.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	_, err = s.SaveStream("cache/metrics.json", strings.NewReader(`{"a":2}`))
	require.NoError(t, err)
	data, err = s.Read("cache/metrics.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	require.NoError(t, s.Delete("cache/metrics.json"))
	require.NoError(t, s.Delete("cache/metrics.json"))
	_, err = s.Read("cache/metrics.json")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = s.Save("a.json", []byte("x"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.json", entries[0].Name())
}

func TestResolveRejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save("../outside.json", []byte("x"))
	assert.Error(t, err)
}

func TestListAndCleanup(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = s.Save("old.json", []byte("x"))
	require.NoError(t, err)
	_, err = s.Save("new.json", []byte("y"))
	require.NoError(t, err)
	_, err = s.Save("note.txt", []byte("z"))
	require.NoError(t, err)

	names, err := s.List(".json")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old.json", "new.json"}, names)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.json"), past, past))

	deleted, err := s.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.json"}, deleted)
}
