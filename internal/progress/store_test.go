package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempIndex(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "index.json")
}

func TestLoadMissingIndexStartsEmpty(t *testing.T) {
	store, err := Load(tempIndex(t), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, store.Len())
	assert.Empty(t, store.ProcessedCategories())
}

func TestLoadCorruptIndexFails(t *testing.T) {
	path := tempIndex(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path, nil)
	require.Error(t, err)

	var cerr *CorruptError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, path, cerr.Path)
}

func TestMergeAndReload(t *testing.T) {
	path := tempIndex(t)

	store, err := Load(path, nil)
	require.NoError(t, err)

	added := store.Merge(map[string]string{
		"Cat1.jpg": "Cats",
		"Dog1.png": "Dogs",
	}, []string{"Cats", "Dogs"})
	assert.Equal(t, 2, added)
	require.NoError(t, store.Flush())

	reloaded, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, reloaded.Len())
	assert.True(t, reloaded.IsProcessed("Cats"))
	assert.True(t, reloaded.IsProcessed("Dogs"))
	assert.False(t, reloaded.IsProcessed("Birds"))

	entry, ok := reloaded.Entry("Cat1.jpg")
	require.True(t, ok)
	assert.Equal(t, StatusPending, entry.Status)
	assert.Equal(t, "Cats", entry.Category)
}

func TestMergeNeverDowngrades(t *testing.T) {
	store, err := Load(tempIndex(t), nil)
	require.NoError(t, err)

	store.Merge(map[string]string{"Cat1.jpg": "Cats"}, []string{"Cats"})
	store.MarkStatus("Cat1.jpg", StatusDownloaded)

	// A later run rediscovers the same file through another category.
	added := store.Merge(map[string]string{"Cat1.jpg": "Dogs"}, []string{"Dogs"})
	assert.Equal(t, 0, added)

	entry, ok := store.Entry("Cat1.jpg")
	require.True(t, ok)
	assert.Equal(t, StatusDownloaded, entry.Status, "status survives re-merge")
	assert.Equal(t, "Cats", entry.Category, "original association survives re-merge")
}

func TestMergeIdempotent(t *testing.T) {
	store, err := Load(tempIndex(t), nil)
	require.NoError(t, err)

	files := map[string]string{"Cat1.jpg": "Cats"}
	assert.Equal(t, 1, store.Merge(files, []string{"Cats"}))
	assert.Equal(t, 0, store.Merge(files, []string{"Cats"}))
	assert.Equal(t, 1, store.Len())
}

func TestMarkStatusUnknownTitleIgnored(t *testing.T) {
	store, err := Load(tempIndex(t), nil)
	require.NoError(t, err)

	store.MarkStatus("Nope.jpg", StatusDownloaded)
	assert.Equal(t, 0, store.Len())
}

func TestPendingIncludesInvalid(t *testing.T) {
	store, err := Load(tempIndex(t), nil)
	require.NoError(t, err)

	store.Merge(map[string]string{
		"A.jpg": "Cats",
		"B.jpg": "Cats",
		"C.jpg": "Dogs",
	}, nil)
	store.MarkStatus("B.jpg", StatusDownloaded)
	store.MarkStatus("C.jpg", StatusInvalid)

	pending := store.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "A.jpg", pending[0].Title, "sorted by title")
	assert.Equal(t, "C.jpg", pending[1].Title, "invalid files are retried")

	downloaded, pendingCount, invalid := store.Counts()
	assert.Equal(t, 1, downloaded)
	assert.Equal(t, 1, pendingCount)
	assert.Equal(t, 1, invalid)
}

func TestFlushAtomicAndClean(t *testing.T) {
	path := tempIndex(t)
	store, err := Load(path, nil)
	require.NoError(t, err)

	// Clean store: nothing written.
	require.NoError(t, store.Flush())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "clean store does not touch disk")

	store.Merge(map[string]string{"Cat1.jpg": "Cats"}, []string{"Cats"})
	require.NoError(t, store.Flush())

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())

	// Well-formed JSON with the expected document shape.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		ProcessedCategories []string             `json:"processed_categories"`
		KnownFiles          map[string]FileEntry `json:"known_files"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []string{"Cats"}, doc.ProcessedCategories)
	assert.Contains(t, doc.KnownFiles, "Cat1.jpg")
}

func TestFlushCreatesCheckpointDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkpoint", "index.json")
	store, err := Load(path, nil)
	require.NoError(t, err)

	store.Merge(map[string]string{"Cat1.jpg": "Cats"}, nil)
	require.NoError(t, store.Flush())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadDefaultsEmptyStatusToPending(t *testing.T) {
	path := tempIndex(t)
	doc := `{"processed_categories":[],"known_files":{"X.jpg":{"category":"Cats"}}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	store, err := Load(path, nil)
	require.NoError(t, err)

	entry, ok := store.Entry("X.jpg")
	require.True(t, ok)
	assert.Equal(t, StatusPending, entry.Status)
}
