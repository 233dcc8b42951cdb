package download

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/progress"
)

// fakeFetcher serves canned bodies keyed by URL substring and records every
// requested URL.
type fakeFetcher struct {
	mu       sync.Mutex
	requests []string
	fail     map[string]*FetchError // title substring -> error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.requests = append(f.requests, url)
	f.mu.Unlock()

	for sub, ferr := range f.fail {
		if strings.Contains(url, sub) {
			return nil, ferr
		}
	}
	return io.NopCloser(bytes.NewReader([]byte("media-bytes"))), nil
}

func (f *fakeFetcher) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestStore(t *testing.T, titles map[string]string) *progress.Store {
	t.Helper()
	store, err := progress.Load(filepath.Join(t.TempDir(), "index.json"), nil)
	require.NoError(t, err)
	store.Merge(titles, nil)
	return store
}

func TestEngineDownloadsPendingFiles(t *testing.T) {
	store := newTestStore(t, map[string]string{
		"A.jpg": "Cats",
		"B.jpg": "Cats",
		"C.jpg": "Dogs",
	})
	outDir := t.TempDir()

	fetcher := &fakeFetcher{}
	engine, err := NewEngine(fetcher, store, nil, Config{
		OutputDir: outDir,
		BaseURL:   "https://commons.wikimedia.org",
		Workers:   3,
	}, nil)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), store.Pending())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Downloaded)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	for _, name := range []string{"A.jpg", "B.jpg", "C.jpg"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err)
		assert.Equal(t, "media-bytes", string(data))

		entry, ok := store.Entry(name)
		require.True(t, ok)
		assert.Equal(t, progress.StatusDownloaded, entry.Status)
	}
	assert.Empty(t, store.Pending())
}

func TestEngineFailureDoesNotAbortSiblings(t *testing.T) {
	store := newTestStore(t, map[string]string{
		"Good.jpg": "Cats",
		"Gone.jpg": "Cats",
	})
	outDir := t.TempDir()

	fetcher := &fakeFetcher{fail: map[string]*FetchError{
		"Gone.jpg": {Kind: FetchNotFound, URL: "x", Err: errors.New("404")},
	}}
	engine, err := NewEngine(fetcher, store, nil, Config{OutputDir: outDir}, nil)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), store.Pending())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.Failed)

	good, _ := store.Entry("Good.jpg")
	assert.Equal(t, progress.StatusDownloaded, good.Status)
	gone, _ := store.Entry("Gone.jpg")
	assert.Equal(t, progress.StatusInvalid, gone.Status)
}

func TestEngineSkipsFilesAlreadyOnDisk(t *testing.T) {
	store := newTestStore(t, map[string]string{"A.jpg": "Cats"})
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "A.jpg"), []byte("old"), 0o644))

	fetcher := &fakeFetcher{}
	engine, err := NewEngine(fetcher, store, nil, Config{OutputDir: outDir}, nil)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), store.Pending())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Downloaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, fetcher.requestCount(), "disk hit never reaches the network")

	// The on-disk file is authoritative; contents are untouched.
	data, err := os.ReadFile(filepath.Join(outDir, "A.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entry, _ := store.Entry("A.jpg")
	assert.Equal(t, progress.StatusDownloaded, entry.Status)
}

func TestEngineRecordsFailures(t *testing.T) {
	store := newTestStore(t, map[string]string{"Gone.jpg": "Cats"})
	logPath := filepath.Join(t.TempDir(), "invalid.txt")

	failLog, err := OpenFailureLog(logPath)
	require.NoError(t, err)

	fetcher := &fakeFetcher{fail: map[string]*FetchError{
		"Gone.jpg": {Kind: FetchNotFound, URL: "x", Err: errors.New("404")},
	}}
	engine, err := NewEngine(fetcher, store, failLog, Config{OutputDir: t.TempDir()}, nil)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), store.Pending())
	require.NoError(t, err)
	require.NoError(t, failLog.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "Gone.jpg\tnot_found\n", string(data))
}

func TestEngineFlushesIndex(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "index.json")
	store, err := progress.Load(indexPath, nil)
	require.NoError(t, err)
	store.Merge(map[string]string{"A.jpg": "Cats"}, nil)

	engine, err := NewEngine(&fakeFetcher{}, store, nil, Config{OutputDir: t.TempDir()}, nil)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), store.Pending())
	require.NoError(t, err)

	reloaded, err := progress.Load(indexPath, nil)
	require.NoError(t, err)
	entry, ok := reloaded.Entry("A.jpg")
	require.True(t, ok)
	assert.Equal(t, progress.StatusDownloaded, entry.Status, "final state reached disk")
}

func TestEngineCancelledContext(t *testing.T) {
	store := newTestStore(t, map[string]string{"A.jpg": "Cats", "B.jpg": "Cats"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine, err := NewEngine(&fakeFetcher{}, store, nil, Config{OutputDir: t.TempDir()}, nil)
	require.NoError(t, err)

	_, err = engine.Run(ctx, store.Pending())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineEmptyPending(t *testing.T) {
	store := newTestStore(t, nil)
	fetcher := &fakeFetcher{}

	engine, err := NewEngine(fetcher, store, nil, Config{OutputDir: t.TempDir()}, nil)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Downloaded)
	assert.Zero(t, fetcher.requestCount())
}

func TestNewEngineValidation(t *testing.T) {
	store := newTestStore(t, nil)

	_, err := NewEngine(nil, store, nil, Config{}, nil)
	assert.Error(t, err)

	_, err = NewEngine(&fakeFetcher{}, nil, nil, Config{}, nil)
	assert.Error(t, err)
}

func TestEngineSanitizesTitles(t *testing.T) {
	store := newTestStore(t, map[string]string{"Dir/Traversal.jpg": "Cats"})
	outDir := t.TempDir()

	engine, err := NewEngine(&fakeFetcher{}, store, nil, Config{OutputDir: outDir}, nil)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), store.Pending())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(outDir, "Dir_Traversal.jpg"))
	assert.NoError(t, err, "path separators are flattened into the output dir")
}
