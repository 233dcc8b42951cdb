// Package progress persists the index of discovered files and fully
// resolved categories, making repeated runs incremental. The Store is the
// single writer of the on-disk JSON document; the resolver and the download
// engine mutate it only through its synchronized methods.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/logger"
)

// FileStatus is the download state of a known file title.
type FileStatus string

const (
	StatusPending    FileStatus = "pending"
	StatusDownloaded FileStatus = "downloaded"
	StatusInvalid    FileStatus = "invalid"
)

// FileEntry records what is known about a single file title.
type FileEntry struct {
	Status FileStatus `json:"status"`
	// Category is the first category (in traversal order) that discovered
	// this file. Stable across runs: once set it is never rewritten.
	Category string `json:"category"`
}

// CorruptError indicates an index file that exists but cannot be decoded.
// User progress cannot be safely guessed, so this is fatal at startup.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("progress index %s is corrupt: %v (refusing to discard prior progress)", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// indexDocument is the on-disk JSON shape. Unknown fields from newer tool
// versions are ignored on load, keeping the index forward-readable.
type indexDocument struct {
	ProcessedCategories []string             `json:"processed_categories"`
	KnownFiles          map[string]FileEntry `json:"known_files"`
}

// Store is an in-memory progress index bound to its on-disk location.
type Store struct {
	mu        sync.Mutex
	path      string
	processed map[string]struct{}
	files     map[string]FileEntry
	dirty     bool
	logger    *logger.Logger
}

// Load reads the index at path. A missing file yields an empty index; a
// file that exists but cannot be parsed is a *CorruptError.
func Load(path string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewDefault()
	}
	s := &Store{
		path:      path,
		processed: make(map[string]struct{}),
		files:     make(map[string]FileEntry),
		logger:    log,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Debugw("No progress index found, starting empty", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}

	var doc indexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}

	for _, cat := range doc.ProcessedCategories {
		s.processed[cat] = struct{}{}
	}
	for title, entry := range doc.KnownFiles {
		if entry.Status == "" {
			entry.Status = StatusPending
		}
		s.files[title] = entry
	}

	log.Infow("Progress index loaded",
		"path", path,
		"processed_categories", len(s.processed),
		"known_files", len(s.files),
	)
	return s, nil
}

// IsProcessed reports whether a category has been fully resolved before.
func (s *Store) IsProcessed(category string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[category]
	return ok
}

// ProcessedCategories returns the resolved categories in sorted order.
func (s *Store) ProcessedCategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cats := make([]string, 0, len(s.processed))
	for cat := range s.processed {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

// Merge unions newly discovered files and resolved categories into the
// index. Existing entries are never removed or downgraded: a file already
// known keeps its status and original category association. Idempotent.
// Returns the number of file titles added.
func (s *Store) Merge(newFiles map[string]string, resolvedCategories []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for title, category := range newFiles {
		if _, known := s.files[title]; known {
			continue
		}
		s.files[title] = FileEntry{Status: StatusPending, Category: category}
		added++
	}
	for _, cat := range resolvedCategories {
		if _, done := s.processed[cat]; !done {
			s.processed[cat] = struct{}{}
			s.dirty = true
		}
	}
	if added > 0 {
		s.dirty = true
	}
	return added
}

// MarkStatus flips the status of a known title. Unknown titles are ignored.
func (s *Store) MarkStatus(title string, status FileStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.files[title]
	if !ok || entry.Status == status {
		return
	}
	entry.Status = status
	s.files[title] = entry
	s.dirty = true
}

// Entry returns the known entry for a title.
func (s *Store) Entry(title string) (FileEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.files[title]
	return entry, ok
}

// PendingFile is a unit of download work taken from the index.
type PendingFile struct {
	Title    string
	Category string
}

// Pending returns every file not yet marked downloaded, sorted by title for
// deterministic work queues. Invalid files are included: re-running the
// tool re-attempts anything not downloaded.
func (s *Store) Pending() []PendingFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []PendingFile
	for title, entry := range s.files {
		if entry.Status != StatusDownloaded {
			pending = append(pending, PendingFile{Title: title, Category: entry.Category})
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Title < pending[j].Title })
	return pending
}

// Counts returns the number of entries per status.
func (s *Store) Counts() (downloaded, pending, invalid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.files {
		switch entry.Status {
		case StatusDownloaded:
			downloaded++
		case StatusInvalid:
			invalid++
		default:
			pending++
		}
	}
	return downloaded, pending, invalid
}

// Len returns the number of known file titles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Flush atomically writes the index to disk: the document is written to a
// temp file in the same directory and renamed over the previous index, so a
// crash mid-write never corrupts the last valid state. A clean store is a
// no-op.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	doc := indexDocument{
		ProcessedCategories: make([]string, 0, len(s.processed)),
		KnownFiles:          s.files,
	}
	for cat := range s.processed {
		doc.ProcessedCategories = append(doc.ProcessedCategories, cat)
	}
	sort.Strings(doc.ProcessedCategories)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode progress index: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp index file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace progress index: %w", err)
	}

	s.dirty = false
	s.logger.Debugw("Progress index flushed", "path", s.path, "known_files", len(s.files))
	return nil
}
