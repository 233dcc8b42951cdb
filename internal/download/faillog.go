package download

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FailureLog is the append-only record of failed file titles, one
// "title<TAB>reason" line each. A title is logged at most once per run.
type FailureLog struct {
	mu     sync.Mutex
	file   *os.File
	logged map[string]bool
}

// OpenFailureLog opens (or creates) the failure log for appending.
func OpenFailureLog(path string) (*FailureLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create failure log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open failure log: %w", err)
	}
	return &FailureLog{file: f, logged: make(map[string]bool)}, nil
}

// Record appends a failed title with its reason. Duplicate titles within
// the same run are dropped.
func (fl *FailureLog) Record(title, reason string) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.logged[title] {
		return nil
	}
	fl.logged[title] = true

	if _, err := fmt.Fprintf(fl.file, "%s\t%s\n", title, reason); err != nil {
		return fmt.Errorf("failed to append to failure log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (fl *FailureLog) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.file.Close()
}
