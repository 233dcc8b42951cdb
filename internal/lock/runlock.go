// Package lock provides a file-based run lock preventing two cwbd processes
// from mutating the same progress index concurrently.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLockHeld is returned when another process already holds the run lock.
var ErrLockHeld = errors.New("run lock is held by another process")

// RunLock guards a checkpoint directory with an exclusive lock file
// containing the holder's pid. The progress index has a single-writer
// discipline; this enforces it at the process level.
type RunLock struct {
	path string
	held bool
}

// New creates a RunLock for the given lock file path. The lock is not
// acquired until Acquire is called.
func New(path string) *RunLock {
	return &RunLock{path: path}
}

// Acquire takes the lock, failing with ErrLockHeld if a live process owns
// it. A lock file left behind by a dead process (stale pid) is reclaimed.
func (l *RunLock) Acquire() error {
	if l.held {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(l.path)
				return fmt.Errorf("failed to write lock file: %w", errors.Join(werr, cerr))
			}
			l.held = true
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		pid, perr := l.ownerPID()
		if perr == nil && processAlive(pid) {
			return fmt.Errorf("%w (pid %d)", ErrLockHeld, pid)
		}
		// Stale or unreadable lock file: remove and retry once.
		if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("failed to remove stale lock file: %w", rmErr)
		}
	}

	return ErrLockHeld
}

// Release removes the lock file if this process holds it.
func (l *RunLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Held reports whether this RunLock currently owns the lock file.
func (l *RunLock) Held() bool {
	return l.held
}

func (l *RunLock) ownerPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// processAlive reports whether a process with the given pid exists. Signal 0
// probes without delivering a signal.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
