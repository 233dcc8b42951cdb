package dump

import "fmt"

// FormatError indicates a dump file that cannot be scanned at all: missing
// file, corrupt gzip header, or truncation before any statement boundary.
// It is fatal for that dump; other dumps may still be processed.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("dump format error in %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// RowError indicates a single malformed tuple inside an otherwise valid
// INSERT statement. The scanner skips the tuple, counts it and continues.
type RowError struct {
	Table string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("malformed row in `%s`: %v", e.Table, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
