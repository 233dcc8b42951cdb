// Package dump implements a streaming scanner for MediaWiki SQL dump files.
//
// A dump is a gzip-compressed mysqldump export. The scanner decompresses
// incrementally and yields one typed tuple per logical row of a single
// target table, ignoring every other statement (CREATE TABLE, comments,
// LOCK/UNLOCK, settings). The decompressed stream is never materialized;
// rows are parsed directly off a buffered reader, so multi-gigabyte dumps
// scan in constant memory.
package dump

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/logger"
)

// Row is one parsed tuple. Each field is int64, float64, string, or nil
// for SQL NULL, in dump column order.
type Row []interface{}

// Int returns field i as int64. ok is false for NULL or non-numeric fields.
func (r Row) Int(i int) (int64, bool) {
	if i >= len(r) {
		return 0, false
	}
	switch v := r[i].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// String returns field i as a string. ok is false for NULL or non-string fields.
func (r Row) String(i int) (string, bool) {
	if i >= len(r) {
		return "", false
	}
	s, ok := r[i].(string)
	return s, ok
}

// Scanner streams tuples of one table out of a SQL dump. Use it like
// database/sql rows:
//
//	for sc.Next() {
//		row := sc.Row()
//		...
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	table   string
	r       *bufio.Reader
	closers []io.Closer
	path    string
	logger  *logger.Logger

	row      Row
	inValues bool // currently positioned inside an INSERT ... VALUES list
	skipped  int64
	rows     int64
	err      error
	done     bool
}

// Open opens a gzip-compressed dump file for scanning tuples of table.
// A missing file or corrupt gzip header is a *FormatError.
func Open(path, table string, log *logger.Logger) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, &FormatError{Path: path, Err: fmt.Errorf("gzip header: %w", err)}
	}

	sc := NewScanner(gz, table, log)
	sc.path = path
	sc.closers = []io.Closer{gz, f}
	return sc, nil
}

// NewScanner scans tuples of table from an already-decompressed SQL stream.
func NewScanner(r io.Reader, table string, log *logger.Logger) *Scanner {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Scanner{
		table:  table,
		r:      bufio.NewReaderSize(r, 256*1024),
		path:   "(stream)",
		logger: log,
	}
}

// Next advances to the next well-formed tuple of the target table.
// Malformed tuples are counted, logged at debug level and skipped.
func (s *Scanner) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	for {
		if !s.inValues {
			found, err := s.seekInsert()
			if err != nil {
				s.finish(err)
				return false
			}
			if !found {
				s.done = true
				return false
			}
			s.inValues = true
		}

		row, more, err := s.parseTuple()
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				s.skipped++
				s.logger.Debugw("Skipping malformed row",
					"dump", s.path,
					"table", s.table,
					"error", rowErr.Err.Error(),
				)
				if s.recoverToNextTuple() {
					continue
				}
				s.inValues = false
				continue
			}
			s.finish(err)
			return false
		}

		if !more {
			s.inValues = false
		}
		s.row = row
		s.rows++
		return true
	}
}

// Row returns the tuple read by the last successful Next call.
func (s *Scanner) Row() Row {
	return s.row
}

// Err returns the first fatal error hit during scanning, if any.
func (s *Scanner) Err() error {
	return s.err
}

// SkippedRows returns the number of malformed tuples skipped so far.
func (s *Scanner) SkippedRows() int64 {
	return s.skipped
}

// ScannedRows returns the number of tuples successfully yielded so far.
func (s *Scanner) ScannedRows() int64 {
	return s.rows
}

// Close releases the underlying gzip reader and file, if any.
func (s *Scanner) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

func (s *Scanner) finish(err error) {
	if err == io.EOF {
		s.done = true
		return
	}
	s.err = &FormatError{Path: s.path, Err: err}
}

// seekInsert consumes statements until it is positioned just after the
// opening of an "INSERT INTO `table` VALUES" list. Returns false on clean EOF.
func (s *Scanner) seekInsert() (bool, error) {
	for {
		if err := s.skipSpace(); err != nil {
			if err == io.EOF {
				return false, nil
			}
			return false, err
		}

		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return false, nil
			}
			return false, err
		}

		switch {
		case b == '-':
			// "-- comment" runs to end of line.
			if err := s.skipLine(); err != nil {
				return false, err
			}
		case b == '/':
			// "/*!40101 ... */;" conditional comment.
			if err := s.skipBlockComment(); err != nil {
				return false, err
			}
		default:
			if err := s.r.UnreadByte(); err != nil {
				return false, err
			}
			word, err := s.readWord()
			if err != nil {
				if err == io.EOF {
					return false, nil
				}
				return false, err
			}
			if !strings.EqualFold(word, "INSERT") {
				if err := s.skipStatement(); err != nil {
					return false, err
				}
				continue
			}
			ok, err := s.matchInsertHeader()
			if err != nil {
				return false, err
			}
			if !ok {
				// INSERT into some other table.
				if err := s.skipStatement(); err != nil {
					return false, err
				}
				continue
			}
			return true, nil
		}
	}
}

// matchInsertHeader parses "INTO `name` VALUES" after the INSERT keyword and
// reports whether name is the target table. On a match the reader is left at
// the first tuple's opening parenthesis.
func (s *Scanner) matchInsertHeader() (bool, error) {
	word, err := s.readWord()
	if err != nil {
		return false, err
	}
	if !strings.EqualFold(word, "INTO") {
		return false, nil
	}

	if err := s.skipSpace(); err != nil {
		return false, err
	}
	name, err := s.readIdentifier()
	if err != nil {
		return false, err
	}
	if name != s.table {
		return false, nil
	}

	word, err = s.readWord()
	if err != nil {
		return false, err
	}
	if !strings.EqualFold(word, "VALUES") {
		return false, fmt.Errorf("expected VALUES after INSERT INTO `%s`, got %q", s.table, word)
	}
	return true, nil
}

// parseTuple reads one "(f1,f2,...)" tuple. more reports whether another
// tuple follows in the same statement.
func (s *Scanner) parseTuple() (row Row, more bool, err error) {
	if err := s.skipSpace(); err != nil {
		return nil, false, err
	}
	b, err := s.r.ReadByte()
	if err != nil {
		return nil, false, err
	}
	if b != '(' {
		return nil, false, &RowError{Table: s.table, Err: fmt.Errorf("expected '(', got %q", string(b))}
	}

	row = make(Row, 0, 8)
	for {
		field, err := s.parseField()
		if err != nil {
			return nil, false, err
		}
		row = append(row, field)

		if err := s.skipSpace(); err != nil {
			return nil, false, err
		}
		b, err := s.r.ReadByte()
		if err != nil {
			return nil, false, err
		}
		switch b {
		case ',':
			continue
		case ')':
			more, err := s.afterTuple()
			return row, more, err
		default:
			return nil, false, &RowError{Table: s.table, Err: fmt.Errorf("expected ',' or ')', got %q", string(b))}
		}
	}
}

// afterTuple consumes the separator following a closed tuple: ',' means more
// tuples follow, ';' ends the statement.
func (s *Scanner) afterTuple() (bool, error) {
	if err := s.skipSpace(); err != nil {
		return false, err
	}
	b, err := s.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	switch b {
	case ',':
		return true, nil
	case ';':
		return false, nil
	default:
		return false, &RowError{Table: s.table, Err: fmt.Errorf("expected ',' or ';' after tuple, got %q", string(b))}
	}
}

// parseField reads a single field value: NULL, a quoted string, or a number.
func (s *Scanner) parseField() (interface{}, error) {
	if err := s.skipSpace(); err != nil {
		return nil, err
	}
	b, err := s.r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch {
	case b == '\'':
		return s.parseQuoted()
	case b == 'N' || b == 'n':
		if err := s.r.UnreadByte(); err != nil {
			return nil, err
		}
		word, err := s.readBareToken()
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(word, "NULL") {
			return nil, nil
		}
		return nil, &RowError{Table: s.table, Err: fmt.Errorf("unexpected literal %q", word)}
	case b == '-' || b == '+' || (b >= '0' && b <= '9') || b == '.':
		if err := s.r.UnreadByte(); err != nil {
			return nil, err
		}
		return s.parseNumber()
	default:
		return nil, &RowError{Table: s.table, Err: fmt.Errorf("unexpected field start %q", string(b))}
	}
}

// parseQuoted reads a single-quoted string honoring backslash escapes and
// doubled quotes. The opening quote has already been consumed.
func (s *Scanner) parseQuoted() (string, error) {
	var sb strings.Builder
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return "", &RowError{Table: s.table, Err: errors.New("unterminated string")}
			}
			return "", err
		}
		switch b {
		case '\\':
			esc, err := s.r.ReadByte()
			if err != nil {
				if err == io.EOF {
					return "", &RowError{Table: s.table, Err: errors.New("unterminated escape")}
				}
				return "", err
			}
			sb.WriteByte(unescape(esc))
		case '\'':
			// '' inside a string is a literal quote.
			next, err := s.r.ReadByte()
			if err != nil {
				if err == io.EOF {
					return sb.String(), nil
				}
				return "", err
			}
			if next == '\'' {
				sb.WriteByte('\'')
				continue
			}
			if err := s.r.UnreadByte(); err != nil {
				return "", err
			}
			return sb.String(), nil
		default:
			sb.WriteByte(b)
		}
	}
}

func unescape(b byte) byte {
	switch b {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	case 'Z':
		return 26
	default:
		// \' \" \\ and anything else map to the escaped byte itself.
		return b
	}
}

// parseNumber reads an integer or float literal.
func (s *Scanner) parseNumber() (interface{}, error) {
	var sb strings.Builder
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if (b >= '0' && b <= '9') || b == '-' || b == '+' || b == '.' || b == 'e' || b == 'E' {
			sb.WriteByte(b)
			continue
		}
		if err := s.r.UnreadByte(); err != nil {
			return nil, err
		}
		break
	}

	lit := sb.String()
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(lit, 64); err == nil {
		return f, nil
	}
	return nil, &RowError{Table: s.table, Err: fmt.Errorf("bad numeric literal %q", lit)}
}

// recoverToNextTuple re-synchronizes after a malformed tuple by scanning for
// the next "),(" boundary or the end of the statement. Quote state is unknown
// at this point, so this is best effort; it reports whether another tuple is
// available.
func (s *Scanner) recoverToNextTuple() bool {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			s.done = true
			return false
		}
		if b != ')' {
			continue
		}
		next, err := s.r.ReadByte()
		if err != nil {
			s.done = true
			return false
		}
		switch next {
		case ',':
			return true
		case ';':
			return false
		default:
			if err := s.r.UnreadByte(); err != nil {
				s.done = true
				return false
			}
		}
	}
}

// skipStatement consumes the remainder of a statement up to its terminating
// unquoted semicolon, tracking quote and escape state so data containing ';'
// does not end the statement early.
func (s *Scanner) skipStatement() error {
	var quote byte
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if quote != 0 {
			switch b {
			case '\\':
				if quote != '`' {
					// consume escaped byte
					if _, err := s.r.ReadByte(); err != nil {
						if err == io.EOF {
							return nil
						}
						return err
					}
				}
			case quote:
				quote = 0
			}
			continue
		}
		switch b {
		case '\'', '"', '`':
			quote = b
		case ';':
			return nil
		}
	}
}

func (s *Scanner) skipLine() error {
	_, err := s.r.ReadString('\n')
	if err == io.EOF {
		return nil
	}
	return err
}

// skipBlockComment consumes through "*/" and a trailing ';' if present.
func (s *Scanner) skipBlockComment() error {
	var prev byte
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if prev == '*' && b == '/' {
			if err := s.skipSpace(); err != nil && err != io.EOF {
				return err
			}
			next, err := s.r.ReadByte()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			if next != ';' {
				return s.r.UnreadByte()
			}
			return nil
		}
		prev = b
	}
}

func (s *Scanner) skipSpace() error {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if b != ' ' && b != '\t' && b != '\n' && b != '\r' {
			return s.r.UnreadByte()
		}
	}
}

// readWord reads a whitespace-delimited keyword.
func (s *Scanner) readWord() (string, error) {
	if err := s.skipSpace(); err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' {
			sb.WriteByte(b)
			continue
		}
		if err := s.r.UnreadByte(); err != nil {
			return "", err
		}
		return sb.String(), nil
	}
}

// readBareToken reads an unquoted literal token (used for NULL).
func (s *Scanner) readBareToken() (string, error) {
	var sb strings.Builder
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') {
			sb.WriteByte(b)
			continue
		}
		if err := s.r.UnreadByte(); err != nil {
			return "", err
		}
		return sb.String(), nil
	}
}

// readIdentifier reads a table name, optionally backquoted.
func (s *Scanner) readIdentifier() (string, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		return "", err
	}
	if b == '`' {
		var sb strings.Builder
		for {
			b, err := s.r.ReadByte()
			if err != nil {
				return "", err
			}
			if b == '`' {
				return sb.String(), nil
			}
			sb.WriteByte(b)
		}
	}
	if err := s.r.UnreadByte(); err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_' {
			sb.WriteByte(b)
			continue
		}
		if err := s.r.UnreadByte(); err != nil {
			return "", err
		}
		return sb.String(), nil
	}
}
