// Package sheet turns uploaded CSV, TSV and XLSX files into a header row plus
// string data rows.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxRows caps the data rows of one file.
	MaxRows = 50000
	// MaxBytes caps the size of one file.
	MaxBytes = 20 << 20

	maxWarnings = 20
)

var (
	ErrNoHeaders         = errors.New("no header row found")
	ErrTooManyRows       = errors.New("too many rows")
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrSheetNotFound     = errors.New("worksheet not found")
)

// Format names the parser a file went through.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Table is a parsed file. Every row has exactly len(Headers) cells.
type Table struct {
	Format    Format     `json:"format"`
	Sheet     string     `json:"sheet,omitempty"`
	Delimiter string     `json:"delimiter,omitempty"`
	Encoding  string     `json:"encoding,omitempty"`
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	Warnings  []string   `json:"warnings,omitempty"`
}

type options struct {
	sheet   string
	maxRows int
}

// Option configures Parse.
type Option func(*options)

// WithSheet selects a worksheet by name. XLSX files default to the first one.
func WithSheet(name string) Option { return func(o *options) { o.sheet = name } }

// WithMaxRows overrides MaxRows.
func WithMaxRows(n int) Option { return func(o *options) { o.maxRows = n } }

// Parse reads a whole file and dispatches on its sniffed content type. The
// file name only breaks ties for content that sniffs as generic text or zip.
func Parse(name string, r io.Reader, opts ...Option) (*Table, error) {
	o := options{maxRows: MaxRows}
	for _, fn := range opts {
		fn(&o)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > MaxBytes {
		return nil, fmt.Errorf("%w: %s is over %d MB", ErrFileTooLarge, name, MaxBytes>>20)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoHeaders, name)
	}

	ext := strings.ToLower(filepath.Ext(name))
	mtype := mimetype.Detect(data)

	switch {
	case isSpreadsheet(mtype) || (isA(mtype, "application/zip") && ext == ".xlsx"):
		return parseXLSX(data, o)
	case isA(mtype, "text/plain") || ext == ".csv" || ext == ".tsv" || ext == ".txt":
		return parseText(data, ext, o)
	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, name, mtype.String())
	}
}

func isSpreadsheet(m *mimetype.MIME) bool {
	return m.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

// isA reports whether m or one of its parents is the given type.
func isA(m *mimetype.MIME, want string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(want) {
			return true
		}
	}
	return false
}

// shape picks the header row and squares the data rows off against it.
// Blank rows are skipped. Short rows are padded and long rows truncated;
// quiet suppresses the padding warning for formats that omit trailing
// empty cells.
func shape(t *Table, raw [][]string, maxRows int, quiet bool) error {
	start := -1
	for i, row := range raw {
		if !blank(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return ErrNoHeaders
	}

	headers := trimTrailing(raw[start])
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("Column %d", i+1)
			t.warn("column %d has no header; named it %q", i+1, headers[i])
		}
	}
	t.Headers = headers

	width := len(headers)
	skipped := 0
	var padded, truncated []int
	for i := start + 1; i < len(raw); i++ {
		row := raw[i]
		if blank(row) {
			skipped++
			continue
		}
		if len(t.Rows) == maxRows {
			return fmt.Errorf("%w: more than %d data rows", ErrTooManyRows, maxRows)
		}
		line := len(t.Rows) + 1
		switch {
		case len(row) < width:
			if !quiet {
				padded = append(padded, line)
			}
			row = append(row, make([]string, width-len(row))...)
		case len(row) > width:
			if !blank(row[width:]) {
				truncated = append(truncated, line)
			}
			row = row[:width]
		}
		t.Rows = append(t.Rows, row)
	}

	t.rowWarnings(padded, "has fewer cells than the header; missing cells left blank")
	t.rowWarnings(truncated, "has more cells than the header; extra cells ignored")
	if skipped > 0 {
		t.warn("blank rows skipped: %d", skipped)
	}
	return nil
}

func (t *Table) warn(format string, args ...interface{}) {
	t.Warnings = append(t.Warnings, fmt.Sprintf(format, args...))
}

func (t *Table) rowWarnings(rows []int, msg string) {
	for i, r := range rows {
		if i == maxWarnings {
			t.warn("%d more rows like this", len(rows)-maxWarnings)
			return
		}
		t.warn("row %d %s", r, msg)
	}
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimTrailing(row []string) []string {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	out := make([]string, n)
	copy(out, row[:n])
	return out
}
