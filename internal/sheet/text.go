package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

func parseText(data []byte, ext string, o options) (*Table, error) {
	text, enc, err := decode(data)
	if err != nil {
		return nil, err
	}

	t := &Table{Format: FormatCSV, Encoding: enc}
	if enc == "windows-1252" {
		t.warn("file is not UTF-8; read it as Windows-1252")
	}

	delim := detectDelimiter(firstLine(text), ext)
	t.Delimiter = string(delim)

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	raw, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if err := shape(t, raw, o.maxRows, false); err != nil {
		return nil, err
	}
	return t, nil
}

// decode returns the file as UTF-8 text. A byte order mark wins; otherwise
// text that is not valid UTF-8 is read as Windows-1252, the usual encoding of
// spreadsheet exports that are not Unicode.
func decode(data []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), "utf-8", nil
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return "", "", fmt.Errorf("decode utf-16: %w", err)
		}
		return string(out), "utf-16", nil
	case utf8.Valid(data):
		return string(data), "utf-8", nil
	default:
		out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return "", "", fmt.Errorf("decode windows-1252: %w", err)
		}
		return string(out), "windows-1252", nil
	}
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

// detectDelimiter counts candidate separators outside quotes on the header
// line. Ties and lines without any separator fall back to the extension.
func detectDelimiter(line, ext string) rune {
	fallback := ','
	if ext == ".tsv" {
		fallback = '\t'
	}

	counts := map[rune]int{}
	quoted := false
	for _, c := range line {
		switch {
		case c == '"':
			quoted = !quoted
		case !quoted && (c == ',' || c == ';' || c == '\t'):
			counts[c]++
		}
	}

	best, bestN := fallback, counts[fallback]
	for _, c := range []rune{',', ';', '\t'} {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	return best
}
