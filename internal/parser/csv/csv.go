// Package csv parses delimited spreadsheet exports into the uniform table
// shape. Real-world HR exports arrive in UTF-8 (with or without BOM),
// UTF-16, or latin-1; the input is transparently decoded to UTF-8 before
// parsing.
package csv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"staffimport/internal/config"
	"staffimport/internal/parser"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeToUTF8 sniffs a BOM, decodes UTF-16 input, and falls back to latin-1
// for byte streams that are not valid UTF-8.
func decodeToUTF8(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], nil
	case bytes.HasPrefix(data, bomUTF16LE):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		out, err := dec.Bytes(data[len(bomUTF16LE):])
		if err != nil {
			return nil, fmt.Errorf("decode utf-16le: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(data, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		out, err := dec.Bytes(data[len(bomUTF16BE):])
		if err != nil {
			return nil, fmt.Errorf("decode utf-16be: %w", err)
		}
		return out, nil
	case utf8.Valid(data):
		return data, nil
	default:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode latin-1: %w", err)
		}
		return out, nil
	}
}

// Parse reads delimited input into a table.
//
// Options:
//
//	comma       rune, field delimiter (default ',')
//	has_header  bool, first row is the header (default true)
//	trim_space  bool, trim cell whitespace (default true)
//	lazy_quotes bool, tolerate bare quotes (default false)
//	max_rows    int, data-row cap (default parser.DefaultMaxRows)
//
// Edge cases:
//   - Ragged rows are padded/truncated to the header width with a warning.
//   - Unparseable lines are skipped with a warning, not fatal.
//   - Empty input (no header) is an error; header-only input returns
//     parser.ErrNoRows.
func Parse(r io.Reader, opt config.Options) (*parser.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	data, err := decodeToUTF8(raw)
	if err != nil {
		return nil, err
	}

	hasHeader := opt.Bool("has_header", true)
	trim := opt.Bool("trim_space", true)
	maxRows := opt.Int("max_rows", parser.DefaultMaxRows)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1

	t := &parser.Table{}

	first, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty input: no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	if hasHeader {
		t.Headers = make([]string, len(first))
		for i, h := range first {
			t.Headers[i] = parser.CleanHeader(h)
		}
	} else {
		t.Headers = parser.SynthesizedHeaders(len(first))
		appendRow(t, first, trim)
	}

	row := len(t.Rows)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			t.Warn(row, "skipped unparseable line: %v", err)
			continue
		}
		if row > maxRows {
			t.Warn(maxRows, "input truncated at %d rows", maxRows)
			break
		}
		appendRow(t, rec, trim)
	}

	if len(t.Rows) == 0 {
		return nil, parser.ErrNoRows
	}
	return t, nil
}

func appendRow(t *parser.Table, rec []string, trim bool) {
	fitted, changed := parser.FitRow(rec, len(t.Headers))
	if changed {
		t.Warn(len(t.Rows)+1, "row has %d columns, expected %d", len(rec), len(t.Headers))
	}
	if trim {
		for i, v := range fitted {
			fitted[i] = strings.TrimSpace(v)
		}
	}
	t.Rows = append(t.Rows, fitted)
}
