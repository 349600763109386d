// Package parser defines the uniform table shape every input parser
// (csv, htmltable, xlsx) produces for the import engine.
package parser

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxRows caps how many data rows a parser returns. Larger inputs are
// truncated with a warning rather than rejected.
const DefaultMaxRows = 1000

// ErrNoRows is returned when the input contains a header but no data rows.
var ErrNoRows = errors.New("parser: input contains no data rows")

// Warning is a non-fatal issue found while parsing (ragged row, skipped
// line, row-cap truncation). Row is the 1-based data row index.
type Warning struct {
	Row     int
	Message string
}

// Table is the parsed input: one header row plus data rows, every row
// exactly len(Headers) wide.
type Table struct {
	Headers  []string
	Rows     [][]string
	Warnings []Warning
}

// Warn appends a warning for the given data row.
func (t *Table) Warn(row int, format string, args ...any) {
	t.Warnings = append(t.Warnings, Warning{Row: row, Message: fmt.Sprintf(format, args...)})
}

// FitRow pads or truncates row to width, reporting whether it changed.
func FitRow(row []string, width int) ([]string, bool) {
	switch {
	case len(row) == width:
		return row, false
	case len(row) < width:
		padded := make([]string, width)
		copy(padded, row)
		return padded, true
	default:
		return row[:width], true
	}
}

// SynthesizedHeaders names columns of header-less inputs column_1..column_n,
// so manual mapping overrides still have names to bind to.
func SynthesizedHeaders(n int) []string {
	headers := make([]string, n)
	for i := range headers {
		headers[i] = fmt.Sprintf("column_%d", i+1)
	}
	return headers
}

// CleanHeader trims whitespace and a leftover byte-order mark.
func CleanHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}
