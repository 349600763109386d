// Package xlsx parses .xlsx workbooks into the uniform table shape.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"staffimport/internal/config"
	"staffimport/internal/parser"
)

// Parse reads one worksheet into a table.
//
// Options:
//
//	sheet      string, worksheet name (default: the first sheet)
//	has_header bool, first row is the header (default true)
//	max_rows   int, data-row cap (default parser.DefaultMaxRows)
//
// Excel trims trailing empty cells per row, so rows are padded back to the
// header width without a warning.
func Parse(r io.Reader, opt config.Options) (*parser.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := opt.String("sheet", "")
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	hasHeader := opt.Bool("has_header", true)
	maxRows := opt.Int("max_rows", parser.DefaultMaxRows)

	t := &parser.Table{}
	if hasHeader {
		t.Headers = make([]string, len(rows[0]))
		for i, h := range rows[0] {
			t.Headers[i] = parser.CleanHeader(h)
		}
		rows = rows[1:]
	} else {
		t.Headers = parser.SynthesizedHeaders(len(rows[0]))
	}

	for _, row := range rows {
		if len(t.Rows) >= maxRows {
			t.Warn(maxRows, "input truncated at %d rows", maxRows)
			break
		}
		if len(row) > len(t.Headers) {
			t.Warn(len(t.Rows)+1, "row has %d columns, expected %d", len(row), len(t.Headers))
		}
		fitted, _ := parser.FitRow(row, len(t.Headers))
		t.Rows = append(t.Rows, fitted)
	}

	if len(t.Rows) == 0 {
		return nil, parser.ErrNoRows
	}
	return t, nil
}
