// Package htmltable parses HTML-table exports into the uniform table shape.
// Several HR systems write ".xls" files that are actually a single HTML
// <table>; this parser handles those.
package htmltable

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"staffimport/internal/config"
	"staffimport/internal/parser"
)

// Parse reads the first matching <table> into a table.
//
// Options:
//
//	selector   string, table selector (default "table")
//	has_header bool, first row (or <th> row) is the header (default true)
//	max_rows   int, data-row cap (default parser.DefaultMaxRows)
//
// The header row is the first <tr> containing <th> cells, else the first
// <tr> when has_header is true. Cell text is whitespace-trimmed.
func Parse(r io.Reader, opt config.Options) (*parser.Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	sel := opt.String("selector", "table")
	table := doc.Find(sel).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no %q element found", sel)
	}

	hasHeader := opt.Bool("has_header", true)
	maxRows := opt.Int("max_rows", parser.DefaultMaxRows)

	t := &parser.Table{}
	rows := table.Find("tr")
	rows.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := cellTexts(tr)
		if len(cells) == 0 {
			return true
		}
		if t.Headers == nil {
			if hasHeader {
				for j := range cells {
					cells[j] = parser.CleanHeader(cells[j])
				}
				t.Headers = cells
				return true
			}
			t.Headers = parser.SynthesizedHeaders(len(cells))
		}
		if len(t.Rows) >= maxRows {
			t.Warn(maxRows, "input truncated at %d rows", maxRows)
			return false
		}
		fitted, changed := parser.FitRow(cells, len(t.Headers))
		if changed {
			t.Warn(len(t.Rows)+1, "row has %d columns, expected %d", len(cells), len(t.Headers))
		}
		t.Rows = append(t.Rows, fitted)
		return true
	})

	if t.Headers == nil {
		return nil, fmt.Errorf("table has no rows")
	}
	if len(t.Rows) == 0 {
		return nil, parser.ErrNoRows
	}
	return t, nil
}

// cellTexts returns the trimmed text of a row's <th> cells, or its <td>
// cells when it has no <th>.
func cellTexts(tr *goquery.Selection) []string {
	cells := tr.Find("th")
	if cells.Length() == 0 {
		cells = tr.Find("td")
	}
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.TrimSpace(c.Text()))
	})
	return out
}
