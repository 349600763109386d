package htmltable

import (
	"strings"
	"testing"

	"staffimport/internal/config"
)

const doc = `<!DOCTYPE html>
<html><body>
<table>
  <tr><th> First Name </th><th>Department</th></tr>
  <tr><td>Anna</td><td>Kitchen</td></tr>
  <tr><td>Bo</td><td>Front Desk</td></tr>
</table>
</body></html>`

func TestParseHeadersAndRows(t *testing.T) {
	tab, err := Parse(strings.NewReader(doc), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tab.Headers[0] != "First Name" || tab.Headers[1] != "Department" {
		t.Errorf("headers = %v", tab.Headers)
	}
	if len(tab.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tab.Rows))
	}
	if tab.Rows[0][1] != "Kitchen" || tab.Rows[1][0] != "Bo" {
		t.Errorf("rows out of order: %v", tab.Rows)
	}
}

func TestParseTdHeader(t *testing.T) {
	in := `<table><tr><td>name</td></tr><tr><td>Anna</td></tr></table>`
	tab, err := Parse(strings.NewReader(in), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tab.Headers[0] != "name" || tab.Rows[0][0] != "Anna" {
		t.Errorf("headers=%v rows=%v", tab.Headers, tab.Rows)
	}
}

func TestParseRowCapAndRagged(t *testing.T) {
	in := `<table>
	  <tr><th>a</th><th>b</th></tr>
	  <tr><td>1</td></tr>
	  <tr><td>1</td><td>2</td></tr>
	  <tr><td>1</td><td>2</td></tr>
	</table>`
	tab, err := Parse(strings.NewReader(in), config.Options{"max_rows": float64(2)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tab.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(tab.Rows))
	}
	if got := tab.Rows[0]; len(got) != 2 || got[1] != "" {
		t.Errorf("short row not padded: %v", got)
	}
	if len(tab.Warnings) != 2 {
		t.Errorf("warnings = %v, want ragged + truncation", tab.Warnings)
	}
}

func TestParseNoTable(t *testing.T) {
	if _, err := Parse(strings.NewReader("<p>hi</p>"), nil); err == nil {
		t.Error("want error for missing table")
	}
}
