package xlsx

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"staffimport/internal/config"
)

// workbook builds an in-memory .xlsx with the given rows on Sheet1.
func workbook(t *testing.T, rows [][]any) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestParseWorkbook(t *testing.T) {
	r := workbook(t, [][]any{
		{"First Name", "Email"},
		{"Anna", "anna@example.com"},
		{"Bo"}, // trailing empty cell dropped by Excel
	})

	tab, err := Parse(r, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tab.Headers[0] != "First Name" || tab.Headers[1] != "Email" {
		t.Errorf("headers = %v", tab.Headers)
	}
	if len(tab.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tab.Rows))
	}
	if tab.Rows[1][0] != "Bo" || tab.Rows[1][1] != "" {
		t.Errorf("short row not padded: %v", tab.Rows[1])
	}
}

func TestParseRowCap(t *testing.T) {
	r := workbook(t, [][]any{
		{"n"}, {"1"}, {"2"}, {"3"},
	})
	tab, err := Parse(r, config.Options{"max_rows": float64(2)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tab.Rows) != 2 || len(tab.Warnings) != 1 {
		t.Errorf("rows=%d warnings=%v", len(tab.Rows), tab.Warnings)
	}
}

func TestParseEmptySheet(t *testing.T) {
	f := excelize.NewFile()
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	f.Close()
	if _, err := Parse(bytes.NewReader(buf.Bytes()), nil); err == nil {
		t.Error("want error for empty sheet")
	}
}
