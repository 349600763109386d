package config

import (
	"strings"
	"testing"
)

func TestDecodeRejectsUnknownFields(t *testing.T) {
	in := `{"job": "x", "soruce": {}}`
	if _, err := Decode(strings.NewReader(in)); err == nil {
		t.Error("typo in field name must fail the decode")
	}
}

func TestDecodeFullSession(t *testing.T) {
	in := `{
	  "job": "spring-intake",
	  "source": {"kind": "file", "file": {"path": "staff.csv"}},
	  "parser": {"kind": "csv", "options": {"comma": ";", "max_rows": 500}},
	  "remote": {"base_url": "https://svc.example", "auth_header": "Bearer t"},
	  "constants": {"employeeTypes": "Hourly"},
	  "overrides": {"E-mail": "email"},
	  "ignore": ["Notes"],
	  "corrections": [{"field": "departments", "invalid": "Kichen", "replacement": "Kitchen"}],
	  "date_order": "dmy",
	  "export": {"kind": "sqlite", "dsn": "out.db", "table": "staff_import"}
	}`
	s, err := Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Parser.Options.Rune("comma", ',') != ';' {
		t.Errorf("comma option not decoded")
	}
	if s.Parser.Options.Int("max_rows", 0) != 500 {
		t.Errorf("max_rows option not decoded")
	}
	if s.Overrides["E-mail"] != "email" || s.Corrections[0].Replacement != "Kitchen" {
		t.Errorf("session = %+v", s)
	}
	if issues := ValidateSession(s); len(issues) != 0 {
		t.Errorf("valid session reported issues: %v", issues)
	}
}

func TestValidateSessionFindings(t *testing.T) {
	s := Session{
		Parser:    Parser{Kind: "pdf"},
		DateOrder: "ddd",
		Export:    &Export{},
	}
	issues := ValidateSession(s)

	wantErrors := map[string]bool{
		"source":          false,
		"parser.kind":     false,
		"remote.base_url": false,
		"date_order":      false,
		"export.kind":     false,
	}
	for _, is := range issues {
		if _, ok := wantErrors[is.Path]; ok && is.Severity == SeverityError {
			wantErrors[is.Path] = true
		}
	}
	for path, seen := range wantErrors {
		if !seen {
			t.Errorf("missing error for %s in %v", path, issues)
		}
	}
}

func TestOptionsAccessors(t *testing.T) {
	o := Options{
		"flag_true":  true,
		"flag_str":   "yes",
		"num":        float64(7),
		"num_str":    " 8 ",
		"comma":      ";",
		"long":       "abc",
		"header_map": map[string]any{"A": "b", "n": 3},
	}

	if !o.Bool("flag_true", false) || !o.Bool("flag_str", false) {
		t.Error("Bool accepted forms wrong")
	}
	if o.Bool("missing", true) != true {
		t.Error("Bool default wrong")
	}
	if o.Int("num", 0) != 7 || o.Int("num_str", 0) != 8 || o.Int("missing", 9) != 9 {
		t.Error("Int accessor wrong")
	}
	if o.Rune("comma", ',') != ';' || o.Rune("long", ',') != ',' {
		t.Error("Rune accessor wrong")
	}
	hm := o.StringMap("header_map")
	if hm["A"] != "b" || hm["n"] != "3" {
		t.Errorf("StringMap = %v", hm)
	}
	var nilOpts Options
	if nilOpts.Int("x", 4) != 4 {
		t.Error("nil Options must degrade to defaults")
	}
}
