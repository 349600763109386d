package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"staffimport/internal/correct"
)

const testSchemaDoc = `{
  "properties": {
    "email":     {"type": "string", "format": "email", "unique": true},
    "firstName": {"type": "string"},
    "lastName":  {"type": "string"},
    "hiredFrom": {"type": "string", "format": "date"},
    "departments": {
      "type": "string",
      "values": [{"id": 1, "name": "Kitchen"}, {"id": 2, "name": "Bar"}]
    }
  },
  "required": ["email", "firstName", "lastName", "departments"]
}`

// fakeService serves the schema document and reference catalogs.
func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/staff/schema", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, testSchemaDoc)
	})
	mux.HandleFunc("/api/v1/departments", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "name": "Kitchen"}, {"id": 2, "name": "Bar"}]`)
	})
	for _, p := range []string{"/api/v1/employee-groups", "/api/v1/employee-types", "/api/v1/supervisors"} {
		mux.HandleFunc(p, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `[]`)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeSession writes a session config file pointing at srv and input.
func writeSession(t *testing.T, dir string, srv *httptest.Server, input string, mutate func(map[string]any)) string {
	t.Helper()
	cfg := map[string]any{
		"job":    "unit",
		"source": map[string]any{"kind": "file", "file": map[string]any{"path": input}},
		"parser": map[string]any{"kind": "csv"},
		"remote": map[string]any{"base_url": srv.URL},
	}
	if mutate != nil {
		mutate(cfg)
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestRunUsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"no args", nil},
		{"missing config", []string{"-format", "json"}},
		{"bad format", []string{"-c", "x.json", "-format", "yaml"}},
		{"bad metrics kind", []string{"-c", "x.json", "-metrics", "statsd"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stderr bytes.Buffer
			code := run(context.Background(), tc.args, deps{Stderr: &stderr})
			if code != 2 {
				t.Errorf("exit = %d, want 2", code)
			}
			if stderr.Len() == 0 {
				t.Error("expected a usage message on stderr")
			}
		})
	}
}

func TestRunCleanImport(t *testing.T) {
	dir := t.TempDir()
	srv := fakeService(t)
	input := writeInput(t, dir,
		"Email,First Name,Last Name,Departments\n"+
			"a@x.com,Anna,Larsen,Kitchen\n"+
			"b@x.com,Bo,Berg,Bar\n")
	cfgPath := writeSession(t, dir, srv, input, nil)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-c", cfgPath}, deps{Stdout: &stdout, Stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "import complete") {
		t.Errorf("missing summary:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "Email") {
		t.Errorf("missing mapping report:\n%s", stdout.String())
	}
}

func TestRunAppliesConfiguredCorrections(t *testing.T) {
	dir := t.TempDir()
	srv := fakeService(t)
	input := writeInput(t, dir,
		"Email,First Name,Last Name,Departments\n"+
			"a@x.com,Anna,Larsen,Kichen\n")
	cfgPath := writeSession(t, dir, srv, input, func(cfg map[string]any) {
		cfg["corrections"] = []map[string]string{
			{"field": "departments", "invalid": "Kichen", "replacement": "Kitchen"},
		}
	})

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-c", cfgPath}, deps{Stdout: &stdout, Stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "corrections=1") {
		t.Errorf("correction not counted:\n%s", stdout.String())
	}
}

func TestRunFailsOnUnresolvedPattern(t *testing.T) {
	dir := t.TempDir()
	srv := fakeService(t)
	input := writeInput(t, dir,
		"Email,First Name,Last Name,Departments\n"+
			"a@x.com,Anna,Larsen,Warehouse\n")
	cfgPath := writeSession(t, dir, srv, input, nil)

	var stderr bytes.Buffer
	code := run(context.Background(), []string{"-c", cfgPath}, deps{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "no correction") {
		t.Errorf("stderr:\n%s", stderr.String())
	}
}

func TestRunApplySuggestionsFlag(t *testing.T) {
	dir := t.TempDir()
	srv := fakeService(t)
	input := writeInput(t, dir,
		"Email,First Name,Last Name,Departments\n"+
			"a@x.com,Anna,Larsen,Kichen\n")
	cfgPath := writeSession(t, dir, srv, input, nil)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-c", cfgPath, "-apply_suggestions"}, deps{Stdout: &stdout, Stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr.String())
	}
}

func TestRunDateOrderFromConfig(t *testing.T) {
	dir := t.TempDir()
	srv := fakeService(t)
	input := writeInput(t, dir,
		"Email,First Name,Last Name,Departments,Hired From\n"+
			"a@x.com,Anna,Larsen,Kitchen,02/03/2023\n")

	// Without date_order the ambiguity blocks the run.
	cfgPath := writeSession(t, dir, srv, input, nil)
	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-c", cfgPath}, deps{Stderr: &stderr}); code != 1 {
		t.Fatalf("ambiguous run exit = %d, want 1 (stderr: %s)", code, stderr.String())
	}

	// With date_order it resolves.
	cfgPath = writeSession(t, dir, srv, input, func(cfg map[string]any) {
		cfg["date_order"] = "dmy"
	})
	var stdout bytes.Buffer
	stderr.Reset()
	if code := run(context.Background(), []string{"-c", cfgPath}, deps{Stdout: &stdout, Stderr: &stderr}); code != 0 {
		t.Fatalf("resolved run exit = %d, stderr:\n%s", code, stderr.String())
	}
}

func TestRunJSONFormat(t *testing.T) {
	dir := t.TempDir()
	srv := fakeService(t)
	input := writeInput(t, dir,
		"Email,First Name,Last Name,Departments\n"+
			"a@x.com,Anna,Larsen,Kitchen\n")
	cfgPath := writeSession(t, dir, srv, input, nil)

	var stdout bytes.Buffer
	code := run(context.Background(), []string{"-c", cfgPath, "-format", "json"}, deps{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	var doc struct {
		Summary *summary `json:"summary"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, stdout.String())
	}
	if doc.Summary == nil || doc.Summary.Records != 1 {
		t.Errorf("summary = %+v", doc.Summary)
	}
}

func TestRunExportsToSQLite(t *testing.T) {
	dir := t.TempDir()
	srv := fakeService(t)
	input := writeInput(t, dir,
		"Email,First Name,Last Name,Departments\n"+
			"a@x.com,Anna,Larsen,Kitchen\n")
	dbPath := filepath.Join(dir, "export.db")
	cfgPath := writeSession(t, dir, srv, input, func(cfg map[string]any) {
		cfg["export"] = map[string]any{"kind": "sqlite", "dsn": dbPath, "table": "staff_import"}
	})

	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-c", cfgPath}, deps{Stderr: &stderr}); code != 0 {
		t.Fatalf("exit != 0, stderr:\n%s", stderr.String())
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("export database not created: %v", err)
	}

	// dry_run skips the sink.
	dryPath := filepath.Join(dir, "dry.db")
	cfgPath = writeSession(t, dir, srv, input, func(cfg map[string]any) {
		cfg["export"] = map[string]any{"kind": "sqlite", "dsn": dryPath, "table": "staff_import"}
	})
	if code := run(context.Background(), []string{"-c", cfgPath, "-dry_run"}, deps{}); code != 0 {
		t.Fatalf("dry run exit != 0")
	}
	if _, err := os.Stat(dryPath); !os.IsNotExist(err) {
		t.Errorf("dry run must not create the export database")
	}
}

func TestInferParserKind(t *testing.T) {
	cases := []struct{ path, want string }{
		{"staff.csv", "csv"},
		{"staff.xlsx", "xlsx"},
		{"staff.xls", "htmltable"},
		{"staff.html", "htmltable"},
		{"staff.txt", "csv"},
	}
	for _, c := range cases {
		if got := inferParserKind(c.path); got != c.want {
			t.Errorf("inferParserKind(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestPairCorrections(t *testing.T) {
	patterns := []correct.Pattern{
		{Field: "departments", InvalidName: "Kichen", Suggestion: "Kitchen", Confidence: 0.9},
		{Field: "departments", InvalidName: "Warehouse"},
	}

	applied, unresolved := pairCorrections(patterns, nil, false)
	if len(applied) != 0 || len(unresolved) != 2 {
		t.Errorf("no config, no suggestions: applied=%d unresolved=%d", len(applied), len(unresolved))
	}

	applied, unresolved = pairCorrections(patterns, nil, true)
	if len(applied) != 1 || len(unresolved) != 1 {
		t.Errorf("suggestions: applied=%d unresolved=%d", len(applied), len(unresolved))
	}
	if len(applied) == 1 && applied[0].Replacement != "Kitchen" {
		t.Errorf("suggestion replacement = %q", applied[0].Replacement)
	}
}
