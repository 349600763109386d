// Package config defines the JSON session configuration consumed by
// cmd/staffimport and the loosely-typed Options bag shared by parsers and
// sinks.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Session is the top-level import session configuration.
type Session struct {
	Job    string `json:"job"`
	Source Source `json:"source"`
	Parser Parser `json:"parser"`
	Remote Remote `json:"remote"`

	// Constants are user-supplied literal values applied uniformly to every
	// record for fields not mapped from a column.
	Constants map[string]string `json:"constants,omitempty"`

	// Overrides force a column header onto a schema field, replacing whatever
	// auto-mapping decided. Key is the spreadsheet header, value the field name.
	Overrides map[string]string `json:"overrides,omitempty"`

	// Ignore lists headers to exclude from mapping entirely.
	Ignore []string `json:"ignore,omitempty"`

	// Corrections are non-interactive bulk corrections applied during the
	// correction phase: every occurrence of Invalid in Field becomes Replacement.
	Corrections []Correction `json:"corrections,omitempty"`

	// DateOrder resolves ambiguous date values: "dmy", "mdy", "ymd" or "ydm".
	// Empty means "fail if ambiguity is found" in non-interactive runs.
	DateOrder string `json:"date_order,omitempty"`

	Export *Export `json:"export,omitempty"`
}

type Source struct {
	Kind string      `json:"kind"`
	File *FileSource `json:"file,omitempty"`
}

type FileSource struct {
	Path string `json:"path"`
}

type Parser struct {
	// Kind selects the parser: "csv", "htmltable" or "xlsx".
	// Empty means "infer from the source file extension".
	Kind    string  `json:"kind,omitempty"`
	Options Options `json:"options,omitempty"`
}

// Remote locates the personnel service endpoints the session reads from.
type Remote struct {
	BaseURL string `json:"base_url"`

	// AuthHeader is the literal Authorization header value. Token acquisition
	// is the caller's business; this engine only forwards it.
	AuthHeader string `json:"auth_header,omitempty"`

	SchemaPath   string            `json:"schema_path,omitempty"`
	CatalogPaths map[string]string `json:"catalog_paths,omitempty"`

	MaxAttempts int `json:"max_attempts,omitempty"`
}

type Correction struct {
	Field       string `json:"field"`
	Invalid     string `json:"invalid"`
	Replacement string `json:"replacement"`
}

// Export selects an optional sink for the final validated record set.
type Export struct {
	Kind    string  `json:"kind"`
	DSN     string  `json:"dsn"`
	Table   string  `json:"table"`
	Options Options `json:"options,omitempty"`
}

// Severity levels for validation issues reported by ValidateSession.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one finding from ValidateSession.
type Issue struct {
	Severity string
	Path     string
	Message  string
}

// Load reads and decodes a session config file.
// DSNs are environment-expanded at use time, not here.
func Load(path string) (Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return Session{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes a session config from r. Unknown fields are rejected so a
// typo in a knob name fails loudly instead of being silently ignored.
func Decode(r io.Reader) (Session, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var s Session
	if err := dec.Decode(&s); err != nil {
		return Session{}, fmt.Errorf("decode config: %w", err)
	}
	return s, nil
}

// ValidateSession checks a session config for structural problems.
// Errors block a run; warnings do not.
func ValidateSession(s Session) []Issue {
	var issues []Issue

	add := func(sev, path, msg string) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: msg})
	}

	if s.Source.Kind != "file" || s.Source.File == nil || s.Source.File.Path == "" {
		add(SeverityError, "source", "source.kind=file and source.file.path are required")
	}
	switch s.Parser.Kind {
	case "", "csv", "htmltable", "xlsx":
	default:
		add(SeverityError, "parser.kind", fmt.Sprintf("unknown parser kind %q", s.Parser.Kind))
	}
	if strings.TrimSpace(s.Remote.BaseURL) == "" {
		add(SeverityError, "remote.base_url", "remote.base_url is required")
	}
	switch strings.ToLower(s.DateOrder) {
	case "", "dmy", "mdy", "ymd", "ydm":
	default:
		add(SeverityError, "date_order", fmt.Sprintf("unknown date order %q", s.DateOrder))
	}
	for i, c := range s.Corrections {
		if c.Field == "" || c.Invalid == "" {
			add(SeverityError, fmt.Sprintf("corrections[%d]", i), "field and invalid are required")
		}
	}
	if s.Export != nil {
		if s.Export.Kind == "" {
			add(SeverityError, "export.kind", "export.kind is required when export is set")
		}
		if s.Export.Table == "" {
			add(SeverityWarning, "export.table", "export.table is empty; the sink default will be used")
		}
	}
	if s.Job == "" {
		add(SeverityWarning, "job", "job is empty; metrics will be tagged job:staffimport")
	}

	return issues
}
