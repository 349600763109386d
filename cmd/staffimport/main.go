// Command staffimport runs one non-interactive import session: fetch schema
// and catalogs, parse a spreadsheet, map columns, validate, apply the bulk
// corrections and date ordering given in the session config, and print the
// mapping/validation/correction reports. Optionally exports the final record
// set to a configured sink.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"staffimport/internal/config"
	"staffimport/internal/correct"
	"staffimport/internal/dateresolve"
	"staffimport/internal/mapper"
	"staffimport/internal/metrics"
	"staffimport/internal/metrics/datadog"
	"staffimport/internal/parser"
	csvparser "staffimport/internal/parser/csv"
	"staffimport/internal/parser/htmltable"
	"staffimport/internal/parser/xlsx"
	"staffimport/internal/record"
	"staffimport/internal/remote"
	"staffimport/internal/schema"
	"staffimport/internal/sink"
	_ "staffimport/internal/sink/all"
	"staffimport/internal/validate"
	"staffimport/internal/workflow"
)

// backendCloser is the minimal interface this command needs from a metrics backend.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps are external seams for testability.
type deps struct {
	Stdout io.Writer
	Stderr io.Writer

	BackendFactory func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error)
	Now            func() time.Time
}

// runConfig holds the parsed flags for a run.
type runConfig struct {
	ConfigPath       string
	Format           string
	ApplySuggestions bool
	DryRun           bool

	MetricsKind string
	DDTagsCSV   string
	FlushEvery  time.Duration
}

// main is intentionally small: it wires real dependencies and exits with a code.
func main() {
	code := run(context.Background(), os.Args[1:], deps{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		BackendFactory: func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{
				JobName:    jobName,
				Tags:       tags,
				FlushEvery: flushEvery,
			})
		},
		Now: time.Now,
	})
	os.Exit(code)
}

// run executes the import command and returns an exit code.
//
// Exit codes:
//   - 0: import completed (possibly with warnings).
//   - 1: import did not complete: schema unavailable, unresolved patterns,
//     unresolved date ambiguity, or blocking validation errors.
//   - 2: configuration/initialization error.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	cfg, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}

	session, err := config.Load(cfg.ConfigPath)
	if err != nil {
		fmt.Fprintf(d.Stderr, "load config: %v\n", err)
		return 2
	}
	if code := reportConfigIssues(d.Stderr, config.ValidateSession(session)); code != 0 {
		return code
	}

	lg := log.New(d.Stderr, "", log.LstdFlags)

	if cfg.MetricsKind == "datadog" {
		if d.BackendFactory == nil {
			fmt.Fprintln(d.Stderr, "internal error: BackendFactory is nil")
			return 2
		}
		tags := append(parseTagsCSV(cfg.DDTagsCSV), "tool:staffimport")
		backend, err := d.BackendFactory(ctx, session.Job, tags, cfg.FlushEvery)
		if err != nil {
			fmt.Fprintf(d.Stderr, "metrics backend init failed: %v\n", err)
			return 2
		}
		metrics.SetBackend(backend)
		defer func() { _ = backend.Close() }()
	}

	out := &reporter{w: d.Stdout, asJSON: cfg.Format == "json"}

	code, err := runImport(ctx, session, cfg, d, lg, out)
	out.flush()
	if err != nil {
		fmt.Fprintf(d.Stderr, "%v\n", err)
	}
	return code
}

// runImport is the import flow proper, split out so run() owns only
// wiring and exit-code policy for setup failures.
func runImport(
	ctx context.Context,
	session config.Session,
	cfg runConfig,
	d deps,
	lg workflow.Logger,
	out *reporter,
) (int, error) {
	// Schema and catalogs first: everything downstream needs them.
	fetchStart := d.Now()
	client := remote.NewClient(nil, session.Remote)
	reg, err := client.FetchSchema(ctx)
	if err != nil {
		if errors.Is(err, schema.ErrSchemaUnavailable) {
			return 1, fmt.Errorf("schema unavailable, retry later: %v", err)
		}
		return 1, err
	}
	cat, err := client.FetchCatalogs(ctx)
	if err != nil {
		return 1, err
	}
	metrics.ObserveHistogram(metrics.MetricStageDurationSecond, d.Now().Sub(fetchStart).Seconds(), metrics.Labels{"stage": "fetch"})

	table, err := parseInput(session)
	if err != nil {
		return 2, err
	}
	metrics.IncCounter(metrics.MetricRecordsTotal, float64(len(table.Rows)), metrics.Labels{"stage": "parse"})
	for _, w := range table.Warnings {
		lg.Printf("stage=parse row=%d warning=%q", w.Row, w.Message)
	}

	set, err := buildMappings(table.Headers, reg, session)
	if err != nil {
		return 2, err
	}
	out.mappings(set.Mappings())

	recs, err := record.Build(table.Rows, set, session.Constants, reg)
	if err != nil {
		return 2, err
	}

	ws := workflow.NewSession(reg, cat, recs, session.Constants, validate.DefaultConditionalRules(), lg)

	// Bulk-correction phase: pair detected patterns with configured (or
	// suggested) replacements, then advance.
	patterns := ws.Patterns()
	out.patterns(patterns)

	applied, unresolved := pairCorrections(patterns, session.Corrections, cfg.ApplySuggestions)
	if len(unresolved) > 0 {
		out.unresolved(unresolved)
		return 1, fmt.Errorf("%d error pattern(s) have no correction; add corrections to the config or pass -apply_suggestions", len(unresolved))
	}
	for _, c := range applied {
		if err := ws.SetCorrection(c.Field, c.Invalid, c.Replacement); err != nil {
			return 1, err
		}
	}
	metrics.IncCounter(metrics.MetricCorrectionsTotal, float64(len(applied)), nil)

	if err := ws.Continue(); err != nil {
		return 1, err
	}

	if ws.Phase() == workflow.PhaseDateDisambiguation {
		if session.DateOrder == "" {
			out.ambiguousDates(ws.AmbiguousDates())
			return 1, fmt.Errorf("ambiguous date values found; set date_order in the config")
		}
		order, err := dateresolve.ParseOrder(session.DateOrder)
		if err != nil {
			return 2, err
		}
		if err := ws.ChooseDateOrder(order); err != nil {
			return 1, err
		}
	}

	findings := ws.Validate()
	out.findings(findings)
	metrics.IncCounter(metrics.MetricErrorsTotal, float64(len(findings)), nil)

	if err := ws.Finish(); err != nil {
		return 1, fmt.Errorf("import not finishable: %v", err)
	}

	final, err := ws.FinalRecords()
	if err != nil {
		return 1, err
	}
	out.summary(ws.ID.String(), len(final), len(applied), countWarnings(findings))

	if session.Export != nil && !cfg.DryRun {
		exportStart := d.Now()
		n, err := exportBatch(ctx, session, ws, reg, final)
		if err != nil {
			return 1, fmt.Errorf("export: %v", err)
		}
		lg.Printf("stage=export sink=%s rows=%d", session.Export.Kind, n)
		metrics.ObserveHistogram(metrics.MetricStageDurationSecond, d.Now().Sub(exportStart).Seconds(), metrics.Labels{"stage": "export"})
	}

	return 0, nil
}

func parseFlags(args []string) (runConfig, error) {
	fs := flag.NewFlagSet("staffimport", flag.ContinueOnError)

	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var cfg runConfig
	fs.StringVar(&cfg.ConfigPath, "c", "", "Path to the session config JSON (required)")
	fs.StringVar(&cfg.Format, "format", "text", "Report output format: text or json")
	fs.BoolVar(&cfg.ApplySuggestions, "apply_suggestions", false, "Accept catalog suggestions for patterns without a configured correction")
	fs.BoolVar(&cfg.DryRun, "dry_run", false, "Run the session but skip the export sink")
	fs.StringVar(&cfg.MetricsKind, "metrics", "none", "Metrics backend: none or datadog")
	fs.StringVar(&cfg.DDTagsCSV, "dd_tags", "", "Extra Datadog tags CSV (e.g. env:prod,service:hr)")
	fs.DurationVar(&cfg.FlushEvery, "metrics_flush", time.Minute, "Metrics flush interval")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return runConfig{}, errors.New(usageBuf.String())
		}
		return runConfig{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}

	if cfg.ConfigPath == "" {
		return runConfig{}, errors.New("missing required -c <config.json>")
	}
	if cfg.Format != "text" && cfg.Format != "json" {
		return runConfig{}, fmt.Errorf("-format must be text or json, got %q", cfg.Format)
	}
	switch cfg.MetricsKind {
	case "none", "datadog":
	default:
		return runConfig{}, fmt.Errorf("-metrics must be none or datadog, got %q", cfg.MetricsKind)
	}

	return cfg, nil
}

func reportConfigIssues(w io.Writer, issues []config.Issue) int {
	fatal := false
	for _, is := range issues {
		fmt.Fprintf(w, "config %s: %s: %s\n", is.Severity, is.Path, is.Message)
		if is.Severity == config.SeverityError {
			fatal = true
		}
	}
	if fatal {
		return 2
	}
	return 0
}

// parseInput reads the source file with the configured (or inferred) parser.
func parseInput(session config.Session) (*parser.Table, error) {
	if session.Source.File == nil {
		return nil, fmt.Errorf("source.file.path is required")
	}
	path := session.Source.File.Path
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	kind := session.Parser.Kind
	if kind == "" {
		kind = inferParserKind(path)
	}

	switch kind {
	case "csv":
		return csvparser.Parse(f, session.Parser.Options)
	case "htmltable":
		return htmltable.Parse(f, session.Parser.Options)
	case "xlsx":
		return xlsx.Parse(f, session.Parser.Options)
	default:
		return nil, fmt.Errorf("unknown parser kind %q", kind)
	}
}

// inferParserKind picks a parser from the file extension. Legacy ".xls"
// exports from HR systems are HTML tables in practice, not real workbooks.
func inferParserKind(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return "xlsx"
	case ".html", ".htm", ".xls":
		return "htmltable"
	default:
		return "csv"
	}
}

// buildMappings auto-maps the headers, then applies config ignores and
// manual overrides on top.
func buildMappings(headers []string, reg *schema.Registry, session config.Session) (*mapper.Set, error) {
	set := mapper.AutoMap(headers, reg)
	for _, col := range session.Ignore {
		if err := set.SetIgnore(col); err != nil {
			return nil, fmt.Errorf("ignore: %w", err)
		}
	}
	for col, field := range session.Overrides {
		// An override wins over auto-mapping: release the field first if
		// another column took it.
		if other, ok := set.ColumnFor(field); ok && other != col {
			if err := set.SetMapping(other, "", reg); err != nil {
				return nil, fmt.Errorf("override %q: %w", col, err)
			}
		}
		if err := set.SetMapping(col, field, reg); err != nil {
			return nil, fmt.Errorf("override %q: %w", col, err)
		}
	}
	return set, nil
}

// pairCorrections matches detected patterns against configured corrections.
// With applySuggestions, a pattern lacking a configured correction falls back
// to its catalog suggestion when one cleared the confidence bar.
func pairCorrections(patterns []correct.Pattern, configured []config.Correction, applySuggestions bool) (applied []config.Correction, unresolved []correct.Pattern) {
	byKey := make(map[string]config.Correction, len(configured))
	for _, c := range configured {
		byKey[c.Field+":"+c.Invalid] = c
	}

	for _, p := range patterns {
		if c, ok := byKey[p.Key()]; ok {
			applied = append(applied, c)
			continue
		}
		if applySuggestions && p.Suggestion != "" {
			applied = append(applied, config.Correction{Field: p.Field, Invalid: p.InvalidName, Replacement: p.Suggestion})
			continue
		}
		unresolved = append(unresolved, p)
	}
	return applied, unresolved
}

func exportBatch(ctx context.Context, session config.Session, ws *workflow.Session, reg *schema.Registry, final []*record.Record) (int64, error) {
	s, err := sink.New(ctx, sink.Config{
		Kind:  session.Export.Kind,
		DSN:   os.ExpandEnv(session.Export.DSN),
		Table: session.Export.Table,
	})
	if err != nil {
		return 0, err
	}
	defer s.Close()

	return s.WriteRecords(ctx, ws.ID, populatedFields(final), final)
}

// populatedFields returns the union of field names across the batch, sorted.
func populatedFields(recs []*record.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range recs {
		for _, f := range r.Fields() {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	// r.Fields() is sorted per record but the union may not be.
	sort.Strings(out)
	return out
}

func countWarnings(errs []validate.Error) int {
	n := 0
	for _, e := range errs {
		if e.Severity == validate.SeverityWarning {
			n++
		}
	}
	return n
}

func parseTagsCSV(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// reporter accumulates report sections and renders them as text or one JSON
// document at flush.
type reporter struct {
	w      io.Writer
	asJSON bool

	doc struct {
		Mappings   []mapper.Mapping  `json:"mappings,omitempty"`
		Patterns   []correct.Pattern `json:"patterns,omitempty"`
		Unresolved []correct.Pattern `json:"unresolved_patterns,omitempty"`
		Ambiguous  []string          `json:"ambiguous_dates,omitempty"`
		Findings   []validate.Error  `json:"findings,omitempty"`
		Summary    *summary          `json:"summary,omitempty"`
	}
}

type summary struct {
	BatchID     string `json:"batch_id"`
	Records     int    `json:"records"`
	Corrections int    `json:"corrections"`
	Warnings    int    `json:"warnings"`
}

func (r *reporter) mappings(ms []mapper.Mapping) {
	r.doc.Mappings = ms
	if r.asJSON {
		return
	}
	fmt.Fprintln(r.w, "column mappings:")
	for _, m := range ms {
		switch {
		case m.Ignore:
			fmt.Fprintf(r.w, "  %-30s (ignored)\n", m.Column)
		case m.Field == "":
			fmt.Fprintf(r.w, "  %-30s (unmapped)\n", m.Column)
		default:
			fmt.Fprintf(r.w, "  %-30s -> %s (%s", m.Column, m.Field, m.Match)
			if m.Score > 0 {
				fmt.Fprintf(r.w, " %.2f", m.Score)
			}
			fmt.Fprintln(r.w, ")")
		}
	}
}

func (r *reporter) patterns(ps []correct.Pattern) {
	r.doc.Patterns = ps
	if r.asJSON || len(ps) == 0 {
		return
	}
	fmt.Fprintln(r.w, "error patterns:")
	for _, p := range ps {
		fmt.Fprintf(r.w, "  %s: %q x%d", p.Field, p.InvalidName, p.Count)
		if p.Suggestion != "" {
			fmt.Fprintf(r.w, " (suggest %q id=%d %.2f)", p.Suggestion, p.SuggestionID, p.Confidence)
		}
		fmt.Fprintln(r.w)
	}
}

func (r *reporter) unresolved(ps []correct.Pattern) {
	r.doc.Unresolved = ps
	if r.asJSON {
		return
	}
	fmt.Fprintln(r.w, "unresolved patterns:")
	for _, p := range ps {
		fmt.Fprintf(r.w, "  %s: %q x%d\n", p.Field, p.InvalidName, p.Count)
	}
}

func (r *reporter) ambiguousDates(values []string) {
	r.doc.Ambiguous = values
	if r.asJSON {
		return
	}
	fmt.Fprintln(r.w, "ambiguous date values:")
	for _, v := range values {
		fmt.Fprintf(r.w, "  %s\n", v)
	}
}

func (r *reporter) findings(errs []validate.Error) {
	r.doc.Findings = errs
	if r.asJSON {
		return
	}
	if len(errs) == 0 {
		fmt.Fprintln(r.w, "validation: clean")
		return
	}
	fmt.Fprintln(r.w, "validation findings:")
	for _, e := range errs {
		if e.Row < 0 {
			fmt.Fprintf(r.w, "  [%s] %s: %s\n", e.Severity, e.Field, e.Message)
			continue
		}
		fmt.Fprintf(r.w, "  [%s] row %d %s: %s\n", e.Severity, e.Row, e.Field, e.Message)
	}
}

func (r *reporter) summary(batchID string, records, corrections, warnings int) {
	r.doc.Summary = &summary{BatchID: batchID, Records: records, Corrections: corrections, Warnings: warnings}
	if r.asJSON {
		return
	}
	fmt.Fprintf(r.w, "import complete: batch=%s records=%d corrections=%d warnings=%d\n",
		batchID, records, corrections, warnings)
}

func (r *reporter) flush() {
	if !r.asJSON {
		return
	}
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(r.doc)
}
