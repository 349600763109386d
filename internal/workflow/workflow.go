// Package workflow orchestrates an import session through its correction
// phases.
//
// The phase machine is bulk-correction → individual-correction → complete,
// with a transient date-disambiguation phase entered from bulk-correction
// when genuinely ambiguous date values exist and no ordering has been chosen
// yet. Every guard condition lives here, independent of any presentation
// layer. All engine state is session-scoped and caller-owned; nothing in
// this package is global.
package workflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"staffimport/internal/catalog"
	"staffimport/internal/correct"
	"staffimport/internal/dateresolve"
	"staffimport/internal/record"
	"staffimport/internal/schema"
	"staffimport/internal/validate"
)

// Phase is the session's current state.
type Phase string

const (
	PhaseBulkCorrection       Phase = "bulk-correction"
	PhaseDateDisambiguation   Phase = "date-disambiguation"
	PhaseIndividualCorrection Phase = "individual-correction"
	PhaseComplete             Phase = "complete"
)

// Guard failures. All are recoverable by a user action in the same session.
var (
	// ErrUnresolvedPatterns blocks leaving bulk-correction while any detected
	// pattern lacks a pending or resolved correction.
	ErrUnresolvedPatterns = errors.New("unresolved categorical values remain")

	// ErrAmbiguousDate blocks leaving date-disambiguation without an ordering.
	ErrAmbiguousDate = errors.New("ambiguous date values need an ordering")

	// ErrBlockingErrors blocks completion while error-severity findings remain.
	ErrBlockingErrors = errors.New("validation errors remain")

	// ErrWrongPhase rejects an action the current phase does not allow.
	ErrWrongPhase = errors.New("action not allowed in this phase")
)

// Logger is the minimal logging seam. *log.Logger satisfies it; nil discards.
type Logger interface {
	Printf(format string, v ...any)
}

// Session carries one import session's engine state: schema, catalogs,
// records, correction choices and the chosen date ordering. Construct one per
// upload; discard it to cancel. Nothing is committed anywhere until the
// caller hands FinalRecords to the upload step.
type Session struct {
	ID uuid.UUID

	reg       *schema.Registry
	cat       *catalog.Catalog
	rules     []validate.ConditionalRule
	constants map[string]string

	records []*record.Record
	state   *correct.State

	// snapshot holds the pre-correction records while date-disambiguation is
	// open, so cancelling can rewind the bulk-correction application.
	snapshot []*record.Record

	order  *dateresolve.Order
	phase  Phase
	logger Logger
}

// NewSession starts a session in bulk-correction over already-built records.
func NewSession(
	reg *schema.Registry,
	cat *catalog.Catalog,
	recs []*record.Record,
	constants map[string]string,
	rules []validate.ConditionalRule,
	logger Logger,
) *Session {
	return &Session{
		ID:        uuid.New(),
		reg:       reg,
		cat:       cat,
		rules:     rules,
		constants: constants,
		records:   recs,
		state:     correct.NewState(),
		phase:     PhaseBulkCorrection,
		logger:    logger,
	}
}

func (s *Session) Phase() Phase { return s.phase }

// Records exposes the live record set. Callers outside the individual-
// correction phase should treat it as read-only.
func (s *Session) Records() []*record.Record { return s.records }

// State exposes the correction choices for report rendering.
func (s *Session) State() *correct.State { return s.state }

// Patterns recomputes the active error patterns from the current records.
func (s *Session) Patterns() []correct.Pattern {
	return correct.Detect(s.records, s.cat)
}

// SetCorrection attaches a pending bulk correction for a pattern.
func (s *Session) SetCorrection(field, invalidName, replacement string) error {
	if s.phase != PhaseBulkCorrection {
		return fmt.Errorf("%w: set correction in %s", ErrWrongPhase, s.phase)
	}
	s.state.SetPending(field, invalidName, replacement)
	return nil
}

// Continue advances out of bulk-correction.
//
// Guard: every currently detected pattern needs a pending or resolved
// correction (vacuously satisfied with zero patterns). On success the
// pending corrections are applied, patterns recompute to zero for the
// corrected values, and either date-disambiguation (ambiguity exists, no
// ordering chosen) or individual-correction is entered. Entering
// individual-correction normalizes every date-role value to YYYY-MM-DD.
func (s *Session) Continue() error {
	if s.phase != PhaseBulkCorrection {
		return fmt.Errorf("%w: continue in %s", ErrWrongPhase, s.phase)
	}
	patterns := s.Patterns()
	if !s.state.AllChosen(patterns) {
		return fmt.Errorf("%w: %d patterns detected", ErrUnresolvedPatterns, len(patterns))
	}

	var snap []*record.Record
	if s.order == nil {
		snap = record.CloneAll(s.records)
	}

	replaced := s.state.Apply(s.records)
	s.logf("stage=bulk_correction applied_cells=%d patterns=%d", replaced, len(patterns))

	if s.order == nil && len(s.AmbiguousDates()) > 0 {
		s.snapshot = snap
		s.phase = PhaseDateDisambiguation
		s.logf("stage=transition phase=%s", s.phase)
		return nil
	}

	s.enterIndividual()
	return nil
}

// AmbiguousDates lists the date-role values whose component ordering cannot
// be determined without user input.
func (s *Session) AmbiguousDates() []string {
	return dateresolve.FindAmbiguous(s.dateValues())
}

// ChooseDateOrder resolves the session's date ambiguity and moves on to
// individual correction. Allowed only in date-disambiguation.
func (s *Session) ChooseDateOrder(order dateresolve.Order) error {
	if s.phase != PhaseDateDisambiguation {
		return fmt.Errorf("%w: choose date order in %s", ErrWrongPhase, s.phase)
	}
	s.order = &order
	s.snapshot = nil
	s.enterIndividual()
	return nil
}

// CancelDateDisambiguation returns to bulk-correction without committing any
// date interpretation. The records rewind to their pre-correction snapshot
// and the applied correction choices reopen as editable pending ones, so the
// user is back exactly where Continue was called.
func (s *Session) CancelDateDisambiguation() error {
	if s.phase != PhaseDateDisambiguation {
		return fmt.Errorf("%w: cancel date disambiguation in %s", ErrWrongPhase, s.phase)
	}
	s.records = s.snapshot
	s.snapshot = nil
	s.state.Reopen()
	s.phase = PhaseBulkCorrection
	s.logf("stage=transition phase=%s reason=cancel", s.phase)
	return nil
}

// EditField sets one cell during individual correction and re-validates the
// batch. The field must be known to the schema.
func (s *Session) EditField(row int, field, value string) ([]validate.Error, error) {
	if s.phase != PhaseIndividualCorrection {
		return nil, fmt.Errorf("%w: edit in %s", ErrWrongPhase, s.phase)
	}
	if !s.reg.Known(field) {
		return nil, fmt.Errorf("unknown field %q", field)
	}
	if row < 0 || row >= len(s.records) {
		return nil, fmt.Errorf("row %d out of range", row)
	}
	s.records[row].Set(field, value)
	return s.Validate(), nil
}

// Validate runs the validation engine over the current records.
func (s *Session) Validate() []validate.Error {
	return validate.Validate(s.records, s.reg, s.constants, s.rules)
}

// Finish moves to complete. Guard: zero error-severity findings; warnings do
// not block.
func (s *Session) Finish() error {
	if s.phase != PhaseIndividualCorrection {
		return fmt.Errorf("%w: finish in %s", ErrWrongPhase, s.phase)
	}
	errs := s.Validate()
	if validate.HasBlocking(errs) {
		n := 0
		for _, e := range errs {
			if e.Severity == validate.SeverityError {
				n++
			}
		}
		return fmt.Errorf("%w: %d blocking", ErrBlockingErrors, n)
	}
	s.phase = PhaseComplete
	s.logf("stage=transition phase=%s rows=%d", s.phase, len(s.records))
	return nil
}

// Restart re-enters bulk-correction with a fresh record set (the caller
// re-mapped or re-parsed). Resolved corrections reopen as editable pending
// choices, so earlier decisions survive backward navigation.
func (s *Session) Restart(recs []*record.Record) {
	s.records = recs
	s.state.Reopen()
	s.snapshot = nil
	s.phase = PhaseBulkCorrection
	s.logf("stage=transition phase=%s reason=restart rows=%d", s.phase, len(recs))
}

// FinalRecords returns the finished record set. Only valid in complete.
func (s *Session) FinalRecords() ([]*record.Record, error) {
	if s.phase != PhaseComplete {
		return nil, fmt.Errorf("%w: final records in %s", ErrWrongPhase, s.phase)
	}
	return s.records, nil
}

// enterIndividual normalizes date-role values and transitions. When no
// ordering was ever needed or chosen, forced interpretations still rewrite
// unambiguous values to canonical form; the ordering argument is inert for
// them.
func (s *Session) enterIndividual() {
	order := dateresolve.OrderDMY
	if s.order != nil {
		order = *s.order
	}
	normalized := 0
	for _, fd := range s.reg.Leaves() {
		if !dateresolve.IsDateRole(fd) {
			continue
		}
		for _, rec := range s.records {
			v := rec.Get(fd.Name)
			if v == "" {
				continue
			}
			if iso, ok := dateresolve.Resolve(order, v); ok && iso != v {
				rec.Set(fd.Name, iso)
				normalized++
			}
		}
	}
	s.phase = PhaseIndividualCorrection
	s.logf("stage=transition phase=%s normalized_dates=%d", s.phase, normalized)
}

// dateValues collects every non-empty value of every date-role field. Only
// fields semantically bound to a date role are scanned.
func (s *Session) dateValues() []string {
	var out []string
	for _, fd := range s.reg.Leaves() {
		if !dateresolve.IsDateRole(fd) {
			continue
		}
		for _, rec := range s.records {
			if v := rec.Get(fd.Name); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func (s *Session) logf(format string, v ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, v...)
}
