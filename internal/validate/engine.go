// Package validate checks mapped records against the session schema.
//
// Rules run in a fixed order (required presence, conditional requirement,
// format, enumerated values, then the cross-record uniqueness pass) and the
// result list is sorted, so identical inputs always produce the identical
// report. Errors are regenerated from scratch on every call; nothing is
// persisted between runs.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"staffimport/internal/dateresolve"
	"staffimport/internal/record"
	"staffimport/internal/schema"
)

// Severity of a validation finding. Errors block progression; warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind classifies a finding for programmatic handling.
type Kind string

const (
	KindMissingRequired Kind = "missing_required"
	KindFormat          Kind = "format"
	KindEnum            Kind = "enum"
	KindDuplicate       Kind = "duplicate"
)

// Error is one validation finding.
//
// Row is the zero-based data row index; -1 marks a structural finding that
// belongs to the whole batch (a required field with no column and no
// constant) rather than to one row.
type Error struct {
	Field    string
	Row      int
	Value    string
	Message  string
	Severity Severity
	Kind     Kind
}

// conservative by intent; matches the service's own acceptance in practice
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const phoneMinDigits = 8

// Validate runs all rules over the batch.
//
// constants lets the structural required-presence check see user constants
// even when the batch is empty; values themselves are already baked into the
// records by record.Build.
func Validate(
	recs []*record.Record,
	reg *schema.Registry,
	constants map[string]string,
	rules []ConditionalRule,
) []Error {
	var out []Error

	present := presentFields(recs, constants)

	// Required presence + conditional requirement resolve to the same check:
	// a set of fields that must be non-empty on every row.
	required := make([]requiredField, 0)
	for _, fd := range reg.Leaves() {
		if fd.IsRequired {
			required = append(required, requiredField{
				name:    fd.Name,
				message: fmt.Sprintf("required field %s has no value", fd.Name),
			})
		}
	}
	for _, r := range rules {
		if !present[r.When] {
			continue
		}
		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("%s is required when %s is provided", r.Then, r.When)
		}
		required = append(required, requiredField{name: r.Then, message: msg})
	}

	for _, rf := range required {
		if !present[rf.name] {
			out = append(out, Error{
				Field:    rf.name,
				Row:      -1,
				Message:  fmt.Sprintf("%s is not mapped from any column and has no constant", rf.name),
				Severity: SeverityError,
				Kind:     KindMissingRequired,
			})
			continue
		}
		for _, rec := range recs {
			if strings.TrimSpace(rec.Get(rf.name)) == "" {
				out = append(out, Error{
					Field:    rf.name,
					Row:      rec.Row,
					Message:  rf.message,
					Severity: SeverityError,
					Kind:     KindMissingRequired,
				})
			}
		}
	}

	// Per-cell format and enumerated-value rules. Read-only fields get no
	// exemption: read-only on the remote schema does not mean the value
	// cannot be supplied at creation.
	for _, rec := range recs {
		for _, field := range rec.Fields() {
			v := rec.Get(field)
			if v == "" {
				continue
			}
			fd, ok := reg.Field(field)
			if !ok {
				continue
			}
			out = append(out, checkFormat(fd, rec.Row, v)...)
			out = append(out, checkEnum(fd, rec.Row, v)...)
		}
	}

	out = append(out, checkUniqueness(recs, reg)...)

	sortErrors(out)
	return out
}

// HasBlocking reports whether any finding is error-severity.
func HasBlocking(errs []Error) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

type requiredField struct {
	name    string
	message string
}

// presentFields marks every field resolvable on this batch: mapped from a
// column (so the key exists on records) or supplied as a constant.
func presentFields(recs []*record.Record, constants map[string]string) map[string]bool {
	present := make(map[string]bool)
	for f, v := range constants {
		if strings.TrimSpace(v) != "" {
			present[f] = true
		}
	}
	for _, rec := range recs {
		for f := range rec.Values {
			present[f] = true
		}
	}
	return present
}

func checkFormat(fd schema.FieldDefinition, row int, v string) []Error {
	switch {
	case fd.Format == "email" || fd.Name == "email":
		if !emailRe.MatchString(v) {
			return []Error{{
				Field: fd.Name, Row: row, Value: v,
				Message:  fmt.Sprintf("%q is not a valid email address", v),
				Severity: SeverityError,
				Kind:     KindFormat,
			}}
		}

	case fd.Format == "phone" || strings.Contains(strings.ToLower(fd.Name), "phone"):
		digits := countDigits(v)
		if digits == 0 {
			return []Error{{
				Field: fd.Name, Row: row, Value: v,
				Message:  fmt.Sprintf("%q contains no digits", v),
				Severity: SeverityError,
				Kind:     KindFormat,
			}}
		}
		if digits < phoneMinDigits {
			return []Error{{
				Field: fd.Name, Row: row, Value: v,
				Message:  fmt.Sprintf("phone number %q looks too short", v),
				Severity: SeverityWarning,
				Kind:     KindFormat,
			}}
		}

	case dateresolve.IsDateRole(fd):
		if isoDateRe.MatchString(v) {
			return nil
		}
		if dateresolve.CouldBeDate(v) && dateresolve.HasReading(v) {
			// Date-shaped with a plausible reading; the resolver will
			// rewrite it to canonical form.
			return []Error{{
				Field: fd.Name, Row: row, Value: v,
				Message:  fmt.Sprintf("date %q is not in YYYY-MM-DD form yet", v),
				Severity: SeverityWarning,
				Kind:     KindFormat,
			}}
		}
		// Date-shaped but with no calendar reading, or not date-shaped at
		// all: no ordering choice can ever normalize it.
		return []Error{{
			Field: fd.Name, Row: row, Value: v,
			Message:  fmt.Sprintf("%q is not a recognizable date", v),
			Severity: SeverityError,
			Kind:     KindFormat,
		}}
	}
	return nil
}

func checkEnum(fd schema.FieldDefinition, row int, v string) []Error {
	if len(fd.EnumOptions) == 0 {
		return nil
	}
	for _, opt := range fd.EnumOptions {
		if v == opt.Name {
			return nil
		}
	}
	return []Error{{
		Field: fd.Name, Row: row, Value: v,
		Message:  fmt.Sprintf("%q is not an allowed value for %s", v, fd.Name),
		Severity: SeverityError,
		Kind:     KindEnum,
	}}
}

// checkUniqueness flags every row participating in a duplicate value of a
// unique field, naming all conflicting rows in each message.
func checkUniqueness(recs []*record.Record, reg *schema.Registry) []Error {
	var out []Error

	for _, fd := range reg.Leaves() {
		if !fd.IsUnique {
			continue
		}
		rowsByValue := make(map[string][]int)
		for _, rec := range recs {
			v := rec.Get(fd.Name)
			if v == "" {
				continue
			}
			rowsByValue[v] = append(rowsByValue[v], rec.Row)
		}
		for v, rows := range rowsByValue {
			if len(rows) < 2 {
				continue
			}
			sort.Ints(rows)
			for _, row := range rows {
				out = append(out, Error{
					Field: fd.Name, Row: row, Value: v,
					Message:  fmt.Sprintf("%s %q duplicated on rows %s", fd.Name, v, joinInts(rows)),
					Severity: SeverityError,
					Kind:     KindDuplicate,
				})
			}
		}
	}
	return out
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return strings.Join(parts, ", ")
}

func sortErrors(errs []Error) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Row != errs[j].Row {
			return errs[i].Row < errs[j].Row
		}
		if errs[i].Field != errs[j].Field {
			return errs[i].Field < errs[j].Field
		}
		return errs[i].Kind < errs[j].Kind
	})
}
