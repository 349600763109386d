// Package mapper binds spreadsheet column headers to schema fields.
//
// Auto-mapping is deterministic and explainable: an exact name match always
// wins, fuzzy matches carry a score, and every binding reports how it was
// made. The mapping set is injective over non-ignored entries: a field and a
// column each bind at most once.
package mapper

import (
	"fmt"
	"strings"

	"staffimport/internal/schema"
)

// MatchKind records how a binding was established.
type MatchKind string

const (
	MatchExact  MatchKind = "exact"
	MatchFuzzy  MatchKind = "fuzzy"
	MatchManual MatchKind = "manual"
)

// Mapping is the resolved target for one spreadsheet column.
//
// Exactly one of the following holds: Field is set (bound), Ignore is true
// (explicitly dropped), or neither (unmapped).
type Mapping struct {
	Column string
	Field  string
	Ignore bool
	Match  MatchKind
	// Score is the fuzzy match score in (0.5, 1]; zero for exact and manual.
	Score float64
}

// DuplicateMappingError reports two columns bound to one field.
type DuplicateMappingError struct {
	Field   string
	Columns [2]string
}

func (e *DuplicateMappingError) Error() string {
	return fmt.Sprintf("field %q mapped from both %q and %q", e.Field, e.Columns[0], e.Columns[1])
}

// UnknownFieldError reports a manual mapping onto a name the schema lacks.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown schema field %q", e.Field)
}

// Set is one mapping set over a fixed header list. Entries are keyed by
// column position, not header text, so duplicate header names stay distinct
// columns and the injectivity guarantee holds for them too.
type Set struct {
	headers  []string
	mappings []*Mapping // index-aligned with headers
}

// index returns the first column position carrying header, or -1.
func (s *Set) index(column string) int {
	for i, h := range s.headers {
		if h == column {
			return i
		}
	}
	return -1
}

// AutoMap matches headers against the registry's mappable fields.
//
// Two passes, per the engine contract:
//  1. Exact: a header equal to a field name (case-insensitive, trimmed)
//     binds immediately and beats any fuzzy candidate.
//  2. Fuzzy: fields are consumed greedily in registry order; for each free
//     header and each alias pattern of the field, if the normalized header
//     contains the pattern the candidate scores len(pattern)/len(header).
//     The best-scoring header wins the field when its score exceeds 0.5.
//
// A bound column or field leaves the pool, so the result is injective.
// Columns sharing a header name compete like any others: at most one of them
// can win a field, the rest stay unmapped. Headers with no winning candidate
// stay unmapped; AutoMap never fails.
func AutoMap(headers []string, reg *schema.Registry) *Set {
	s := &Set{
		headers:  append([]string(nil), headers...),
		mappings: make([]*Mapping, len(headers)),
	}
	for i, h := range headers {
		s.mappings[i] = &Mapping{Column: h}
	}

	fields := reg.Leaves()
	fieldBound := make(map[string]bool, len(fields))
	colBound := make([]bool, len(headers))

	// Pass 1: exact.
	for _, fd := range fields {
		for i, h := range headers {
			if colBound[i] {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(h), fd.Name) {
				s.mappings[i].Field = fd.Name
				s.mappings[i].Match = MatchExact
				fieldBound[fd.Name] = true
				colBound[i] = true
				break
			}
		}
	}

	// Pass 2: fuzzy, greedy in registry order.
	for _, fd := range fields {
		if fieldBound[fd.Name] {
			continue
		}
		patterns := aliasPatterns(fd)

		bestCol := -1
		bestScore := 0.0
		for i, h := range headers {
			if colBound[i] {
				continue
			}
			nh := normalizeHeader(h)
			if nh == "" {
				continue
			}
			for _, p := range patterns {
				if !strings.Contains(nh, p) {
					continue
				}
				score := float64(len(p)) / float64(len(nh))
				if score > bestScore {
					bestScore = score
					bestCol = i
				}
			}
		}

		if bestScore > 0.5 {
			s.mappings[bestCol].Field = fd.Name
			s.mappings[bestCol].Match = MatchFuzzy
			s.mappings[bestCol].Score = bestScore
			fieldBound[fd.Name] = true
			colBound[bestCol] = true
		}
	}

	return s
}

// Mappings returns the set in column order.
func (s *Set) Mappings() []Mapping {
	out := make([]Mapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		out = append(out, *m)
	}
	return out
}

// FieldFor returns the field bound to the first column named column, if any.
func (s *Set) FieldFor(column string) (string, bool) {
	i := s.index(column)
	if i < 0 || s.mappings[i].Field == "" {
		return "", false
	}
	return s.mappings[i].Field, true
}

// ColumnFor returns the column bound to field, if any.
func (s *Set) ColumnFor(field string) (string, bool) {
	for i, m := range s.mappings {
		if m.Field == field {
			return s.headers[i], true
		}
	}
	return "", false
}

// SetMapping manually binds column to field, replacing the column's previous
// target. An empty field unmaps the column. When several columns share the
// header name, the first one is addressed.
//
// Errors:
//   - UnknownFieldError when the registry does not know field.
//   - DuplicateMappingError when another column already binds field; the
//     caller must unmap that column first (or re-point it) so a re-map is
//     always an explicit two-step in the caller's hands.
func (s *Set) SetMapping(column, field string, reg *schema.Registry) error {
	i := s.index(column)
	if i < 0 {
		return fmt.Errorf("unknown column %q", column)
	}
	m := s.mappings[i]

	if field == "" {
		m.Field = ""
		m.Ignore = false
		m.Match = ""
		m.Score = 0
		return nil
	}
	if !reg.Known(field) {
		return &UnknownFieldError{Field: field}
	}
	if other, ok := s.ColumnFor(field); ok && other != column {
		return &DuplicateMappingError{Field: field, Columns: [2]string{other, column}}
	}

	m.Field = field
	m.Ignore = false
	m.Match = MatchManual
	m.Score = 0
	return nil
}

// SetIgnore marks a column as explicitly dropped.
func (s *Set) SetIgnore(column string) error {
	i := s.index(column)
	if i < 0 {
		return fmt.Errorf("unknown column %q", column)
	}
	m := s.mappings[i]
	m.Field = ""
	m.Ignore = true
	m.Match = ""
	m.Score = 0
	return nil
}
