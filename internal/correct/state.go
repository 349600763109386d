package correct

import (
	"sort"

	"staffimport/internal/record"
)

// State tracks the session's correction choices, keyed "field:invalidName".
//
// A choice starts pending (chosen, not yet written to records) and becomes
// resolved when applied. Resolved choices are kept for the session so that
// backward navigation re-presents them as editable pending corrections
// instead of re-surfacing the already-fixed values as fresh errors.
type State struct {
	pending  map[string]choice
	resolved map[string]choice
}

type choice struct {
	field       string
	invalidName string
	replacement string
}

func NewState() *State {
	return &State{
		pending:  make(map[string]choice),
		resolved: make(map[string]choice),
	}
}

// SetPending attaches (or overwrites) a pending correction for a pattern.
func (s *State) SetPending(field, invalidName, replacement string) {
	s.pending[patternKey(field, invalidName)] = choice{
		field:       field,
		invalidName: invalidName,
		replacement: replacement,
	}
}

// ClearPending withdraws a pending correction.
func (s *State) ClearPending(field, invalidName string) {
	delete(s.pending, patternKey(field, invalidName))
}

// Choice returns the chosen replacement for a pattern, pending first.
func (s *State) Choice(field, invalidName string) (string, bool) {
	k := patternKey(field, invalidName)
	if c, ok := s.pending[k]; ok {
		return c.replacement, true
	}
	if c, ok := s.resolved[k]; ok {
		return c.replacement, true
	}
	return "", false
}

// AllChosen reports whether every pattern has a pending or resolved choice.
// Vacuously true for an empty pattern list.
func (s *State) AllChosen(patterns []Pattern) bool {
	for _, p := range patterns {
		if _, ok := s.Choice(p.Field, p.InvalidName); !ok {
			return false
		}
	}
	return true
}

// Apply writes every pending correction into the records (each matching cell
// is replaced) and moves the choices to resolved. Returns the number of
// replaced cells.
func (s *State) Apply(recs []*record.Record) int {
	replaced := 0
	for k, c := range s.pending {
		for _, rec := range recs {
			if rec.Get(c.field) == c.invalidName {
				rec.Set(c.field, c.replacement)
				replaced++
			}
		}
		s.resolved[k] = c
		delete(s.pending, k)
	}
	return replaced
}

// Reopen moves every resolved choice back to pending. The workflow calls
// this on backward navigation so previous choices show up editable rather
// than locked (the always-editable policy).
func (s *State) Reopen() {
	for k, c := range s.resolved {
		if _, ok := s.pending[k]; !ok {
			s.pending[k] = c
		}
		delete(s.resolved, k)
	}
}

// Resolved returns the applied corrections as (field, invalidName,
// replacement) triples, sorted by key, for the session's correction report.
func (s *State) Resolved() [][3]string {
	keys := make([]string, 0, len(s.resolved))
	for k := range s.resolved {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][3]string, 0, len(keys))
	for _, k := range keys {
		c := s.resolved[k]
		out = append(out, [3]string{c.field, c.invalidName, c.replacement})
	}
	return out
}
