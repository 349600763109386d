// Package correct finds systematic categorical errors across a record batch,
// proposes fixes, and tracks the user's correction choices.
//
// Detection is recomputed from the records on every call; a pattern whose
// occurrence count drops to zero after a correction simply stops being
// detected. Resolution is observed, never stored as a flag.
package correct

import (
	"sort"

	"staffimport/internal/catalog"
	"staffimport/internal/record"
)

// Pattern is one distinct (field, invalid value) pair found in the batch.
type Pattern struct {
	Field       string
	InvalidName string
	// Rows are the zero-based record rows carrying the value, ascending.
	Rows  []int
	Count int

	// Suggestion is empty when no catalog candidate cleared the bar.
	// SuggestionID is the suggested entry's authoritative catalog id.
	Suggestion   string
	SuggestionID int64
	Confidence   float64
}

// Key is the pattern's correction-state key.
func (p Pattern) Key() string { return patternKey(p.Field, p.InvalidName) }

func patternKey(field, invalidName string) string { return field + ":" + invalidName }

// Detect scans every categorical field backed by a fetched catalog domain and
// groups rows whose non-empty value matches no catalog entry.
//
// Output is sorted by field then invalid value, so identical inputs produce
// the identical pattern list.
func Detect(recs []*record.Record, cat *catalog.Catalog) []Pattern {
	rowsByKey := make(map[string][]int)
	fieldByKey := make(map[string]string)
	valueByKey := make(map[string]string)

	for _, field := range cat.CategoricalFields() {
		domain, ok := cat.DomainForField(field)
		if !ok {
			continue
		}
		for _, rec := range recs {
			v := rec.Get(field)
			if v == "" {
				continue
			}
			if cat.HasName(domain, v) {
				continue
			}
			k := patternKey(field, v)
			rowsByKey[k] = append(rowsByKey[k], rec.Row)
			fieldByKey[k] = field
			valueByKey[k] = v
		}
	}

	out := make([]Pattern, 0, len(rowsByKey))
	for k, rows := range rowsByKey {
		sort.Ints(rows)
		field := fieldByKey[k]
		p := Pattern{
			Field:       field,
			InvalidName: valueByKey[k],
			Rows:        rows,
			Count:       len(rows),
		}
		if domain, ok := cat.DomainForField(field); ok {
			if s, ok := Suggest(p.InvalidName, cat.Names(domain)); ok {
				p.Suggestion = s.Name
				p.SuggestionID, _ = cat.Lookup(domain, s.Name)
				p.Confidence = s.Confidence
			}
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].InvalidName < out[j].InvalidName
	})
	return out
}
