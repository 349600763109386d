// Package record builds and holds the in-memory records an import session
// operates on.
//
// A Record is a field-name-keyed map of raw string values for one spreadsheet
// row. The legal key set is exactly the registry's known field names
// (flattened sub-fields included); Build enforces that at construction so
// later stages never meet a key the schema cannot place.
package record

import (
	"fmt"
	"sort"
	"strings"

	"staffimport/internal/mapper"
	"staffimport/internal/schema"
)

// Record is one row's worth of mapped values.
type Record struct {
	// Row is the zero-based data row index in the source spreadsheet
	// (header row excluded).
	Row    int
	Values map[string]string
}

// Get returns the raw value for field; missing fields read as "".
func (r *Record) Get(field string) string {
	return r.Values[field]
}

// Set writes a raw value. The caller is responsible for key legality; the
// engine only writes keys that came through Build or the registry.
func (r *Record) Set(field, value string) {
	r.Values[field] = value
}

// Fields returns the record's populated field names, sorted.
func (r *Record) Fields() []string {
	out := make([]string, 0, len(r.Values))
	for f := range r.Values {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Clone deep-copies the record.
func (r *Record) Clone() *Record {
	values := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return &Record{Row: r.Row, Values: values}
}

// Build applies a mapping set plus user constants to raw rows.
//
// Every mapped column contributes its cell value (edge whitespace trimmed);
// constants apply uniformly to all rows but never overwrite a mapped column's
// value. Cells beyond a short row read as empty. Bindings come from the set
// by column position, so a duplicate header name cannot shadow another
// column's data.
//
// Errors:
//   - A constant keyed by a name the registry does not know fails the build;
//     this is the construction-time key check that keeps record shapes honest.
func Build(
	rows [][]string,
	set *mapper.Set,
	constants map[string]string,
	reg *schema.Registry,
) ([]*Record, error) {
	for field := range constants {
		if !reg.Known(field) {
			return nil, fmt.Errorf("constant for unknown field %q", field)
		}
	}

	// Column index -> field, resolved once.
	type binding struct {
		col   int
		field string
	}
	var bindings []binding
	for i, m := range set.Mappings() {
		if m.Field != "" {
			bindings = append(bindings, binding{col: i, field: m.Field})
		}
	}

	out := make([]*Record, 0, len(rows))
	for i, row := range rows {
		rec := &Record{Row: i, Values: make(map[string]string, len(bindings)+len(constants))}
		for _, b := range bindings {
			if b.col < len(row) {
				rec.Values[b.field] = strings.TrimSpace(row[b.col])
			} else {
				rec.Values[b.field] = ""
			}
		}
		for field, v := range constants {
			if _, mapped := rec.Values[field]; !mapped {
				rec.Values[field] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// CloneAll deep-copies a record slice. The workflow snapshots records with it
// before entering date disambiguation, so cancelling restores the batch.
func CloneAll(recs []*Record) []*Record {
	out := make([]*Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}
