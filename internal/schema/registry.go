// Package schema ingests the personnel service's field-definition document
// and answers typed queries about it.
//
// The document is fetched per session and treated as immutable afterwards:
// the registry never refreshes itself. Complex object-valued fields are
// flattened into synthetic "parent.subfield" leaf definitions at load time so
// downstream packages (mapper, validate, record) never special-case nesting.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ErrSchemaUnavailable wraps any failure to obtain or parse the schema
// document. It is blocking but recoverable: callers retry the fetch, they do
// not abandon the process.
var ErrSchemaUnavailable = errors.New("schema unavailable")

// Option is one allowed value of an enumerated field.
type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FieldDefinition is one named slot in the remote schema.
//
// For complex fields the parent definition keeps its SubFields list and each
// sub-field is also registered as an addressable leaf named "parent.sub".
type FieldDefinition struct {
	Name        string
	DisplayName string

	IsRequired bool
	IsReadOnly bool
	IsUnique   bool
	IsCustom   bool

	// EnumOptions is the ordered allowed-value list; empty means the field is
	// not enumerated.
	EnumOptions []Option

	// SubFields lists the flattened leaf names of a complex field, in
	// document-declared order where the document preserves one.
	SubFields []string

	// Format carries the wire-format hint from the descriptor ("date",
	// "email", ...). Empty when the descriptor has none.
	Format string
}

// Registry holds the parsed field definitions for one session.
type Registry struct {
	byName map[string]FieldDefinition
	names  []string // deterministic iteration order, see orderedNames
}

// document mirrors the service's schema JSON.
type document struct {
	Properties  map[string]descriptor `json:"properties"`
	Required    []string              `json:"required"`
	ReadOnly    []string              `json:"readOnly"`
	Definitions map[string]descriptor `json:"definitions"`
}

type descriptor struct {
	Type       string                `json:"type"`
	Title      string                `json:"title"`
	Format     string                `json:"format"`
	Unique     bool                  `json:"unique"`
	Values     []Option              `json:"values"`
	Enum       []string              `json:"enum"`
	Ref        string                `json:"$ref"`
	Properties map[string]descriptor `json:"properties"`
	Required   []string              `json:"required"`
}

// Load parses a schema document into a Registry.
//
// Errors:
//   - Any decode or structural failure is wrapped in ErrSchemaUnavailable.
func Load(doc []byte) (*Registry, error) {
	var d document
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("%w: parse schema document: %v", ErrSchemaUnavailable, err)
	}
	if len(d.Properties) == 0 {
		return nil, fmt.Errorf("%w: schema document has no properties", ErrSchemaUnavailable)
	}

	required := toSet(d.Required)
	readOnly := toSet(d.ReadOnly)

	r := &Registry{byName: make(map[string]FieldDefinition, len(d.Properties))}

	for name, desc := range d.Properties {
		desc, err := deref(desc, d.Definitions)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrSchemaUnavailable, name, err)
		}

		fd := FieldDefinition{
			Name:        name,
			DisplayName: displayName(name, desc.Title),
			IsRequired:  required[name],
			IsReadOnly:  readOnly[name],
			IsUnique:    desc.Unique,
			IsCustom:    strings.HasPrefix(name, "custom_"),
			EnumOptions: enumOptions(desc),
			Format:      desc.Format,
		}

		if desc.Type == "object" && len(desc.Properties) > 0 {
			subRequired := toSet(desc.Required)
			for _, sub := range orderedKeys(desc.Properties) {
				subDesc, err := deref(desc.Properties[sub], d.Definitions)
				if err != nil {
					return nil, fmt.Errorf("%w: field %s.%s: %v", ErrSchemaUnavailable, name, sub, err)
				}
				leaf := name + "." + sub
				fd.SubFields = append(fd.SubFields, leaf)
				r.byName[leaf] = FieldDefinition{
					Name:        leaf,
					DisplayName: fd.DisplayName + " " + displayName(sub, subDesc.Title),
					// A sub-field is required only when both the parent and the
					// leaf are marked required.
					IsRequired:  required[name] && subRequired[sub],
					IsReadOnly:  readOnly[name],
					IsUnique:    subDesc.Unique,
					IsCustom:    fd.IsCustom,
					EnumOptions: enumOptions(subDesc),
					Format:      subDesc.Format,
				}
			}
		}

		r.byName[name] = fd
	}

	r.names = orderedNames(r.byName)
	return r, nil
}

// Fields returns every known definition, parents included, in the registry's
// deterministic order: required fields first, then alphabetically.
func (r *Registry) Fields() []FieldDefinition {
	out := make([]FieldDefinition, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.byName[n])
	}
	return out
}

// Leaves returns only mappable definitions: every field except complex
// parents (a parent with sub-fields is addressed through its leaves).
func (r *Registry) Leaves() []FieldDefinition {
	out := make([]FieldDefinition, 0, len(r.names))
	for _, n := range r.names {
		if fd := r.byName[n]; len(fd.SubFields) == 0 {
			out = append(out, fd)
		}
	}
	return out
}

// Field returns the definition for name.
func (r *Registry) Field(name string) (FieldDefinition, bool) {
	fd, ok := r.byName[name]
	return fd, ok
}

// Known reports whether name is an addressable field (leaf or parent).
func (r *Registry) Known(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *Registry) IsRequired(name string) bool { return r.byName[name].IsRequired }
func (r *Registry) IsReadOnly(name string) bool { return r.byName[name].IsReadOnly }
func (r *Registry) IsUnique(name string) bool   { return r.byName[name].IsUnique }
func (r *Registry) IsCustom(name string) bool   { return r.byName[name].IsCustom }

// EnumOptions returns the allowed values for name, or nil when the field is
// unknown or not enumerated.
func (r *Registry) EnumOptions(name string) []Option {
	return r.byName[name].EnumOptions
}

func deref(d descriptor, defs map[string]descriptor) (descriptor, error) {
	if d.Ref == "" {
		return d, nil
	}
	const prefix = "#/definitions/"
	if !strings.HasPrefix(d.Ref, prefix) {
		return d, fmt.Errorf("unsupported $ref %q", d.Ref)
	}
	name := strings.TrimPrefix(d.Ref, prefix)
	resolved, ok := defs[name]
	if !ok {
		return d, fmt.Errorf("dangling $ref %q", d.Ref)
	}
	if resolved.Ref != "" {
		return d, fmt.Errorf("nested $ref %q not supported", d.Ref)
	}
	return resolved, nil
}

func enumOptions(d descriptor) []Option {
	if len(d.Values) > 0 {
		out := make([]Option, len(d.Values))
		copy(out, d.Values)
		return out
	}
	if len(d.Enum) > 0 {
		out := make([]Option, len(d.Enum))
		for i, v := range d.Enum {
			out[i] = Option{ID: int64(i + 1), Name: v}
		}
		return out
	}
	return nil
}

// displayName prefers the document title and otherwise splits a camelCase or
// snake_case name into spaced words ("firstName" -> "First Name").
func displayName(name, title string) string {
	if title != "" {
		return title
	}

	var b strings.Builder
	prevLower := false
	for _, r := range name {
		switch {
		case r == '_' || r == '.':
			b.WriteByte(' ')
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			b.WriteByte(' ')
		}
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		b.WriteRune(r)
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func orderedKeys(m map[string]descriptor) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// orderedNames fixes the registry iteration order: required fields first,
// each group alphabetical. Auto-mapping consumes fields greedily in this
// order, so it must not depend on Go map iteration.
func orderedNames(m map[string]FieldDefinition) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		fi, fj := m[out[i]], m[out[j]]
		if fi.IsRequired != fj.IsRequired {
			return fi.IsRequired
		}
		return out[i] < out[j]
	})
	return out
}
