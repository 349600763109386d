// Package catalog holds the authoritative id/name lists for categorical
// domains (departments, employee groups, employee types, supervisors).
//
// Catalogs are fetched once per session and assumed stable for its duration;
// the Catalog type is read-only after construction.
package catalog

import (
	"sort"
	"strings"
)

// Entry is one authoritative value in a categorical domain.
type Entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Well-known domain keys. The remote service may expose more; any string key
// works, these are the ones the default field bindings use.
const (
	DomainDepartments    = "departments"
	DomainEmployeeGroups = "employeeGroups"
	DomainEmployeeTypes  = "employeeTypes"
	DomainSupervisors    = "supervisors"
)

// defaultFieldDomains binds schema field names to the catalog domain that
// validates them. Bind / session config can extend this for custom fields.
var defaultFieldDomains = map[string]string{
	"departments":    DomainDepartments,
	"employeeGroups": DomainEmployeeGroups,
	"employeeTypes":  DomainEmployeeTypes,
	"supervisor":     DomainSupervisors,
	"supervisorId":   DomainSupervisors,
}

// Catalog is the session's set of reference domains.
type Catalog struct {
	domains      map[string][]Entry
	names        map[string]map[string]int64 // domain -> exact name -> id
	fieldDomains map[string]string
}

// New builds a Catalog from per-domain entry lists. Entry order within a
// domain is preserved as fetched.
func New(domains map[string][]Entry) *Catalog {
	c := &Catalog{
		domains:      make(map[string][]Entry, len(domains)),
		names:        make(map[string]map[string]int64, len(domains)),
		fieldDomains: make(map[string]string, len(defaultFieldDomains)),
	}
	for k, v := range defaultFieldDomains {
		c.fieldDomains[k] = v
	}
	for dom, entries := range domains {
		list := make([]Entry, len(entries))
		copy(list, entries)
		c.domains[dom] = list

		byName := make(map[string]int64, len(list))
		for _, e := range list {
			byName[e.Name] = e.ID
		}
		c.names[dom] = byName
	}
	return c
}

// Bind associates a schema field name with a domain, replacing any existing
// binding. Binding to "" removes the field from categorical validation.
func (c *Catalog) Bind(field, domain string) {
	if domain == "" {
		delete(c.fieldDomains, field)
		return
	}
	c.fieldDomains[field] = domain
}

// DomainForField returns the domain validating field, if any.
func (c *Catalog) DomainForField(field string) (string, bool) {
	d, ok := c.fieldDomains[field]
	if !ok {
		return "", false
	}
	if _, loaded := c.domains[d]; !loaded {
		// A binding without fetched data validates nothing.
		return "", false
	}
	return d, true
}

// CategoricalFields returns the bound field names whose domains were actually
// fetched, sorted for deterministic iteration.
func (c *Catalog) CategoricalFields() []string {
	out := make([]string, 0, len(c.fieldDomains))
	for f, d := range c.fieldDomains {
		if _, ok := c.domains[d]; ok {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// Entries returns the domain's entries in fetched order.
func (c *Catalog) Entries(domain string) []Entry {
	return c.domains[domain]
}

// Names returns the domain's entry names in fetched order.
func (c *Catalog) Names(domain string) []string {
	entries := c.domains[domain]
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

// HasName reports whether name exactly matches a domain entry.
// Matching is case-sensitive after trimming edge whitespace: the remote
// service matches names exactly, and edge whitespace is a spreadsheet
// artifact rather than user intent.
func (c *Catalog) HasName(domain, name string) bool {
	_, ok := c.names[domain][strings.TrimSpace(name)]
	return ok
}

// Lookup resolves a domain entry name to its id.
func (c *Catalog) Lookup(domain, name string) (int64, bool) {
	id, ok := c.names[domain][strings.TrimSpace(name)]
	return id, ok
}
