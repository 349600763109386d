// Package dateresolve detects date-shaped values, finds the ones whose
// component ordering is genuinely ambiguous, and rewrites every date value to
// canonical YYYY-MM-DD form once an ordering is chosen.
//
// Ambiguity is a per-value property: "15/03/2024" has only one reading (15
// cannot be a month) and is parsed by that forced interpretation regardless
// of the session's chosen ordering. The chosen ordering decides only the
// values with two or more plausible readings.
package dateresolve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"staffimport/internal/schema"
)

// Order is a date component ordering chosen once per session.
type Order string

const (
	OrderDMY Order = "dmy"
	OrderMDY Order = "mdy"
	OrderYMD Order = "ymd"
	OrderYDM Order = "ydm"
)

// ParseOrder parses a config/user ordering string.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case OrderDMY:
		return OrderDMY, nil
	case OrderMDY:
		return OrderMDY, nil
	case OrderYMD:
		return OrderYMD, nil
	case OrderYDM:
		return OrderYDM, nil
	}
	return "", fmt.Errorf("unknown date order %q", s)
}

const canonicalLayout = "2006-01-02"

var (
	sepThenYearRe  = regexp.MustCompile(`^(\d{1,2})([/.\-])(\d{1,2})[/.\-](\d{4})$`)
	yearThenSepRe  = regexp.MustCompile(`^(\d{4})([/.\-])(\d{1,2})[/.\-](\d{1,2})$`)
	eightDigitsRe  = regexp.MustCompile(`^\d{8}$`)
	monthNameRe    = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)
	monthLayouts   = []string{"2 Jan 2006", "2 January 2006", "Jan 2, 2006", "January 2, 2006", "2-Jan-2006", "Jan 2 2006"}
	plausibleYears = [2]int{1900, 2100}
)

// dateRoleNames are field names treated as date-valued even when the schema
// descriptor carries no format hint.
var dateRoleNames = map[string]bool{
	"hiredFrom": true,
	"birthDate": true,
}

// IsDateRole reports whether a field holds dates. Only values from such
// fields are ever scanned; a free-text column full of digit groups is not.
func IsDateRole(fd schema.FieldDefinition) bool {
	if fd.Format == "date" {
		return true
	}
	if dateRoleNames[fd.Name] {
		return true
	}
	return strings.HasSuffix(fd.Name, ".date")
}

// candidate is one plausible reading of a raw value.
type candidate struct {
	order Order
	t     time.Time
}

// CouldBeDate reports whether a value matches a known date shape. It does not
// check calendar plausibility; that is the job of candidate enumeration.
func CouldBeDate(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	return sepThenYearRe.MatchString(v) ||
		yearThenSepRe.MatchString(v) ||
		eightDigitsRe.MatchString(v) ||
		monthNameRe.MatchString(v)
}

// HasReading reports whether v has at least one calendar-plausible reading.
// A value can match a date shape yet have none ("99999999" is eight digits
// but no split of it is a real date); such a value can never be normalized.
func HasReading(v string) bool {
	return len(candidates(v)) > 0
}

// FindAmbiguous returns, in input order, the values with at least two
// plausible readings that land on different calendar dates. Duplicates are
// reported once.
func FindAmbiguous(values []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		key := strings.TrimSpace(v)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if len(distinctDates(candidates(key))) >= 2 {
			out = append(out, v)
		}
	}
	return out
}

// Resolve parses one value into canonical YYYY-MM-DD form.
//
// Unambiguous values use their forced interpretation; ambiguous values use
// the chosen ordering when it is among the plausible readings, otherwise the
// built-in preference order (DMY, YMD, MDY, YDM). Values that are not
// date-shaped at all come back unchanged with ok=false so the caller can
// leave them for per-cell validation.
func Resolve(order Order, value string) (iso string, ok bool) {
	v := strings.TrimSpace(value)
	cands := candidates(v)
	if len(cands) == 0 {
		return value, false
	}

	if len(distinctDates(cands)) == 1 {
		return cands[0].t.Format(canonicalLayout), true
	}

	for _, c := range cands {
		if c.order == order {
			return c.t.Format(canonicalLayout), true
		}
	}
	// The exact ordering may not be a reading of this shape (choosing "dmy"
	// for an 8-digit YYYYDDMM value); fall back to day-before-month intent.
	for _, c := range cands {
		if dayFirst(c.order) == dayFirst(order) {
			return c.t.Format(canonicalLayout), true
		}
	}
	for _, pref := range []Order{OrderDMY, OrderYMD, OrderMDY, OrderYDM} {
		for _, c := range cands {
			if c.order == pref {
				return c.t.Format(canonicalLayout), true
			}
		}
	}
	return cands[0].t.Format(canonicalLayout), true
}

// dayFirst reports whether the ordering reads the day before the month.
func dayFirst(o Order) bool { return o == OrderDMY || o == OrderYDM }

// ResolveAll maps Resolve over a value slice, keeping non-date values as-is.
func ResolveAll(order Order, values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i], _ = Resolve(order, v)
	}
	return out
}

// candidates enumerates every calendar-plausible reading of v.
func candidates(v string) []candidate {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}

	// Year-first separated forms. Dash-separated values are ISO: forced
	// year-month-day, never ambiguous. Slash and dot forms can be YDM.
	if m := yearThenSepRe.FindStringSubmatch(v); m != nil {
		y := atoi(m[1])
		a, b := atoi(m[3]), atoi(m[4])
		var out []candidate
		if t, ok := makeDate(y, a, b); ok {
			out = append(out, candidate{order: OrderYMD, t: t})
		}
		if m[2] != "-" {
			if t, ok := makeDate(y, b, a); ok {
				out = appendDistinct(out, candidate{order: OrderYDM, t: t})
			}
		}
		return out
	}

	// Day/month first separated forms.
	if m := sepThenYearRe.FindStringSubmatch(v); m != nil {
		a, b := atoi(m[1]), atoi(m[3])
		y := atoi(m[4])
		var out []candidate
		if t, ok := makeDate(y, b, a); ok {
			out = append(out, candidate{order: OrderDMY, t: t})
		}
		if t, ok := makeDate(y, a, b); ok {
			out = appendDistinct(out, candidate{order: OrderMDY, t: t})
		}
		return out
	}

	// 8 contiguous digits: up to four readings.
	if eightDigitsRe.MatchString(v) {
		var out []candidate
		if t, ok := makeDate(atoi(v[0:4]), atoi(v[4:6]), atoi(v[6:8])); ok {
			out = append(out, candidate{order: OrderYMD, t: t})
		}
		if t, ok := makeDate(atoi(v[0:4]), atoi(v[6:8]), atoi(v[4:6])); ok {
			out = appendDistinct(out, candidate{order: OrderYDM, t: t})
		}
		if t, ok := makeDate(atoi(v[4:8]), atoi(v[2:4]), atoi(v[0:2])); ok {
			out = appendDistinct(out, candidate{order: OrderDMY, t: t})
		}
		if t, ok := makeDate(atoi(v[4:8]), atoi(v[0:2]), atoi(v[2:4])); ok {
			out = appendDistinct(out, candidate{order: OrderMDY, t: t})
		}
		return out
	}

	// Month names are never ambiguous: the named month fixes the roles.
	if monthNameRe.MatchString(v) {
		for _, layout := range monthLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return []candidate{{order: OrderDMY, t: t}}
			}
		}
	}

	return nil
}

// appendDistinct drops a candidate whose calendar date duplicates an existing
// one, so "03/03/2024" yields a single reading.
func appendDistinct(out []candidate, c candidate) []candidate {
	for _, e := range out {
		if e.t.Equal(c.t) {
			return out
		}
	}
	return append(out, c)
}

func distinctDates(cands []candidate) []time.Time {
	var out []time.Time
	for _, c := range cands {
		dup := false
		for _, t := range out {
			if t.Equal(c.t) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c.t)
		}
	}
	return out
}

// makeDate validates calendar plausibility: month 1..12, day within the
// month, year within the accepted range.
func makeDate(y, m, d int) (time.Time, bool) {
	if y < plausibleYears[0] || y > plausibleYears[1] {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	if d > daysIn(y, m) {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
