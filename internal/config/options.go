package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Options is a loosely-typed option bag decoded straight from JSON.
//
// Parsers and sinks read their knobs through the typed accessors below so a
// missing or mistyped option degrades to the caller's default instead of
// failing the whole session load.
type Options map[string]any

// Any returns the raw value for key, or nil when absent.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// Bool returns the option as a bool.
//
// Accepted forms: JSON booleans, and the strings "true"/"false"/"1"/"0"
// (case-insensitive). Anything else yields def.
func (o Options) Bool(key string, def bool) bool {
	v := o.Any(key)
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}

// Int returns the option as an int. JSON numbers arrive as float64; numeric
// strings are parsed. Anything else yields def.
func (o Options) Int(key string, def int) int {
	switch t := o.Any(key).(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// String returns the option as a string, or def when absent or not a string.
func (o Options) String(key string, def string) string {
	if s, ok := o.Any(key).(string); ok {
		return s
	}
	return def
}

// Rune returns the first rune of a one-character string option.
// Longer strings, empty strings and non-strings yield def.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o.Any(key).(string)
	if !ok {
		return def
	}
	rs := []rune(s)
	if len(rs) != 1 {
		return def
	}
	return rs[0]
}

// StringMap returns the option as a map[string]string. JSON objects decode as
// map[string]any, so values are stringified with fmt.Sprint; non-object
// options yield nil.
func (o Options) StringMap(key string) map[string]string {
	m, ok := o.Any(key).(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
