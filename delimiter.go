// delimiter.go: List delimiter handling for string property values
//
// Configuration sources frequently encode lists as delimited strings
// ("red,green,blue"). Whether and how such strings are split is policy,
// not format, so it lives behind a small interface the configuration is
// parameterized with.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import "strings"

// ListDelimiterHandler decides how string values are split into lists and
// how values are escaped when they are converted back to strings.
type ListDelimiterHandler interface {
	// Split splits a string into its list elements. With trim set,
	// surrounding whitespace of each element is removed. A string without
	// delimiters yields a single element.
	Split(s string, trim bool) []interface{}

	// Escape prepares a single value for textual output so that a later
	// Split restores it.
	Escape(value interface{}) interface{}

	// EscapeList renders a list as a single value so that a later Split
	// restores the elements.
	EscapeList(values []interface{}) interface{}
}

// DefaultDelimiterHandler splits on a configurable delimiter character.
// A backslash escapes the delimiter (and a backslash).
type DefaultDelimiterHandler struct {
	delimiter rune
}

// NewDefaultDelimiterHandler creates a handler for the given delimiter.
func NewDefaultDelimiterHandler(delimiter rune) *DefaultDelimiterHandler {
	return &DefaultDelimiterHandler{delimiter: delimiter}
}

// Split implements ListDelimiterHandler.
func (h *DefaultDelimiterHandler) Split(s string, trim bool) []interface{} {
	var out []interface{}
	var cur strings.Builder
	escaped := false

	flush := func() {
		elem := cur.String()
		if trim {
			elem = strings.TrimSpace(elem)
		}
		out = append(out, elem)
		cur.Reset()
	}

	for _, r := range s {
		switch {
		case escaped:
			if r != h.delimiter && r != '\\' {
				cur.WriteRune('\\')
			}
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == h.delimiter:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		cur.WriteRune('\\')
	}
	flush()
	return out
}

// Escape implements ListDelimiterHandler. Only strings need escaping;
// other values pass through.
func (h *DefaultDelimiterHandler) Escape(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	var b strings.Builder
	for _, r := range s {
		if r == h.delimiter || r == '\\' {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeList implements ListDelimiterHandler by escaping each element and
// joining them with the delimiter.
func (h *DefaultDelimiterHandler) EscapeList(values []interface{}) interface{} {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = ToString(h.Escape(v))
	}
	return strings.Join(parts, string(h.delimiter))
}

// DisabledDelimiterHandler performs no splitting at all; strings stay
// whole. This is the default of a fresh Configuration.
type DisabledDelimiterHandler struct{}

// Split implements ListDelimiterHandler by returning the string as its
// only element.
func (DisabledDelimiterHandler) Split(s string, trim bool) []interface{} {
	if trim {
		s = strings.TrimSpace(s)
	}
	return []interface{}{s}
}

// Escape implements ListDelimiterHandler as the identity.
func (DisabledDelimiterHandler) Escape(value interface{}) interface{} {
	return value
}

// EscapeList implements ListDelimiterHandler by handing the list through
// unchanged. Without a delimiter there is no joined representation.
func (DisabledDelimiterHandler) EscapeList(values []interface{}) interface{} {
	return values
}

// splitValue runs a raw property value through the delimiter handler:
// strings are split, slices are flattened recursively, everything else is
// passed through as a single element.
func splitValue(value interface{}, handler ListDelimiterHandler) []interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return handler.Split(v, true)
	case []interface{}:
		var out []interface{}
		for _, elem := range v {
			out = append(out, splitValue(elem, handler)...)
		}
		return out
	case []string:
		var out []interface{}
		for _, elem := range v {
			out = append(out, handler.Split(elem, true)...)
		}
		return out
	default:
		return []interface{}{value}
	}
}
