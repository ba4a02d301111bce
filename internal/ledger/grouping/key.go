// Package grouping builds ordered, optionally nested groups from a flat slice
// in a single pass.
package grouping

import (
	"strconv"
	"strings"
	"time"
)

// NotApplicable labels the group collecting items with no key value.
const NotApplicable = "Not Applicable"

type partKind byte

const (
	kindNull   partKind = 'n'
	kindString partKind = 's'
	kindInt    partKind = 'i'
	kindDate   partKind = 'd'
)

// Part is one scalar component of a composite key.
type Part struct {
	kind  partKind
	value string
}

// String builds a string part.
func String(s string) Part { return Part{kind: kindString, value: s} }

// Int builds an integer part.
func Int(i int64) Part { return Part{kind: kindInt, value: strconv.FormatInt(i, 10)} }

// Date builds a part from the calendar date of t.
func Date(t time.Time) Part { return Part{kind: kindDate, value: t.Format(time.DateOnly)} }

// Month builds a part from the year and month of t.
func Month(t time.Time) Part { return Part{kind: kindDate, value: t.Format("2006-01")} }

// Null builds the sentinel part shared by every missing value.
func Null() Part { return Part{kind: kindNull} }

// OptionalString returns Null for nil or blank values.
func OptionalString(s *string) Part {
	if s == nil || strings.TrimSpace(*s) == "" {
		return Null()
	}
	return String(*s)
}

// IsNull reports whether the part is the sentinel.
func (p Part) IsNull() bool { return p.kind == kindNull }

// Value returns the scalar as text.
func (p Part) Value() string { return p.value }

// Label is the human readable value.
func (p Part) Label() string {
	if p.IsNull() {
		return NotApplicable
	}
	return p.value
}

// Key is an ordered tuple of parts compared field by field.
type Key []Part

// K is shorthand for building a key.
func K(parts ...Part) Key { return Key(parts) }

// ID encodes the key so that two keys share an ID only when every part has the
// same kind and value.
func (k Key) ID() string {
	var b strings.Builder
	for _, p := range k {
		b.WriteByte(byte(p.kind))
		b.WriteString(strconv.Itoa(len(p.value)))
		b.WriteByte(':')
		b.WriteString(p.value)
	}
	return b.String()
}

// Label joins the part labels for display.
func (k Key) Label() string {
	labels := make([]string, len(k))
	for i, p := range k {
		labels[i] = p.Label()
	}
	return strings.Join(labels, " / ")
}

// IsNull reports whether every part is the sentinel.
func (k Key) IsNull() bool {
	for _, p := range k {
		if !p.IsNull() {
			return false
		}
	}
	return len(k) > 0
}
