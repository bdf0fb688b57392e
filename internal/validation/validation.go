// Package validation holds the field-keyed error collector and range checks
// shared by rule values and attribute values.
package validation

import (
	"fmt"
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
)

// FieldErrors collects validation failures keyed by field name.
type FieldErrors map[string]string

// Add records msg for field. The first message per field wins.
func (f FieldErrors) Add(field, msg string) {
	if _, exists := f[field]; exists {
		return
	}
	f[field] = msg
}

// Addf is Add with formatting.
func (f FieldErrors) Addf(field, format string, args ...any) {
	f.Add(field, fmt.Sprintf(format, args...))
}

// Merge copies every entry of other under prefix.
func (f FieldErrors) Merge(prefix string, other FieldErrors) {
	for field, msg := range other {
		if prefix != "" {
			field = prefix + "." + field
		}
		f.Add(field, msg)
	}
}

// Err returns nil when empty, otherwise a CodeValidation error whose details
// map each field to its message.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	details := make(map[string]any, len(f))
	fields := make([]string, 0, len(f))
	for field, msg := range f {
		details[field] = msg
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid "+strings.Join(fields, ", ")).WithDetails(details)
}

// IntRange reports whether v is within [min, max].
func IntRange(v, min, max int) bool {
	return v >= min && v <= max
}

// CheckIntRange records an error on field when v is outside [min, max].
func (f FieldErrors) CheckIntRange(field string, v, min, max int) {
	if !IntRange(v, min, max) {
		f.Addf(field, "must be between %d and %d", min, max)
	}
}

// Required records an error on field when value is blank.
func (f FieldErrors) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		f.Add(field, "is required")
	}
}
