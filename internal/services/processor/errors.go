package processor

import (
	"errors"
	"strings"
)

// FieldViolation describes one schema rule an event broke.
type FieldViolation struct {
	// Field is the dotted path of the offending field, e.g. "payload.userId"
	Field string
	// Rule is the human-readable rule, e.g. "is required"
	Rule string
}

func (v FieldViolation) String() string {
	return v.Field + " " + v.Rule
}

// ValidationError reports that an event failed envelope or payload schema
// checks. It is raised before any database access; the event is skipped,
// never retried.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "invalid event: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
