package pattern

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched (via errors.Is) by every error produced while
// loading or compiling a rule table. A table that fails to build must abort
// startup: a missing or wrong rule silently corrupts everything downstream.
var ErrConfiguration = errors.New("rule table configuration error")

// ValidationError represents a schema-level validation error
// (e.g. unsupported version, no rules, incomplete table).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrConfiguration.
func (e *ValidationError) Is(target error) bool {
	return target == ErrConfiguration
}

// PatternError represents an error specific to an individual rule or form
// (e.g. invalid regex, duplicate kind, missing capture group).
type PatternError struct {
	Index   int    // 0-based index of the rule in the file
	Kind    string // Rule kind (may be empty if the kind field is missing)
	Form    string // Form ID, when the error is about a single form
	Field   string
	Message string
	Cause   error // Underlying error (e.g. regex compile error)
}

func (e *PatternError) Error() string {
	prefix := fmt.Sprintf("rule[%d]", e.Index)
	if e.Kind != "" {
		prefix = fmt.Sprintf("rule %q", e.Kind)
	}
	if e.Form != "" {
		prefix += fmt.Sprintf(" form %q", e.Form)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, e.Field, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *PatternError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrConfiguration.
func (e *PatternError) Is(target error) bool {
	return target == ErrConfiguration
}
