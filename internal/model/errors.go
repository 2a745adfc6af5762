package model

import "fmt"

// ValidationError reports a schedule that violates the period or
// ordering invariants.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid schedule: " + e.Reason
	}
	return "invalid schedule: " + e.Field + ": " + e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
