package mapper

import (
	"fmt"
	"strings"
)

// ValidationError reports every rule an input violated, so one round trip
// surfaces the full list.
type ValidationError struct {
	Subject    string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Subject, strings.Join(e.Violations, "; "))
}

// NewValidationError builds a ValidationError, returning nil when there are
// no violations.
func NewValidationError(subject string, violations []string) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Subject: subject, Violations: violations}
}
