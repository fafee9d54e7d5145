package prover

import (
	"errors"
	"fmt"

	"github.com/zephis-org/zephis-core/internal/app/mapper"
)

// Sentinel errors for the proving pipeline. Callers branch on these with
// errors.Is; the wrapped cause carries the detail.
var (
	ErrConfiguration = errors.New("prover configuration error")
	ErrAssets        = errors.New("circuit assets unavailable")
	ErrProving       = errors.New("proof generation failed")
	ErrVerification  = errors.New("proof verification failed")
)

// WrapConfiguration attaches the configuration sentinel to a cause.
func WrapConfiguration(err error, msg string) error {
	return fmt.Errorf("%w: %s: %w", ErrConfiguration, msg, err)
}

// WrapAssets attaches the assets sentinel to a cause.
func WrapAssets(err error, msg string) error {
	return fmt.Errorf("%w: %s: %w", ErrAssets, msg, err)
}

// WrapProving attaches the proving sentinel to a cause.
func WrapProving(err error, msg string) error {
	return fmt.Errorf("%w: %s: %w", ErrProving, msg, err)
}

// ValidationError is the violation-list error raised when extracted data or
// a mapped circuit input breaks a rule. It lives in the mapper package; the
// alias keeps errors.As branching local for pipeline callers.
type ValidationError = mapper.ValidationError

// NewValidationError builds a ValidationError, returning nil when there are
// no violations.
func NewValidationError(subject string, violations []string) error {
	return mapper.NewValidationError(subject, violations)
}
