package reconcile

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("reconcile: validation failed")

// ValidationError reports a diff or decision that cannot be turned into a
// plan. Column is empty when the problem is not tied to one column.
type ValidationError struct {
	Column string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("reconcile: %s", e.Reason)
	}
	return fmt.Sprintf("reconcile: column %q: %s", e.Column, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(column, format string, args ...any) error {
	return &ValidationError{Column: column, Reason: fmt.Sprintf(format, args...)}
}
