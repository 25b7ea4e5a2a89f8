package therapy

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrSlotOccupied         = errors.New("dose slot already recorded")
	ErrDoseNotFound         = errors.New("dose not found")
)

// ValidationError reports a missing or malformed input field. It is always
// returned before any state is touched, so callers can re-prompt for Field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func notActive(action string, s Status) error {
	return fmt.Errorf("%w: cannot %s a %s episode", ErrInvalidTransition, action, s.Name())
}
