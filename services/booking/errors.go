package booking

import (
	"errors"
	"fmt"
)

// Error codes for the booking/payment/refund core. Handlers map these to
// HTTP statuses; callers branch on them via HasCode.
const (
	CodeValidation        = "validation_error"   // malformed input, no retry
	CodeSlotConflict      = "slot_conflict"      // lost a race for a slot, re-query availability
	CodeInvalidSignature  = "invalid_signature"  // payload authenticity failed
	CodeInconsistentState = "inconsistent_state" // captured but unbooked, auto-remediated
	CodeInvalidTransition = "invalid_transition" // attempted move out of a terminal state
)

// Error is a typed domain error with a machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewValidationError(format string, args ...interface{}) error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewSlotConflict(format string, args ...interface{}) error {
	return &Error{Code: CodeSlotConflict, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidSignature(message string) error {
	return &Error{Code: CodeInvalidSignature, Message: message}
}

func NewInconsistentState(format string, args ...interface{}) error {
	return &Error{Code: CodeInconsistentState, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidTransition(format string, args ...interface{}) error {
	return &Error{Code: CodeInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code string) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}
