package business

import "fmt"

// ErrorKind is the closed taxonomy every raw provider or network error maps
// into.
type ErrorKind string

const (
	ErrKindValidation          ErrorKind = "validation_error"
	ErrKindEstimation          ErrorKind = "estimation_error"
	ErrKindInsufficientFunds   ErrorKind = "insufficient_funds"
	ErrKindGasTooLow           ErrorKind = "gas_too_low"
	ErrKindNonceConflict       ErrorKind = "nonce_conflict"
	ErrKindReplacementConflict ErrorKind = "replacement_conflict"
	ErrKindNetwork             ErrorKind = "network_error"
	ErrKindUserRejected        ErrorKind = "user_rejected"
	ErrKindUnknown             ErrorKind = "unknown"
)

// ClassifiedError pairs an ErrorKind with its fixed user-facing message. The
// raw cause is retained for diagnostics only and is never shown to end users.
type ClassifiedError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

// Unwrap exposes the raw cause to errors.Is/errors.As chains.
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}
