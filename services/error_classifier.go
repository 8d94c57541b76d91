package services

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/winsave/winsave-api/types/business"
)

// User-facing message templates, one per kind. Raw provider text never leaks
// into these; it is kept on the classified error's cause for diagnostics.
const (
	msgValidation          = "The transaction request is invalid."
	msgEstimation          = "Gas estimation was unavailable; a safe default was used."
	msgInsufficientFunds   = "Insufficient funds to cover this transaction and its gas fees."
	msgGasTooLow           = "The network rejected the transaction because the gas price was too low."
	msgNonceConflict       = "Another transaction from this wallet is still settling. Wait for it to finish and try again."
	msgReplacementConflict = "A replacement transaction was rejected because it did not outbid the pending one."
	msgNetwork             = "A network error interrupted the request. Check your connection and try again."
	msgUserRejected        = "The request was cancelled in the wallet."
	msgUnknown             = "Something went wrong while submitting the transaction. Please try again."
)

var kindMessages = map[business.ErrorKind]string{
	business.ErrKindValidation:          msgValidation,
	business.ErrKindEstimation:          msgEstimation,
	business.ErrKindInsufficientFunds:   msgInsufficientFunds,
	business.ErrKindGasTooLow:           msgGasTooLow,
	business.ErrKindNonceConflict:       msgNonceConflict,
	business.ErrKindReplacementConflict: msgReplacementConflict,
	business.ErrKindNetwork:             msgNetwork,
	business.ErrKindUserRejected:        msgUserRejected,
	business.ErrKindUnknown:             msgUnknown,
}

// ErrorClassifier maps raw provider and network errors into the closed
// ErrorKind taxonomy. Matching is deterministic: rules run in a fixed
// priority order over the lower-cased error text, first match wins.
type ErrorClassifier struct{}

// NewErrorClassifier creates a classifier.
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// Classify maps err to its kind and fixed user message. Already-classified
// errors pass through unchanged.
func (c *ErrorClassifier) Classify(err error) *business.ClassifiedError {
	var classified *business.ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	kind := classifyKind(err)
	return NewClassifiedError(kind, err)
}

// NewClassifiedError builds a classified error of a known kind, attaching the
// fixed message template for that kind.
func NewClassifiedError(kind business.ErrorKind, cause error) *business.ClassifiedError {
	message, ok := kindMessages[kind]
	if !ok {
		kind = business.ErrKindUnknown
		message = msgUnknown
	}
	return &business.ClassifiedError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func classifyKind(err error) business.ErrorKind {
	text := strings.ToLower(err.Error())

	switch {
	case strings.Contains(text, "insufficient funds"):
		return business.ErrKindInsufficientFunds
	case strings.Contains(text, "gas") &&
		(strings.Contains(text, "too low") || strings.Contains(text, "underpriced")):
		return business.ErrKindGasTooLow
	case strings.Contains(text, "nonce") && strings.Contains(text, "low"):
		return business.ErrKindNonceConflict
	case strings.Contains(text, "replacement") && strings.Contains(text, "underpriced"):
		return business.ErrKindReplacementConflict
	case strings.Contains(text, "network") || isConnectivityError(err):
		return business.ErrKindNetwork
	case strings.Contains(text, "reject") ||
		strings.Contains(text, "denied") ||
		strings.Contains(text, "cancel"):
		return business.ErrKindUserRejected
	default:
		return business.ErrKindUnknown
	}
}

// isConnectivityError catches typed timeout and connection failures that do
// not mention "network" in their text.
func isConnectivityError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "connection refused") ||
		strings.Contains(text, "timeout") ||
		strings.Contains(text, "timed out")
}
