package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure into the client's stable taxonomy. Handlers
// surface a generic notice keyed by the code; the full message goes to the
// diagnostic log only.
type ErrorCode string

const (
	ErrConfig              ErrorCode = "CONFIG"               // missing address/credential, detected before any I/O
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE" // no wallet provider reachable
	ErrAuthRejected        ErrorCode = "AUTH_REJECTED"        // user declined identity access
	ErrLedgerRead          ErrorCode = "LEDGER_READ"          // any failed read call
	ErrLedgerWrite         ErrorCode = "LEDGER_WRITE"         // submission or finality failure, including reverts
	ErrUpload              ErrorCode = "UPLOAD"               // pinning failure or malformed pinning response
	ErrValidation          ErrorCode = "VALIDATION"           // empty required input, checked before submission
)

// CodedError is a stable error with a machine-readable code and a human
// message suitable for the diagnostic log.
type CodedError struct {
	ErrCode ErrorCode `json:"code"`
	Message string    `json:"message"`
	Wrapped error     `json:"-"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.ErrCode, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.ErrCode, e.Message)
}

func (e *CodedError) Unwrap() error {
	return e.Wrapped
}

// NewError builds a CodedError with no underlying cause.
func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{ErrCode: code, Message: message}
}

// WrapError builds a CodedError around an underlying cause.
func WrapError(code ErrorCode, message string, err error) *CodedError {
	return &CodedError{ErrCode: code, Message: message, Wrapped: err}
}

// Code extracts the ErrorCode from err's wrap chain. Uncoded errors yield
// the empty code.
func Code(err error) ErrorCode {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.ErrCode
	}
	return ""
}

// Notice maps an error to the generic user-facing message for its code. No
// distinction is drawn between rejection, network failure and ledger revert.
func Notice(err error) string {
	switch Code(err) {
	case ErrConfig:
		return "The application is not fully configured."
	case ErrProviderUnavailable:
		return "No wallet found. Install or connect a wallet to continue."
	case ErrAuthRejected:
		return "Wallet authorization was declined."
	case ErrLedgerRead:
		return "Failed to load data from the network."
	case ErrLedgerWrite:
		return "The transaction could not be completed."
	case ErrUpload:
		return "Image upload failed."
	case ErrValidation:
		return "Please fill in the required fields."
	default:
		return "Something went wrong. Please try again."
	}
}
