// Package domainerrors provides coded errors for the membership core.
//
// Services attach a Code when translating infrastructure failures or
// rejecting invalid domain input. Callers branch on HasCode instead of
// string-matching error messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for programmatic handling.
type Code string

const (
	// CodeInvalidInput marks input rejected at a trust boundary (bad ID, bad enum value).
	CodeInvalidInput Code = "invalid_input"
	// CodeValidation marks a request that is well-formed but violates domain rules.
	CodeValidation Code = "validation"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a state conflict (duplicate, already-applied transition).
	CodeConflict Code = "conflict"
	// CodeInvariantViolation marks a model invariant breach detected at construction
	// or during a transition check.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal marks an unexpected infrastructure failure.
	CodeInternal Code = "internal"

	// CodeConfigurationMissing marks an absent fee schedule for a requested
	// year/section. Fatal for fee computation; signals a provisioning gap,
	// never defaulted.
	CodeConfigurationMissing Code = "configuration_missing"
	// CodeInvalidFeeCategory marks a role carrying an unrecognized fee category.
	// Indicates upstream data corruption; never recovered.
	CodeInvalidFeeCategory Code = "invalid_fee_category"
	// CodeTransitionConflict marks a membership transition that lost the
	// per-household serialization race. Retryable by the caller.
	CodeTransitionConflict Code = "transition_conflict"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
// Returns nil if err is nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err, or any error in its chain, carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the outermost code in the chain, or empty string.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
