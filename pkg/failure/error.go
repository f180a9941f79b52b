package failure

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Error is the structured failure carried through the engine. Attempt and
// MaxAttempts are populated by the retry runner as it progresses.
type Error struct {
	Reason      Reason
	Message     string
	Details     map[string]interface{}
	Attempt     int
	MaxAttempts int
	Cause       error
}

func New(reason Reason, message string) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

func Wrap(err error, reason Reason) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Reason:  reason,
		Message: err.Error(),
		Details: make(map[string]interface{}),
		Cause:   err,
	}
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Reason, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable is false for VALIDATION and AUTHENTICATION regardless of the
// attempts remaining.
func (e *Error) Retryable() bool {
	return e.Reason.Retryable()
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	if err.Details == nil {
		err.Details = make(map[string]interface{})
	}
	err.Details[key] = value
	return &err
}

// ReasonOf extracts the Reason from a classified error, or UNKNOWN.
func ReasonOf(err error) Reason {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return Unknown
}

// IsRetryable reports whether err permits another attempt. Unclassified
// errors default to retryable.
func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return true
}

// RecoverPanic converts a recovered panic value into a RUNTIME failure
// carrying the stack trace.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	var cause error
	switch v := r.(type) {
	case error:
		cause = v
	default:
		cause = fmt.Errorf("panic: %v", v)
	}

	return Wrap(cause, Runtime).
		WithDetail("panic", true).
		WithDetail("stack_trace", string(debug.Stack()))
}
