package errors

import (
	"errors"
	"fmt"
)

// ErrorWrapper attaches module and operation context to errors.
type ErrorWrapper struct {
	operation string
	module    string
}

// NewWrapper creates a new error wrapper with operation and module context.
func NewWrapper(module, operation string) *ErrorWrapper {
	return &ErrorWrapper{module: module, operation: operation}
}

// Wrap wraps err with operation context and a user-facing message.
// Returns nil if err is nil.
func (w *ErrorWrapper) Wrap(err error, userMessage string) error {
	if err == nil {
		return nil
	}
	return &WrappedError{
		Operation:   w.operation,
		Module:      w.module,
		Cause:       err,
		UserMessage: userMessage,
	}
}

// WrappedError contains both internal error details and a user-facing message.
type WrappedError struct {
	Operation   string // e.g. "award", "sweep"
	Module      string // e.g. "gamification", "challenge"
	Cause       error
	UserMessage string
}

func (e *WrappedError) Error() string {
	return fmt.Sprintf("[%s:%s] %s: %v", e.Module, e.Operation, e.UserMessage, e.Cause)
}

func (e *WrappedError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the user-facing message of the first WrappedError in
// the chain, or fallback when there is none.
func UserMessage(err error, fallback string) string {
	var wrapped *WrappedError
	if errors.As(err, &wrapped) && wrapped.UserMessage != "" {
		return wrapped.UserMessage
	}
	return fallback
}

// Is and As re-export the standard helpers so callers need a single import.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)
