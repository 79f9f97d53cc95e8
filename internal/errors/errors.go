// Package errors provides the error taxonomy shared by the cascade, the
// engine and the transport.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is() to check them.
var (
	// ErrNotFound indicates a requested record was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrStaleCallback indicates a callback token refers to evicted or unknown state
	// (pagination context, quiz id).
	ErrStaleCallback = errors.New("stale callback data")

	// ErrCapabilityUnavailable indicates the external LLM capability is not configured
	// or every provider failed.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrMalformedQuiz indicates quiz generation output missed required fields.
	ErrMalformedQuiz = errors.New("malformed quiz output")

	// ErrRecipientBlocked indicates the recipient blocked the bot.
	ErrRecipientBlocked = errors.New("recipient blocked the bot")

	// ErrRenderRejected indicates the transport rejected rich formatting.
	ErrRenderRejected = errors.New("rich message rejected")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrAlreadyDoneToday indicates a once-per-day action was already performed.
	ErrAlreadyDoneToday = errors.New("already done today")
)

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
