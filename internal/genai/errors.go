package genai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ErrorAction is what the provider chain does after a failed call.
type ErrorAction int

const (
	// ActionRetry retries the same completer after a backoff.
	ActionRetry ErrorAction = iota
	// ActionFallback moves on to the next completer.
	ActionFallback
	// ActionFail stops the chain.
	ActionFail
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// LLMError carries the provider and HTTP status of a failed call.
type LLMError struct {
	Err        error
	StatusCode int
	Provider   Provider
}

func (e *LLMError) Error() string {
	if e.StatusCode > 0 {
		return e.Err.Error() + " (status: " + strconv.Itoa(e.StatusCode) + ")"
	}
	return e.Err.Error()
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// WrapError attaches provider and status code to err, extracting the status
// from the SDK error types when statusCode is 0.
func WrapError(err error, provider Provider, statusCode int) error {
	if err == nil {
		return nil
	}
	if statusCode == 0 {
		statusCode = sdkStatus(err)
	}
	return &LLMError{Err: err, StatusCode: statusCode, Provider: provider}
}

func sdkStatus(err error) int {
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	return 0
}

// ClassifyError decides the chain action for err:
// transient errors (429, 5xx, network) are retried, quota exhaustion falls
// back to the next provider, other client errors fail immediately.
func ClassifyError(err error) ErrorAction {
	if err == nil || errors.Is(err, context.Canceled) {
		return ActionFail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, "quota", "daily limit", "monthly limit", "billing") {
		return ActionFallback
	}

	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.StatusCode > 0 {
		return classifyStatusCode(llmErr.StatusCode)
	}
	if code := sdkStatus(err); code > 0 {
		return classifyStatusCode(code)
	}

	switch {
	case containsAny(msg, "rate limit", "too many requests", "resource_exhausted", "429"):
		return ActionRetry
	case containsAny(msg, "unavailable", "overloaded", "bad gateway", "gateway timeout",
		"internal server error", "500", "502", "503", "504"):
		return ActionRetry
	case containsAny(msg, "timeout", "deadline", "connection", "eof"):
		return ActionRetry
	case containsAny(msg, "unauthorized", "unauthenticated", "invalid api key", "forbidden",
		"permission denied", "bad request", "not found", "401", "403", "404", "400"):
		return ActionFail
	}
	return ActionRetry
}

func classifyStatusCode(code int) ErrorAction {
	switch {
	case code == http.StatusTooManyRequests,
		code == http.StatusRequestTimeout,
		code == http.StatusConflict,
		code >= 500:
		return ActionRetry
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusNotFound:
		// A dead key or a retired model: the next provider may still work.
		return ActionFallback
	case code >= 400:
		return ActionFail
	default:
		return ActionRetry
	}
}

// errorStatus maps err to a metric status label.
func errorStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	switch ClassifyError(err) {
	case ActionFallback:
		return "unavailable"
	case ActionRetry:
		return "transient_error"
	default:
		return "error"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
