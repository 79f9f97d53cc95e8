// Package ctxutil provides type-safe context value management.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	userIDKey    contextKey = "ctxutil.userID"
	chatIDKey    contextKey = "ctxutil.chatID"
	requestIDKey contextKey = "ctxutil.requestID"
	jobKey       contextKey = "ctxutil.job"
)

// WithUserID adds the LINE user ID to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the user ID or "" when absent.
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, userIDKey)
}

// WithChatID adds the chat ID (user, group or room) to the context.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatIDKey, chatID)
}

// GetChatID returns the chat ID or "" when absent.
func GetChatID(ctx context.Context) string {
	return stringValue(ctx, chatIDKey)
}

// WithRequestID adds a request ID (webhook event ID or job run ID) for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID or "" when absent.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithJob marks ctx as belonging to a run of the named scheduled job.
func WithJob(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, jobKey, name)
}

// GetJob returns the scheduled job name or "" outside a job run.
func GetJob(ctx context.Context) string {
	return stringValue(ctx, jobKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// PreserveTracing creates a detached context that keeps only tracing values.
// Webhook events are processed after the HTTP response is written, so they
// must not inherit the request's cancellation.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if userID := GetUserID(ctx); userID != "" {
		newCtx = WithUserID(newCtx, userID)
	}
	if chatID := GetChatID(ctx); chatID != "" {
		newCtx = WithChatID(newCtx, chatID)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}
	if job := GetJob(ctx); job != "" {
		newCtx = WithJob(newCtx, job)
	}

	return newCtx
}
