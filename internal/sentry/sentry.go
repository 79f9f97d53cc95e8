// Package sentry wires the Sentry SDK to Better Stack error tracking and
// tags captured errors with the chat user and the failing stage.
package sentry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config holds Sentry configuration for Better Stack integration.
type Config struct {
	// Token is the Better Stack Errors application token.
	Token string

	// Host is the Better Stack Errors ingesting host (e.g., "errors.betterstack.com").
	Host string

	Environment string
	Release     string

	// SampleRate controls error sampling (0.0-1.0, default 1.0 = 100%).
	SampleRate float64
}

// Initialize sets up the Sentry SDK. An empty Token leaves Sentry disabled.
// The DSN is built as https://$TOKEN@$HOST/1.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return fmt.Errorf("sentry host is required when token is provided")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		// The project ID is required by the SDK and ignored by Better Stack.
		Dsn:              fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host),
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		AttachStacktrace: true,
		BeforeSend:       scrub,
	})
}

// scrub drops request bodies; webhook payloads carry user messages.
func scrub(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		event.Request.Data = ""
	}
	return event
}

// Flush waits for buffered events. Returns true if all were sent in time.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// Tags describes where an error happened.
type Tags struct {
	UserID string
	Stage  string // e.g. "message", "postback", "challenge_sweep"
}

func hubFrom(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// CaptureError reports err with tags attached.
func CaptureError(ctx context.Context, err error, tags Tags) {
	if err == nil {
		return
	}
	hub := hubFrom(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		applyTags(scope, tags)
		hub.CaptureException(err)
	})
}

// RecoverPanic reports a recovered panic value and returns it as an error.
func RecoverPanic(ctx context.Context, recovered any, tags Tags) error {
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", recovered)
	}
	hub := hubFrom(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		applyTags(scope, tags)
		scope.SetLevel(sentry.LevelFatal)
		hub.RecoverWithContext(ctx, recovered)
	})
	return err
}

func applyTags(scope *sentry.Scope, tags Tags) {
	if tags.UserID != "" {
		scope.SetUser(sentry.User{ID: tags.UserID})
	}
	if tags.Stage != "" {
		scope.SetTag("stage", tags.Stage)
	}
}
