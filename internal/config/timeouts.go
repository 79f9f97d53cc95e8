// Package config provides centralized timeout constants for the application.
//
// # LINE API Constraints
//
// LINE expects a quick 200 OK for every webhook call, so events are processed
// asynchronously. The loading animation runs for up to 60 seconds, which is the
// upper bound for a single event.
package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing is the timeout for processing a single webhook event,
	// including LLM calls and database access.
	WebhookProcessing = 60 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	WebhookHTTPWrite = 15 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// External capability timeouts
const (
	// LLMRequest bounds a single classify/answer/quiz call including retries.
	LLMRequest = 25 * time.Second

	// OutboundSend bounds a single push or reply call to the LINE API.
	OutboundSend = 10 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// RateLimiterCleanupInterval is how often inactive user rate limiters are cleaned.
	RateLimiterCleanupInterval = 5 * time.Minute

	// MetricsUpdateInterval is how often gauge metrics are refreshed.
	MetricsUpdateInterval = 5 * time.Minute

	// ChallengeSweepTimeout bounds one challenge sweep run.
	ChallengeSweepTimeout = 10 * time.Minute

	// BroadcastTimeout bounds one daily tip broadcast run.
	BroadcastTimeout = 30 * time.Minute

	// SnapshotUploadTimeout bounds one database snapshot upload.
	SnapshotUploadTimeout = 10 * time.Minute

	// ReadinessCheckTimeout bounds the /readyz database ping.
	ReadinessCheckTimeout = 3 * time.Second
)

// Graceful shutdown
const (
	// GracefulShutdown is the default timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second
)
