package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRequestsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Routing metrics
	RouteTotal *prometheus.CounterVec

	// Delivery metrics
	DeliveriesTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterKeys    *prometheus.GaugeVec

	// LLM metrics
	LLMRequestsTotal   *prometheus.CounterVec
	LLMDurationSeconds *prometheus.HistogramVec
	LLMFallbackTotal   *prometheus.CounterVec

	// Gamification metrics
	PointsAwardedTotal  *prometheus.CounterVec
	AchievementsTotal   *prometheus.CounterVec
	LevelUpsTotal       *prometheus.CounterVec
	AwardsDroppedTotal  prometheus.Counter
	ChallengeEventTotal *prometheus.CounterVec

	// Scheduler metrics
	JobRunsTotal       *prometheus.CounterVec
	JobDurationSeconds *prometheus.HistogramVec

	// Audience gauges
	AudienceSize *prometheus.GaugeVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	f := promauto.With(registry)
	m := &Metrics{
		WebhookDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eco_webhook_duration_seconds",
				Help:    "Event processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"event_type"}, // event_type: message, postback, follow, unfollow
		),

		WebhookRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_webhook_requests_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // status: success, error, rate_limited
		),

		HTTPErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: invalid_signature, parse, etc.
		),

		RouteTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_route_total",
				Help: "Total number of messages answered by each cascade stage",
			},
			[]string{"stage"}, // stage: button, help, search, knowledge, llm_search, llm_general, ...
		),

		DeliveriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_deliveries_total",
				Help: "Total outbound LINE calls by kind and status",
			},
			[]string{"kind", "status"}, // kind: reply, push; status: success, plain_fallback, blocked, error
		),

		RateLimiterDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: user, llm
		),

		RateLimiterKeys: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eco_rate_limiter_active_keys",
				Help: "Number of keys currently tracked by a rate limiter",
			},
			[]string{"limiter_type"},
		),

		LLMRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_llm_requests_total",
				Help: "Total LLM calls by provider, operation and status",
			},
			[]string{"provider", "operation", "status"},
		),

		LLMDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eco_llm_duration_seconds",
				Help:    "LLM call duration in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"provider", "operation"},
		),

		LLMFallbackTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_llm_fallback_total",
				Help: "Total provider fallbacks",
			},
			[]string{"from", "to", "operation"},
		),

		PointsAwardedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_points_awarded_total",
				Help: "Total eco points awarded by reason",
			},
			[]string{"kind"},
		),

		AchievementsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_achievements_unlocked_total",
				Help: "Total achievements unlocked",
			},
			[]string{"achievement"},
		),

		LevelUpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_level_ups_total",
				Help: "Total level-ups by reached level",
			},
			[]string{"level"},
		),

		AwardsDroppedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "eco_awards_dropped_total",
				Help: "Follow-up awards dropped because the queue was full",
			},
		),

		ChallengeEventTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_challenge_events_total",
				Help: "Challenge lifecycle events",
			},
			[]string{"event"}, // event: accepted, cancelled, completed, reminded
		),

		JobRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eco_job_runs_total",
				Help: "Scheduled job runs by job and status",
			},
			[]string{"job", "status"},
		),

		JobDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eco_job_duration_seconds",
				Help:    "Scheduled job duration in seconds",
				Buckets: []float64{0.1, 1, 5, 30, 60, 300, 900},
			},
			[]string{"job"},
		),

		AudienceSize: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eco_audience_size",
				Help: "Current number of stored records by kind",
			},
			[]string{"kind"}, // kind: profiles, subscribers, challenges
		),
	}

	return m
}

// RecordWebhook records a processed webhook event
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordRoute records which cascade stage answered a message
func (m *Metrics) RecordRoute(stage string) {
	m.RouteTotal.WithLabelValues(stage).Inc()
}

// RecordDelivery records an outbound LINE call
func (m *Metrics) RecordDelivery(kind, status string) {
	m.DeliveriesTotal.WithLabelValues(kind, status).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterKeys sets the number of keys tracked by a limiter
func (m *Metrics) SetRateLimiterKeys(limiterType string, count int) {
	m.RateLimiterKeys.WithLabelValues(limiterType).Set(float64(count))
}

// RecordLLM records one completion attempt
func (m *Metrics) RecordLLM(provider, operation, status string, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	m.LLMDurationSeconds.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordLLMFallback records a switch to the next provider
func (m *Metrics) RecordLLMFallback(from, to, operation string) {
	m.LLMFallbackTotal.WithLabelValues(from, to, operation).Inc()
}

// RecordPoints records awarded points
func (m *Metrics) RecordPoints(kind string, points int) {
	m.PointsAwardedTotal.WithLabelValues(kind).Add(float64(points))
}

// RecordAchievement records an unlocked achievement
func (m *Metrics) RecordAchievement(id string) {
	m.AchievementsTotal.WithLabelValues(id).Inc()
}

// RecordLevelUp records reaching a level
func (m *Metrics) RecordLevelUp(level int) {
	m.LevelUpsTotal.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordAwardDropped records a dropped follow-up award
func (m *Metrics) RecordAwardDropped() {
	m.AwardsDroppedTotal.Inc()
}

// RecordChallenge records a challenge lifecycle event
func (m *Metrics) RecordChallenge(event string) {
	m.ChallengeEventTotal.WithLabelValues(event).Inc()
}

// RecordJob records a scheduled job run
func (m *Metrics) RecordJob(job, status string, duration time.Duration) {
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
	m.JobDurationSeconds.WithLabelValues(job).Observe(duration.Seconds())
}

// SetAudienceSize records the current size of a stored population
func (m *Metrics) SetAudienceSize(kind string, n int) {
	m.AudienceSize.WithLabelValues(kind).Set(float64(n))
}
