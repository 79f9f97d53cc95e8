// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Core (Required)
	EnvLineChannelAccessToken = "ECO_LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "ECO_LINE_CHANNEL_SECRET"

	// Server
	EnvPort            = "ECO_PORT"
	EnvLogLevel        = "ECO_LOG_LEVEL"
	EnvShutdownTimeout = "ECO_SHUTDOWN_TIMEOUT"
	EnvServerName      = "ECO_SERVER_NAME"

	// Data
	EnvDataDir             = "ECO_DATA_DIR"
	EnvPointsCSV           = "ECO_POINTS_CSV"
	EnvKnowledgeBase       = "ECO_KNOWLEDGE_BASE"
	EnvFactsFile           = "ECO_FACTS_FILE"
	EnvTipsFile            = "ECO_TIPS_FILE"
	EnvCatalogFile         = "ECO_CATALOG_FILE"
	EnvSessionCapacity     = "ECO_SESSION_CAPACITY"
	EnvQuizCapacity        = "ECO_QUIZ_CAPACITY"
	EnvBotInviteURL        = "ECO_BOT_INVITE_URL"
	EnvTimezone            = "ECO_TIMEZONE"
	EnvBroadcastConcurrent = "ECO_BROADCAST_CONCURRENCY"

	// Webhook
	EnvWebhookTimeout = "ECO_WEBHOOK_TIMEOUT"

	// Rate Limits
	EnvUserRateBurst  = "ECO_USER_RATE_BURST"
	EnvUserRateRefill = "ECO_USER_RATE_REFILL"
	EnvLLMRateBurst   = "ECO_LLM_RATE_BURST"
	EnvLLMRateRefill  = "ECO_LLM_RATE_REFILL"

	// LLM Feature
	EnvLLMProviders  = "ECO_LLM_PROVIDERS"
	EnvGeminiAPIKey  = "ECO_GEMINI_API_KEY"
	EnvGeminiModel   = "ECO_GEMINI_MODEL"
	EnvOpenAIAPIKey  = "ECO_OPENAI_API_KEY"
	EnvOpenAIBaseURL = "ECO_OPENAI_BASE_URL"
	EnvOpenAIModel   = "ECO_OPENAI_MODEL"

	// Snapshot Feature
	EnvSnapshotEndpoint  = "ECO_SNAPSHOT_ENDPOINT"
	EnvSnapshotAccessKey = "ECO_SNAPSHOT_ACCESS_KEY_ID"
	EnvSnapshotSecretKey = "ECO_SNAPSHOT_SECRET_ACCESS_KEY"
	EnvSnapshotBucket    = "ECO_SNAPSHOT_BUCKET"
	EnvSnapshotKey       = "ECO_SNAPSHOT_KEY"

	// Observability
	EnvMetricsUsername   = "ECO_METRICS_USERNAME"
	EnvMetricsPassword   = "ECO_METRICS_PASSWORD"
	EnvBetterStackToken  = "ECO_BETTERSTACK_TOKEN"
	EnvSentryToken       = "ECO_SENTRY_TOKEN"
	EnvSentryHost        = "ECO_SENTRY_HOST"
	EnvSentryEnvironment = "ECO_SENTRY_ENVIRONMENT"
)
