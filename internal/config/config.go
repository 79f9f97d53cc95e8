// Package config provides application configuration management.
// It loads settings from environment variables (optionally from a .env file)
// and exposes the embedded eco catalog with points, levels and vocabularies.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// LINE Bot Configuration
	LineChannelToken  string
	LineChannelSecret string

	// LLM Configuration
	LLMProviders  []string // Provider order, e.g. ["gemini", "openai"]
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string // OpenAI-compatible endpoint (Groq, GigaChat proxy, ...)
	OpenAIModel   string

	// Metrics Authentication
	MetricsUsername string
	MetricsPassword string // empty = no auth

	// Observability
	BetterStackToken  string
	SentryToken       string
	SentryHost        string
	SentryEnvironment string

	// Server Configuration
	Port            string
	LogLevel        string
	ServerName      string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir           string
	PointsCSVPath     string
	KnowledgeBasePath string
	FactsPath         string
	TipsPath          string
	CatalogPath       string // empty = embedded catalog
	Timezone          string
	InviteURL         string // base URL for referral links, "ref_<id>" is appended

	// Snapshot Configuration (optional)
	SnapshotEndpoint  string
	SnapshotAccessKey string
	SnapshotSecretKey string
	SnapshotBucket    string
	SnapshotKey       string

	// Bot Configuration (embedded)
	Bot BotConfig
}

// BotConfig holds bot-specific configuration
type BotConfig struct {
	WebhookTimeout time.Duration

	// Rate Limits (Token Bucket Algorithm)
	UserRateBurst  float64 // Maximum burst tokens per user
	UserRateRefill float64 // Tokens refilled per second
	LLMRateBurst   float64 // Maximum burst tokens for LLM per user
	LLMRateRefill  float64 // LLM tokens refilled per hour

	SessionCapacity      int // Max users kept in the in-memory dialogue store
	QuizCapacity         int // Max quizzes in flight
	BroadcastConcurrency int // Parallel pushes during the daily broadcast

	// LINE API Constraints
	MaxMessagesPerReply int
	MaxEventsPerWebhook int
	MinReplyTokenLength int
}

// Validate checks bot configuration values.
func (b BotConfig) Validate() error {
	var errs []error
	if b.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("webhook timeout must be positive, got %v", b.WebhookTimeout))
	}
	if b.UserRateBurst <= 0 || b.UserRateRefill <= 0 {
		errs = append(errs, errors.New("user rate limit burst and refill must be positive"))
	}
	if b.LLMRateBurst <= 0 || b.LLMRateRefill <= 0 {
		errs = append(errs, errors.New("LLM rate limit burst and refill must be positive"))
	}
	if b.SessionCapacity <= 0 {
		errs = append(errs, fmt.Errorf("session capacity must be positive, got %d", b.SessionCapacity))
	}
	if b.QuizCapacity <= 0 {
		errs = append(errs, fmt.Errorf("quiz capacity must be positive, got %d", b.QuizCapacity))
	}
	if b.BroadcastConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("broadcast concurrency must be positive, got %d", b.BroadcastConcurrency))
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	cfg := loadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadForMaintenance reads configuration for out-of-band tools that only
// touch the database (no LINE credentials required).
func LoadForMaintenance() (*Config, error) {
	cfg := loadFromEnv()
	if cfg.DataDir == "" {
		return nil, errors.New("ECO_DATA_DIR is required")
	}
	return cfg, nil
}

func loadFromEnv() *Config {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	dataDir := getEnv(EnvDataDir, getDefaultDataDir())

	return &Config{
		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),

		LLMProviders:  getListEnv(EnvLLMProviders, []string{"gemini", "openai"}),
		GeminiAPIKey:  getEnv(EnvGeminiAPIKey, ""),
		GeminiModel:   getEnv(EnvGeminiModel, "gemini-2.5-flash"),
		OpenAIAPIKey:  getEnv(EnvOpenAIAPIKey, ""),
		OpenAIBaseURL: getEnv(EnvOpenAIBaseURL, "https://api.groq.com/openai/v1"),
		OpenAIModel:   getEnv(EnvOpenAIModel, "llama-3.3-70b-versatile"),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		BetterStackToken:  getEnv(EnvBetterStackToken, ""),
		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ServerName:      getEnv(EnvServerName, "eco-ekb-bot"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		DataDir:           dataDir,
		PointsCSVPath:     getEnv(EnvPointsCSV, filepath.Join(dataDir, "recycling_points.csv")),
		KnowledgeBasePath: getEnv(EnvKnowledgeBase, filepath.Join(dataDir, "knowledge_base.json")),
		FactsPath:         getEnv(EnvFactsFile, filepath.Join(dataDir, "interesting_facts.json")),
		TipsPath:          getEnv(EnvTipsFile, filepath.Join(dataDir, "eco_tips.json")),
		CatalogPath:       getEnv(EnvCatalogFile, ""),
		Timezone:          getEnv(EnvTimezone, "Europe/Moscow"),
		InviteURL:         getEnv(EnvBotInviteURL, ""),

		SnapshotEndpoint:  getEnv(EnvSnapshotEndpoint, ""),
		SnapshotAccessKey: getEnv(EnvSnapshotAccessKey, ""),
		SnapshotSecretKey: getEnv(EnvSnapshotSecretKey, ""),
		SnapshotBucket:    getEnv(EnvSnapshotBucket, ""),
		SnapshotKey:       getEnv(EnvSnapshotKey, "snapshots/eco.db.zst"),

		Bot: BotConfig{
			WebhookTimeout:       getDurationEnv(EnvWebhookTimeout, WebhookProcessing),
			UserRateBurst:        getFloatEnv(EnvUserRateBurst, 15),
			UserRateRefill:       getFloatEnv(EnvUserRateRefill, 0.2),
			LLMRateBurst:         getFloatEnv(EnvLLMRateBurst, 30),
			LLMRateRefill:        getFloatEnv(EnvLLMRateRefill, 20),
			SessionCapacity:      getIntEnv(EnvSessionCapacity, 10000),
			QuizCapacity:         getIntEnv(EnvQuizCapacity, 5000),
			BroadcastConcurrency: getIntEnv(EnvBroadcastConcurrent, 8),
			MaxMessagesPerReply:  LINEMaxMessagesPerReply,
			MaxEventsPerWebhook:  100,
			MinReplyTokenLength:  10,
		},
	}
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.LineChannelToken == "" {
		errs = append(errs, errors.New(EnvLineChannelAccessToken+" is required"))
	}
	if c.LineChannelSecret == "" {
		errs = append(errs, errors.New(EnvLineChannelSecret+" is required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New(EnvPort+" is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New(EnvDataDir+" is required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EnvTimezone, err))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvShutdownTimeout, c.ShutdownTimeout))
	}
	if c.MetricsPassword != "" && c.MetricsUsername == "" {
		errs = append(errs, errors.New(EnvMetricsUsername+" is required when "+EnvMetricsPassword+" is set"))
	}
	if c.SentryToken != "" && c.SentryHost == "" {
		errs = append(errs, errors.New(EnvSentryHost+" is required when "+EnvSentryToken+" is set"))
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}

	return errors.Join(errs...)
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "eco.db")
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HasLLMProvider returns true if at least one LLM provider is configured.
func (c *Config) HasLLMProvider() bool {
	return c.GeminiAPIKey != "" || c.OpenAIAPIKey != ""
}

// SnapshotEnabled reports whether all object storage settings are present.
func (c *Config) SnapshotEnabled() bool {
	return c.SnapshotEndpoint != "" && c.SnapshotAccessKey != "" &&
		c.SnapshotSecretKey != "" && c.SnapshotBucket != ""
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getListEnv parses a comma-separated list, dropping empty items.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}
