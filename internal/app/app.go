// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/bot"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/buildinfo"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/challenge"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/data"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/gamification"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/genai"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/lineutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/logger"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/metrics"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/r2client"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/ratelimit"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/scheduler"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/sentry"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/session"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/snapshot"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/storage"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/webhook"
)

const repositoryURL = "https://github.com/YulsKumanikina/eco-ekb-bot"

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *storage.DB
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	assistant      *genai.Client
	snapshots      *snapshot.Manager
	scheduler      *scheduler.Scheduler
	webhookHandler *webhook.Handler
	server         *http.Server
	llmLimiter     *ratelimit.KeyedLimiter
	userLimiter    *ratelimit.KeyedLimiter
	wg             sync.WaitGroup // background goroutines
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken: cfg.BetterStackToken,
	})
	log = log.WithField("service", cfg.ServerName)
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}
	// Package-level slog calls pick up user, chat and request ids from ctx.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...", "version", buildinfo.Version, "commit", buildinfo.Commit)

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Version,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	}

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	var snaps *snapshot.Manager
	if cfg.SnapshotEnabled() {
		store, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.SnapshotEndpoint,
			AccessKeyID: cfg.SnapshotAccessKey,
			SecretKey:   cfg.SnapshotSecretKey,
			BucketName:  cfg.SnapshotBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("snapshot store: %w", err)
		}
		snaps = snapshot.New(store, snapshot.Config{
			Key:     cfg.SnapshotKey,
			TempDir: cfg.DataDir,
			Logger:  log.WithModule("snapshot"),
		})
		restoreIfMissing(ctx, snaps, cfg.SQLitePath(), log)
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	dataset, err := data.Load(ctx, data.Paths{
		Points:    cfg.PointsCSVPath,
		Knowledge: cfg.KnowledgeBasePath,
		Facts:     cfg.FactsPath,
		Tips:      cfg.TipsPath,
	})
	if err != nil {
		log.WithError(err).Warn("Some datasets are unavailable; continuing with the rest")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	api, err := messaging_api.NewMessagingApiAPI(cfg.LineChannelToken)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("messaging api: %w", err)
	}
	sender := lineutil.NewSender(api,
		ratelimit.NewOutbound(config.OutboundRatePerSecond, config.OutboundBurst),
		m, log.WithModule("sender"))
	outbox := bot.NewOutbox(sender)

	loc := cfg.Location()
	engine := gamification.New(gamification.Config{
		Store:    db,
		Locks:    db.Locks(),
		Catalog:  catalog,
		Notifier: outbox,
		Metrics:  m,
		Logger:   log.WithModule("gamification"),
		Location: loc,
	})
	challenges := challenge.New(challenge.Config{
		Store:    db,
		Locks:    db.Locks(),
		Catalog:  catalog,
		Awarder:  engine,
		Notifier: outbox,
		Metrics:  m,
		Logger:   log.WithModule("challenge"),
		Location: loc,
	})

	assistantClient, err := genai.New(ctx, cfg, m)
	if err != nil {
		log.WithError(err).Warn("LLM initialization failed; assistant disabled")
	}
	var assistant genai.Assistant
	if assistantClient.Enabled() {
		assistant = assistantClient
		log.WithField("providers", cfg.LLMProviders).Info("LLM features enabled")
	} else {
		log.Info("No LLM provider configured; assistant disabled")
	}

	llmLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "llm",
		Burst:         int(cfg.Bot.LLMRateBurst),
		RefillRate:    ratelimit.PerHour(cfg.Bot.LLMRateRefill),
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Reporter:      m,
	})
	userLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "user",
		Burst:         int(cfg.Bot.UserRateBurst),
		RefillRate:    rate.Limit(cfg.Bot.UserRateRefill),
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Reporter:      m,
	})

	router := bot.New(bot.Config{
		Catalog:     catalog,
		Dataset:     dataset,
		Sessions:    session.NewMemoryStore(cfg.Bot.SessionCapacity),
		Engine:      engine,
		Challenges:  challenges,
		Subscribers: db,
		Assistant:   assistant,
		LLMLimiter:  llmLimiter,
		Quizzes:     bot.NewQuizTracker(cfg.Bot.QuizCapacity),
		Metrics:     m,
		Logger:      log.WithModule("router"),
		InviteURL:   cfg.InviteURL,
	})

	webhookHandler, err := webhook.NewHandler(webhook.Config{
		ChannelSecret: cfg.LineChannelSecret,
		Router:        router,
		Messenger:     sender,
		Presence:      lineutil.NewChat(api),
		UserLimiter:   userLimiter,
		Metrics:       m,
		Logger:        log.WithModule("webhook"),
		Bot:           cfg.Bot,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("webhook: %w", err)
	}

	schedCfg := scheduler.Config{
		Schedule:    catalog.Schedule,
		Location:    loc,
		Sweeper:     challenges,
		Subscribers: db,
		Pusher:      sender,
		Tips:        dataset.Tips,
		Concurrency: cfg.Bot.BroadcastConcurrency,
		Metrics:     m,
		Logger:      log.WithModule("scheduler"),
	}
	if snaps != nil {
		schedCfg.Snapshot = snaps
		schedCfg.Source = db
	}
	sched, err := scheduler.New(schedCfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	app := &Application{
		cfg:            cfg,
		logger:         log,
		db:             db,
		metrics:        m,
		registry:       registry,
		assistant:      assistantClient,
		snapshots:      snaps,
		scheduler:      sched,
		webhookHandler: webhookHandler,
		llmLimiter:     llmLimiter,
		userLimiter:    userLimiter,
	}

	gin.SetMode(gin.ReleaseMode)
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.newEngine(webhookHandler.Handle),
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

// restoreIfMissing seeds an empty data directory from the latest snapshot.
// A failed restore is logged and the bot starts with a fresh database.
func restoreIfMissing(ctx context.Context, snaps *snapshot.Manager, path string, log *logger.Logger) {
	if _, err := os.Stat(path); err == nil || !errors.Is(err, os.ErrNotExist) {
		return
	}
	restoreCtx, cancel := context.WithTimeout(ctx, config.SnapshotUploadTimeout)
	defer cancel()
	etag, err := snaps.Restore(restoreCtx, path)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		log.Info("No snapshot to restore; starting with an empty database")
	case err != nil:
		log.WithError(err).Error("Snapshot restore failed; starting with an empty database")
	default:
		log.WithField("etag", etag).Info("Database restored from snapshot")
	}
}

// newEngine builds the HTTP routes around the webhook handler.
func (a *Application) newEngine(webhookHandle gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/", a.redirectToRepository)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.POST("/webhook", webhookHandle)
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	return router
}

func (a *Application) redirectToRepository(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, repositoryURL)
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) getFeatures() map[string]bool {
	return map[string]bool{
		"assistant": a.assistant.Enabled(),
		"snapshots": a.snapshots != nil,
	}
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"audience": a.getAudienceStats(ctx),
		"features": a.getFeatures(),
	})
}

func (a *Application) getAudienceStats(ctx context.Context) map[string]int {
	stats := make(map[string]int)
	counters := []struct {
		kind  string
		count func(context.Context) (int, error)
	}{
		{"profiles", a.db.CountProfiles},
		{"subscribers", a.db.CountSubscribers},
		{"challenges", a.db.CountChallenges},
	}
	for _, c := range counters {
		n, err := c.count(ctx)
		if err != nil {
			a.logger.WithError(err).Warn("Failed to count " + c.kind)
			continue
		}
		stats[c.kind] = n
	}
	return stats
}

// Run starts the HTTP server and background jobs, then blocks until
// SIGINT or SIGTERM.
//
// Shutdown order: stop background jobs, stop accepting requests, drain
// queued webhook events, then close the database and the remaining
// resources. The database goes last so no job or event writes to it after
// it is closed.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()
	if err := a.scheduler.Shutdown(); err != nil {
		a.logger.WithError(err).Warn("Scheduler shutdown error")
	}

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.scheduler.Start()
	a.wg.Go(func() {
		a.updateAudienceMetrics(ctx)
	})
}

func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for webhook events to complete...")
	if err := a.webhookHandler.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
	}

	a.logger.Info("Closing resources...")
	if err := a.assistant.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "assistant").Error("Component close error")
	}
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}
	a.llmLimiter.Stop()
	a.userLimiter.Stop()

	sentry.Flush(2 * time.Second)
	a.logger.Info("Shutdown complete")
	return nil
}

// updateAudienceMetrics periodically records stored population sizes.
func (a *Application) updateAudienceMetrics(ctx context.Context) {
	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	a.recordAudienceMetrics(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.recordAudienceMetrics(ctx)
		}
	}
}

func (a *Application) recordAudienceMetrics(ctx context.Context) {
	if a.metrics == nil {
		return
	}
	for kind, n := range a.getAudienceStats(ctx) {
		a.metrics.SetAudienceSize(kind, n)
	}
}
