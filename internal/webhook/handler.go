// Package webhook receives LINE webhook calls, acknowledges them at once and
// feeds the events to the conversation router, one user at a time.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/ctxutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/lineutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/logger"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/ratelimit"
)

// Router answers decoded events.
type Router interface {
	HandleText(ctx context.Context, userID, text string) []lineutil.Reply
	HandlePostback(ctx context.Context, userID, data string) []lineutil.Reply
	HandleFollow(ctx context.Context, userID, displayName string) []lineutil.Reply
	HandleUnfollow(ctx context.Context, userID string)
	TooManyRequests() []lineutil.Reply
}

// Messenger delivers replies.
type Messenger interface {
	Reply(ctx context.Context, token string, replies []lineutil.Reply) error
	Push(ctx context.Context, userID string, replies []lineutil.Reply) error
}

// Presence shows the typing indicator and looks up display names.
type Presence interface {
	ShowLoading(ctx context.Context, chatID string) error
	DisplayName(ctx context.Context, userID string) (string, error)
}

// MetricsRecorder receives per-event outcomes. May be nil.
type MetricsRecorder interface {
	RecordWebhook(eventType, status string, duration float64)
}

// Handler handles LINE webhook calls.
type Handler struct {
	channelSecret string
	router        Router
	messenger     Messenger
	presence      Presence
	userLimiter   *ratelimit.KeyedLimiter
	metrics       MetricsRecorder
	logger        *logger.Logger
	queue         *userQueue

	timeout             time.Duration
	maxEvents           int
	minReplyTokenLength int
}

// Config holds the handler dependencies.
type Config struct {
	ChannelSecret string
	Router        Router
	Messenger     Messenger
	Presence      Presence                // nil skips the loading animation and display names
	UserLimiter   *ratelimit.KeyedLimiter // nil disables the per-user limit
	Metrics       MetricsRecorder
	Logger        *logger.Logger
	Bot           config.BotConfig
}

// NewHandler creates a webhook handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.ChannelSecret == "" {
		return nil, errors.New("webhook: channel secret is required")
	}
	if cfg.Router == nil || cfg.Messenger == nil {
		return nil, errors.New("webhook: router and messenger are required")
	}
	h := &Handler{
		channelSecret:       cfg.ChannelSecret,
		router:              cfg.Router,
		messenger:           cfg.Messenger,
		presence:            cfg.Presence,
		userLimiter:         cfg.UserLimiter,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger,
		queue:               newUserQueue(),
		timeout:             cfg.Bot.WebhookTimeout,
		maxEvents:           cfg.Bot.MaxEventsPerWebhook,
		minReplyTokenLength: cfg.Bot.MinReplyTokenLength,
	}
	if h.logger == nil {
		h.logger = logger.New("error")
	}
	if h.timeout <= 0 {
		h.timeout = config.WebhookProcessing
	}
	if h.maxEvents <= 0 {
		h.maxEvents = 100
	}
	return h, nil
}

// Handle is the gin handler of POST /webhook. It validates the signature,
// answers 200 at once and processes the events in the background.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("invalid webhook signature")
			c.Status(http.StatusBadRequest)
		} else {
			h.logger.WithError(err).Error("failed to parse webhook request")
			c.Status(http.StatusInternalServerError)
		}
		return
	}
	c.Status(http.StatusOK)

	events := cb.Events
	if len(events) > h.maxEvents {
		h.logger.Warn("too many events in webhook batch; truncating",
			"event_count", len(events), "limit", h.maxEvents)
		events = events[:h.maxEvents]
	}
	h.Dispatch(events)
}

// Dispatch queues events for processing. Events of one user are handled in
// order; different users proceed concurrently.
func (h *Handler) Dispatch(events []webhook.EventInterface) {
	received := time.Now()
	for _, ev := range events {
		in, ok := parseEvent(ev)
		if !ok {
			h.logger.Debug("ignoring event", "event_type", fmt.Sprintf("%T", ev))
			continue
		}
		h.queue.enqueue(in.queueKey(), func() { h.process(in, received) })
	}
}

func (h *Handler) process(in inbound, received time.Time) {
	start := time.Now()
	ctx := ctxutil.WithChatID(ctxutil.WithUserID(context.Background(), in.userID), in.chatID)
	log := h.logger.WithField("event_type", in.kind)
	if in.eventID != "" {
		ctx = ctxutil.WithRequestID(ctx, in.eventID)
		log = log.WithRequestID(in.eventID)
	}
	if in.redelivery {
		log = log.WithField("is_redelivery", true)
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status := "success"
	defer func() {
		if rec := recover(); rec != nil {
			log.ErrorContext(ctx, "panic while processing event", "panic", rec)
			status = "panic"
		}
		h.record(in.kind, status, time.Since(start))
	}()

	if in.kind == kindUnfollow {
		h.router.HandleUnfollow(ctx, in.userID)
		log.InfoContext(ctx, "user unfollowed")
		return
	}

	var replies []lineutil.Reply
	if in.kind != kindFollow && h.userLimiter != nil && !h.userLimiter.Allow(in.userID) {
		status = "rate_limited"
		replies = h.router.TooManyRequests()
	} else {
		h.showLoading(ctx, in, log)
		replies = h.route(ctx, in, log)
	}

	if err := h.deliver(ctx, in, replies); err != nil {
		status = "delivery_error"
		log.WithError(err).ErrorContext(ctx, "failed to deliver response")
	}
	log.InfoContext(ctx, "event processed",
		"event_duration_ms", time.Since(start).Milliseconds(),
		"queue_delay_ms", start.Sub(received).Milliseconds(),
		"messages", len(replies))
}

func (h *Handler) route(ctx context.Context, in inbound, log *logger.Logger) []lineutil.Reply {
	switch in.kind {
	case kindMessage:
		return h.router.HandleText(ctx, in.userID, in.text)
	case kindPostback:
		return h.router.HandlePostback(ctx, in.userID, in.data)
	case kindFollow:
		var name string
		if h.presence != nil {
			var err error
			if name, err = h.presence.DisplayName(ctx, in.userID); err != nil {
				log.WithError(err).WarnContext(ctx, "failed to fetch display name")
			}
		}
		return h.router.HandleFollow(ctx, in.userID, name)
	}
	return nil
}

func (h *Handler) showLoading(ctx context.Context, in inbound, log *logger.Logger) {
	if h.presence == nil {
		return
	}
	if err := h.presence.ShowLoading(ctx, in.chatID); err != nil {
		log.WithError(err).DebugContext(ctx, "failed to show loading animation")
	}
}

// deliver answers with the reply token and pushes what does not fit into a
// single reply. When the token is missing or no longer valid the whole
// response is pushed.
func (h *Handler) deliver(ctx context.Context, in inbound, replies []lineutil.Reply) error {
	if len(replies) == 0 {
		return nil
	}
	target := in.chatID
	if target == "" {
		target = in.userID
	}
	if !h.usableToken(in.replyToken) {
		return h.messenger.Push(ctx, target, replies)
	}

	head := replies[:min(len(replies), lineutil.MaxMessagesPerRequest)]
	tail := replies[len(head):]
	if err := h.messenger.Reply(ctx, in.replyToken, head); err != nil {
		if !lineutil.IsInvalidReplyToken(err) {
			return err
		}
		h.logger.DebugContext(ctx, "reply token expired; pushing instead")
		return h.messenger.Push(ctx, target, replies)
	}
	if len(tail) > 0 {
		return h.messenger.Push(ctx, target, tail)
	}
	return nil
}

func (h *Handler) usableToken(token string) bool {
	return token != "" && len(token) >= h.minReplyTokenLength
}

func (h *Handler) record(kind, status string, d time.Duration) {
	if h.metrics != nil {
		h.metrics.RecordWebhook(kind, status, d.Seconds())
	}
}

// Shutdown waits for queued events to finish or ctx to end.
func (h *Handler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.queue.wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
