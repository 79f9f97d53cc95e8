package lineutil

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"golang.org/x/time/rate"

	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/logger"
)

// API is the subset of the Messaging API the sender uses.
type API interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
	PushMessage(req *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error)
}

// MetricsRecorder receives delivery outcomes. May be nil.
type MetricsRecorder interface {
	RecordDelivery(kind, status string)
}

// Sender delivers replies, resending as plain text when LINE rejects the
// rich rendering.
type Sender struct {
	api     API
	limiter *rate.Limiter
	metrics MetricsRecorder
	logger  *logger.Logger
}

// NewSender creates a sender. limiter throttles every outbound call; nil
// disables throttling.
func NewSender(api API, limiter *rate.Limiter, metrics MetricsRecorder, log *logger.Logger) *Sender {
	if log == nil {
		log = logger.New("error")
	}
	return &Sender{api: api, limiter: limiter, metrics: metrics, logger: log}
}

var statusPattern = regexp.MustCompile(`status code:? (\d{3})`)

// StatusCode extracts the HTTP status from a Messaging API error, or 0.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

// Reply answers a webhook event. Replies beyond the per-request limit are
// dropped with a warning; callers push the overflow themselves.
func (s *Sender) Reply(ctx context.Context, token string, replies []Reply) error {
	if len(replies) == 0 {
		return nil
	}
	if len(replies) > MaxMessagesPerRequest {
		s.logger.WarnContext(ctx, "reply exceeds message limit; truncating", "count", len(replies))
		replies = replies[:MaxMessagesPerRequest]
	}
	return s.deliver(ctx, "reply", replies, func(msgs []messaging_api.MessageInterface) error {
		_, err := s.api.ReplyMessage(&messaging_api.ReplyMessageRequest{ReplyToken: token, Messages: msgs})
		return err
	})
}

// Push sends replies to userID in batches of MaxMessagesPerRequest.
// It returns domerrors.ErrRecipientBlocked when the user cannot be reached.
func (s *Sender) Push(ctx context.Context, userID string, replies []Reply) error {
	for start := 0; start < len(replies); start += MaxMessagesPerRequest {
		batch := replies[start:min(start+MaxMessagesPerRequest, len(replies))]
		retryKey := uuid.NewString()
		err := s.deliver(ctx, "push", batch, func(msgs []messaging_api.MessageInterface) error {
			_, err := s.api.PushMessage(&messaging_api.PushMessageRequest{To: userID, Messages: msgs}, retryKey)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Notify pushes a single text message. It satisfies gamification.Notifier.
func (s *Sender) Notify(ctx context.Context, userID, text string) error {
	return s.Push(ctx, userID, []Reply{Text(text)})
}

func (s *Sender) deliver(ctx context.Context, kind string, replies []Reply, send func([]messaging_api.MessageInterface) error) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	err := send(Render(replies, false))
	if err == nil {
		s.record(kind, "success")
		return nil
	}

	switch code := StatusCode(err); {
	case code == 400 && isRenderRejection(err):
		s.logger.WarnContext(ctx, "rich message rejected; resending as plain text", "kind", kind, "error", err)
		if werr := s.wait(ctx); werr != nil {
			return werr
		}
		if err = send(Render(replies, true)); err == nil {
			s.record(kind, "plain_fallback")
			return nil
		}
	case code == 403 || code == 404 || (kind == "push" && isUnreachable(err)):
		s.record(kind, "blocked")
		return fmt.Errorf("%w: %w", domerrors.ErrRecipientBlocked, err)
	}

	s.record(kind, "error")
	return fmt.Errorf("%s message: %w", kind, err)
}

func (s *Sender) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("outbound rate limit: %w", err)
	}
	return nil
}

func (s *Sender) record(kind, status string) {
	if s.metrics != nil {
		s.metrics.RecordDelivery(kind, status)
	}
}

// isRenderRejection reports whether a 400 is about message content rather
// than the token or recipient.
func isRenderRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	return !strings.Contains(msg, "reply token") && !isUnreachable(err)
}

func isUnreachable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not a friend") ||
		strings.Contains(msg, "hasn't added") ||
		strings.Contains(msg, "blocked")
}

// IsInvalidReplyToken reports whether err is an expired or reused token.
func IsInvalidReplyToken(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "invalid reply token")
}

// IsBlocked reports whether err means the recipient cannot be reached.
func IsBlocked(err error) bool {
	return errors.Is(err, domerrors.ErrRecipientBlocked)
}
