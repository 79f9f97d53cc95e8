package logger

import (
	"context"
	"log/slog"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/ctxutil"
)

// contextFields maps log keys to the ctxutil getters they are read from.
// Webhook events carry user_id, chat_id and request_id; scheduler runs
// carry job, so every line of a sweep or broadcast can be filtered by it.
var contextFields = []struct {
	key string
	get func(context.Context) string
}{
	{"user_id", ctxutil.GetUserID},
	{"chat_id", ctxutil.GetChatID},
	{"request_id", ctxutil.GetRequestID},
	{"job", ctxutil.GetJob},
}

// ContextHandler adds the non-empty contextFields of the record's context
// to every record before passing it on.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, f := range contextFields {
		if v := f.get(ctx); v != "" {
			r.AddAttrs(slog.String(f.key, v))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewContextHandler(h.next.WithAttrs(attrs))
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return NewContextHandler(h.next.WithGroup(name))
}
