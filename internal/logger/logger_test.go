package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/ctxutil"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestNewWithWriter_Format(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.WithModule("bot").WithField("points", 10).Warn("award queued")

	entry := decode(t, &buf)
	if entry["level"] != "warning" {
		t.Errorf("expected level warning, got %v", entry["level"])
	}
	if entry["message"] != "award queued" {
		t.Errorf("unexpected message %v", entry["message"])
	}
	if entry["module"] != "bot" {
		t.Errorf("expected module bot, got %v", entry["module"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp key missing")
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("error", &buf)

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at error level, got %q", buf.String())
	}

	log.WithError(errors.New("boom")).Error("kept")
	entry := decode(t, &buf)
	if entry["error"] != "boom" {
		t.Errorf("expected error field, got %v", entry["error"])
	}
}

func TestContextHandler_AddsTracingValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", &buf)

	ctx := ctxutil.WithUserID(context.Background(), "U123")
	ctx = ctxutil.WithChatID(ctx, "C456")
	ctx = ctxutil.WithRequestID(ctx, "req-1")
	ctx = ctxutil.WithJob(ctx, "challenge_sweep")
	log.WithField("component", "sweep").InfoContext(ctx, "handled")

	entry := decode(t, &buf)
	for key, want := range map[string]string{
		"user_id": "U123", "chat_id": "C456", "request_id": "req-1",
		"job": "challenge_sweep", "component": "sweep",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %s", key, entry[key], want)
		}
	}
}

func TestContextHandler_SkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", &buf)

	log.InfoContext(ctxutil.WithUserID(context.Background(), ""), "anonymous")

	entry := decode(t, &buf)
	if _, ok := entry["user_id"]; ok {
		t.Error("empty user_id should not be logged")
	}
}

func TestMultiHandler_FanOut(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		nil,
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(h)

	log.Info("only first")
	if a.Len() == 0 || b.Len() != 0 {
		t.Fatalf("unexpected fan-out: a=%q b=%q", a.String(), b.String())
	}

	log.Error("both")
	if b.Len() == 0 {
		t.Error("error should reach second handler")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
