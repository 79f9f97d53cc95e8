// Package genai wraps the language-model capability the bot consumes:
// intent classification, open-domain answers and quiz generation.
//
// Gemini is reached through google.golang.org/genai; any OpenAI-compatible
// endpoint (Groq, a GigaChat proxy, OpenAI itself) through openai-go.
// Providers are chained: a transient error is retried with backoff, a quota
// error falls through to the next provider, a permanent error fails at once.
package genai

import (
	"context"
	"time"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/session"
)

// Provider identifies an LLM backend.
type Provider string

// Known providers.
const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

func (p Provider) String() string {
	return string(p)
}

// Intent is the coarse handling strategy of a free-text message.
type Intent string

// Intents the classifier may return.
const (
	IntentSearch    Intent = "SEARCH"
	IntentHelp      Intent = "HELP"
	IntentChallenge Intent = "CHALLENGE"
	IntentGeneral   Intent = "GENERAL"
)

// ParseIntent maps a model reply onto an Intent, defaulting to IntentGeneral.
func ParseIntent(reply string) (Intent, bool) {
	switch Intent(normalizeIntent(reply)) {
	case IntentSearch:
		return IntentSearch, true
	case IntentHelp:
		return IntentHelp, true
	case IntentChallenge:
		return IntentChallenge, true
	case IntentGeneral:
		return IntentGeneral, true
	}
	return IntentGeneral, false
}

// Quiz is a generated multiple-choice question.
type Quiz struct {
	Question string
	Correct  string
	Wrong    []string
}

// Assistant is the capability injected into the conversation router.
type Assistant interface {
	ClassifyIntent(ctx context.Context, text string) (Intent, error)
	Answer(ctx context.Context, question string, history []session.Turn) (string, error)
	GenerateQuiz(ctx context.Context, fact string) (*Quiz, error)
}

// Request is one chat completion call.
type Request struct {
	System      string
	Turns       []session.Turn
	Temperature float32
	MaxTokens   int
	Operation   string // metric label: intent, answer, quiz
}

// Completer is one provider/model pair.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() Provider
	Model() string
	Close() error
}

// MetricsRecorder receives LLM call outcomes. May be nil.
type MetricsRecorder interface {
	RecordLLM(provider, operation, status string, duration time.Duration)
	RecordLLMFallback(from, to, operation string)
}

// RetryConfig defines retry behavior for one completer.
// Uses AWS-recommended Full Jitter exponential backoff.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the retry policy used in production.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     3 * time.Second,
	}
}
