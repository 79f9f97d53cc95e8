package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/session"
)

var errUnavailable = fmt.Errorf("no LLM provider configured: %w", domerrors.ErrCapabilityUnavailable)

// Client implements Assistant on top of a provider chain.
type Client struct {
	chain *Chain
}

var _ Assistant = (*Client)(nil)

// NewClient wraps chain.
func NewClient(chain *Chain) *Client {
	return &Client{chain: chain}
}

// New builds the provider chain from cfg in cfg.LLMProviders order.
// Providers without an API key are skipped; with none left the client
// reports ErrCapabilityUnavailable on every call.
func New(ctx context.Context, cfg *config.Config, metrics MetricsRecorder) (*Client, error) {
	var completers []Completer
	for _, name := range cfg.LLMProviders {
		switch Provider(name) {
		case ProviderGemini:
			if cfg.GeminiAPIKey == "" {
				continue
			}
			g, err := newGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				return nil, err
			}
			completers = append(completers, g)
		case ProviderOpenAI:
			if cfg.OpenAIAPIKey == "" {
				continue
			}
			o, err := newOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
			if err != nil {
				return nil, err
			}
			completers = append(completers, o)
		default:
			slog.WarnContext(ctx, "unknown LLM provider ignored", "provider", name)
		}
	}
	return NewClient(NewChain(completers, DefaultRetryConfig(), metrics)), nil
}

// Enabled reports whether any provider is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.chain.Len() > 0
}

// Close releases provider clients.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.chain.Close()
}

// ClassifyIntent maps text onto one of the four intents. An unexpected
// reply yields IntentGeneral without error.
func (c *Client) ClassifyIntent(ctx context.Context, text string) (Intent, error) {
	reply, err := c.chain.Complete(ctx, Request{
		System:      intentSystemPrompt,
		Turns:       []session.Turn{{Role: session.RoleUser, Content: text}},
		Temperature: 0.1,
		MaxTokens:   10,
		Operation:   "intent",
	})
	if err != nil {
		return IntentGeneral, err
	}
	intent, ok := ParseIntent(reply)
	if !ok {
		slog.WarnContext(ctx, "unexpected intent reply", "reply", reply)
	}
	return intent, nil
}

// Answer replies to question in the eco-expert persona, given the prior turns.
func (c *Client) Answer(ctx context.Context, question string, history []session.Turn) (string, error) {
	turns := make([]session.Turn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, session.Turn{Role: session.RoleUser, Content: question})
	return c.chain.Complete(ctx, Request{
		System:      answerSystemPrompt,
		Turns:       turns,
		Temperature: 0.7,
		Operation:   "answer",
	})
}

// GenerateQuiz builds a multiple-choice question from fact.
func (c *Client) GenerateQuiz(ctx context.Context, fact string) (*Quiz, error) {
	reply, err := c.chain.Complete(ctx, Request{
		Turns:       []session.Turn{{Role: session.RoleUser, Content: QuizPrompt(fact)}},
		Temperature: 0.7,
		Operation:   "quiz",
	})
	if err != nil {
		return nil, err
	}
	return ParseQuiz(reply)
}

func normalizeIntent(reply string) string {
	reply = strings.TrimFunc(reply, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if i := strings.IndexFunc(reply, unicode.IsSpace); i > 0 {
		reply = reply[:i]
	}
	return strings.ToUpper(reply)
}
