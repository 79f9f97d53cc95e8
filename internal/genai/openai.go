package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/session"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "llama-3.3-70b-versatile"

// openaiCompleter talks to any OpenAI-compatible chat endpoint.
type openaiCompleter struct {
	client openai.Client
	model  string
}

func newOpenAICompleter(apiKey, baseURL, model string) (*openaiCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is empty")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openaiCompleter{client: openai.NewClient(opts...), model: model}, nil
}

func (o *openaiCompleter) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, t := range req.Turns {
		if t.Role == session.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(t.Content))
		} else {
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       o.model,
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", WrapError(fmt.Errorf("chat completion: %w", err), ProviderOpenAI, 0)
	}
	if len(resp.Choices) == 0 {
		return "", WrapError(errors.New("no choices in response"), ProviderOpenAI, 0)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", WrapError(errors.New("empty response"), ProviderOpenAI, 0)
	}
	slog.DebugContext(ctx, "openai completion",
		"model", o.model,
		"operation", req.Operation,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

func (o *openaiCompleter) Provider() Provider { return ProviderOpenAI }
func (o *openaiCompleter) Model() string      { return o.model }
func (o *openaiCompleter) Close() error       { return nil }
