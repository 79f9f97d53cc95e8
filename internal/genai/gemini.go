package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/session"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

type geminiCompleter struct {
	client *genai.Client
	model  string
}

func newGeminiCompleter(ctx context.Context, apiKey, model string) (*geminiCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is empty")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &geminiCompleter{client: client, model: model}, nil
}

func (g *geminiCompleter) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, t := range req.Turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == session.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", WrapError(fmt.Errorf("generate content: %w", err), ProviderGemini, 0)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", WrapError(errors.New("empty response"), ProviderGemini, 0)
	}
	if resp.UsageMetadata != nil {
		slog.DebugContext(ctx, "gemini completion",
			"model", g.model,
			"operation", req.Operation,
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return text, nil
}

func (g *geminiCompleter) Provider() Provider { return ProviderGemini }
func (g *geminiCompleter) Model() string      { return g.model }
func (g *geminiCompleter) Close() error       { return nil }
