package llm

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// GeminiBackend drives Google's Generative AI SDK in JSON mode.
type GeminiBackend struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiBackend creates a Gemini backend.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger := slog.Default().With("component", "gemini", "model", model)
	logger.Info("gemini backend initialized")

	return &GeminiBackend{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// Generate sends the prompt with Gemini's native JSON output mode.
func (b *GeminiBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	var systemInstruction *genai.Content
	if req.System != "" {
		systemInstruction = genai.Text(req.System)[0]
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       ptrFloat32(0.1),
		ResponseMIMEType:  "application/json",
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(req.User), genConfig)
	if err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no content parts")
	}

	text := candidate.Content.Parts[0].Text

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	b.logger.Debug("gemini completion",
		"prompt_length", len(req.User),
		"response_length", len(text),
		"tokens", tokens,
	)

	return &Response{
		Text:       text,
		Model:      b.model,
		TokensUsed: tokens,
	}, nil
}

func ptrFloat32(f float32) *float32 {
	return &f
}
