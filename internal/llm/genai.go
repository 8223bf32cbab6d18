package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// genaiBackend sends one GenerateContent call to the Gemini API.
type genaiBackend struct {
	client *genai.Client
	model  string
}

func newGenAIBackend(ctx context.Context, apiKey, model string) (*genaiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &genaiBackend{client: client, model: model}, nil
}

func (b *genaiBackend) Generate(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
		cfg.Temperature = genai.Ptr[float32](0)
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}
