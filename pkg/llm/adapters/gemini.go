package adapters

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"leadengine/pkg/config"
	"leadengine/pkg/llm"
)

// Gemini calls the Google Gemini API.
type Gemini struct {
	base
	client *genai.Client
}

// NewGemini creates the Gemini adapter. Client construction can fail, so
// unlike the other vendors it returns an error.
func NewGemini(ctx context.Context, cfg config.LLMConfig) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{
		base:   newBase(llm.ProviderGemini, cfg.GeminiModel, cfg),
		client: client,
	}, nil
}

// Complete implements llm.Adapter.
func (a *Gemini) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Response, error) {
	return a.guard(ctx, func(ctx context.Context) (*llm.Response, error) {
		temperature := float32(req.Temperature)
		genCfg := &genai.GenerateContentConfig{
			Temperature: &temperature,
		}
		if req.MaxTokens > 0 {
			genCfg.MaxOutputTokens = int32(req.MaxTokens)
		}
		if req.SystemPrompt != "" {
			genCfg.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: req.SystemPrompt}},
			}
		}

		start := time.Now()
		result, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(req.Prompt), genCfg)
		latency := time.Since(start)
		if err != nil {
			return nil, err
		}
		if result == nil || result.Text() == "" {
			return nil, fmt.Errorf("gemini returned an empty response")
		}

		resp := &llm.Response{
			Content:   result.Text(),
			Provider:  llm.ProviderGemini,
			Model:     a.model,
			LatencyMS: latency.Milliseconds(),
		}
		if result.UsageMetadata != nil {
			resp.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
			resp.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
		}
		return resp, nil
	})
}

// Close implements llm.Adapter.
func (a *Gemini) Close() error {
	return nil
}
