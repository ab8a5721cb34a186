package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"leadengine/pkg/config"
	"leadengine/pkg/llm"
)

// Anthropic calls the Anthropic messages API.
type Anthropic struct {
	base
	client anthropic.Client
}

// NewAnthropic creates the Anthropic adapter.
func NewAnthropic(cfg config.LLMConfig) *Anthropic {
	return &Anthropic{
		base:   newBase(llm.ProviderAnthropic, cfg.AnthropicModel, cfg),
		client: anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
	}
}

// Complete implements llm.Adapter.
func (a *Anthropic) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Response, error) {
	return a.guard(ctx, func(ctx context.Context) (*llm.Response, error) {
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 1024
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
			},
		}
		if req.Temperature > 0 {
			params.Temperature = anthropic.Float(req.Temperature)
		}
		if req.SystemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{
				Text: req.SystemPrompt,
				Type: "text",
			}}
		}

		start := time.Now()
		resp, err := a.client.Messages.New(ctx, params)
		latency := time.Since(start)
		if err != nil {
			return nil, err
		}
		if resp == nil || len(resp.Content) == 0 {
			return nil, fmt.Errorf("anthropic returned an empty response")
		}

		var content string
		for i := range resp.Content {
			if resp.Content[i].Type == "text" {
				content += resp.Content[i].AsText().Text
			}
		}

		return &llm.Response{
			Content:          content,
			Provider:         llm.ProviderAnthropic,
			Model:            a.model,
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			LatencyMS:        latency.Milliseconds(),
		}, nil
	})
}

// Close implements llm.Adapter.
func (a *Anthropic) Close() error {
	return nil
}
