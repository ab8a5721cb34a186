package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"leadengine/pkg/config"
	"leadengine/pkg/llm"
)

// OpenAI calls the OpenAI chat completions API.
type OpenAI struct {
	base
	client openai.Client
}

// NewOpenAI creates the OpenAI adapter.
func NewOpenAI(cfg config.LLMConfig) *OpenAI {
	return &OpenAI{
		base:   newBase(llm.ProviderOpenAI, cfg.OpenAIModel, cfg),
		client: openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey)),
	}
}

// Complete implements llm.Adapter.
func (a *OpenAI) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Response, error) {
	return a.guard(ctx, func(ctx context.Context) (*llm.Response, error) {
		messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
		if req.SystemPrompt != "" {
			messages = append(messages, openai.SystemMessage(req.SystemPrompt))
		}
		messages = append(messages, openai.UserMessage(req.Prompt))

		params := openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(a.model),
			Messages: messages,
		}
		if req.Temperature > 0 {
			params.Temperature = openai.Float(req.Temperature)
		}
		if req.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(req.MaxTokens))
		}

		start := time.Now()
		completion, err := a.client.Chat.Completions.New(ctx, params)
		latency := time.Since(start)
		if err != nil {
			return nil, err
		}
		if len(completion.Choices) == 0 {
			return nil, fmt.Errorf("openai returned no choices")
		}

		return &llm.Response{
			Content:          completion.Choices[0].Message.Content,
			Provider:         llm.ProviderOpenAI,
			Model:            a.model,
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			LatencyMS:        latency.Milliseconds(),
		}, nil
	})
}

// Close implements llm.Adapter. The SDK client holds no long-lived
// connections beyond the standard HTTP transport.
func (a *OpenAI) Close() error {
	return nil
}
