package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"leadengine/pkg/config"
	"leadengine/pkg/llm"
)

// Ollama calls a local or self-hosted Ollama server. A supplementary
// provider for deployments that want an offline fallback; not in the
// default priority list.
type Ollama struct {
	base
	client *api.Client
}

// NewOllama creates the Ollama adapter for the configured host.
func NewOllama(cfg config.LLMConfig) (*Ollama, error) {
	hostURL, err := url.Parse(cfg.OllamaHost)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.OllamaHost, err)
	}
	return &Ollama{
		base:   newBase(llm.ProviderOllama, cfg.OllamaModel, cfg),
		client: api.NewClient(hostURL, http.DefaultClient),
	}, nil
}

// Complete implements llm.Adapter.
func (a *Ollama) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Response, error) {
	return a.guard(ctx, func(ctx context.Context) (*llm.Response, error) {
		messages := make([]api.Message, 0, 2)
		if req.SystemPrompt != "" {
			messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
		}
		messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

		stream := false
		chatReq := &api.ChatRequest{
			Model:    a.model,
			Messages: messages,
			Stream:   &stream,
			Options: map[string]any{
				"temperature": req.Temperature,
				"num_predict": req.MaxTokens,
			},
		}

		var response api.ChatResponse
		start := time.Now()
		err := a.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			response = resp
			return nil
		})
		latency := time.Since(start)
		if err != nil {
			return nil, err
		}

		return &llm.Response{
			Content:          response.Message.Content,
			Provider:         llm.ProviderOllama,
			Model:            a.model,
			PromptTokens:     response.PromptEvalCount,
			CompletionTokens: response.EvalCount,
			LatencyMS:        latency.Milliseconds(),
		}, nil
	})
}

// Close implements llm.Adapter.
func (a *Ollama) Close() error {
	return nil
}
