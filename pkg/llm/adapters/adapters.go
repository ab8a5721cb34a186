// Package adapters implements the provider contract for each supported
// LLM vendor. All adapters share the breaker-gated call path in base and
// the error classifier in classify.go.
package adapters

import (
	"context"
	"fmt"

	"leadengine/pkg/config"
	"leadengine/pkg/llm"
	"leadengine/pkg/logx"
)

// base carries what every vendor adapter shares: identity, model, the
// circuit breaker, and a component logger.
type base struct {
	provider llm.Provider
	model    string
	breaker  *llm.CircuitBreaker
	logger   *logx.Logger
}

func newBase(provider llm.Provider, model string, cfg config.LLMConfig) base {
	return base{
		provider: provider,
		model:    model,
		breaker:  llm.NewCircuitBreaker(provider, cfg.FailureThreshold, cfg.RecoveryTimeout()),
		logger:   logx.NewLogger("llm." + string(provider)),
	}
}

// Provider implements llm.Adapter.
func (b *base) Provider() llm.Provider {
	return b.provider
}

// Breaker implements llm.Adapter.
func (b *base) Breaker() *llm.CircuitBreaker {
	return b.breaker
}

// guard runs one provider call behind the circuit breaker. The breaker is
// consulted before the call and told the outcome exactly once after.
func (b *base) guard(ctx context.Context, call func(context.Context) (*llm.Response, error)) (*llm.Response, error) {
	if !b.breaker.CanAttempt() {
		return nil, &llm.CircuitOpenError{Provider: b.provider}
	}

	resp, err := call(ctx)
	if err != nil {
		b.breaker.RecordFailure()
		return nil, classify(b.provider, err)
	}
	b.breaker.RecordSuccess()
	return resp, nil
}

// FromConfig builds one adapter per provider named in the priority list,
// in priority order. Providers without credentials are skipped with a
// warning; an empty result is an error.
func FromConfig(cfg config.LLMConfig) ([]llm.Adapter, error) {
	logger := logx.NewLogger("llm.adapters")
	var out []llm.Adapter

	for _, name := range cfg.ProviderPriority {
		switch name {
		case config.ProviderOpenAI:
			if cfg.OpenAIAPIKey == "" {
				logger.Warn("skipping openai adapter, no API key configured")
				continue
			}
			out = append(out, NewOpenAI(cfg))
		case config.ProviderAnthropic:
			if cfg.AnthropicAPIKey == "" {
				logger.Warn("skipping anthropic adapter, no API key configured")
				continue
			}
			out = append(out, NewAnthropic(cfg))
		case config.ProviderGemini:
			if cfg.GeminiAPIKey == "" {
				logger.Warn("skipping gemini adapter, no API key configured")
				continue
			}
			adapter, err := NewGemini(context.Background(), cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize gemini adapter: %w", err)
			}
			out = append(out, adapter)
		case config.ProviderOllama:
			if cfg.OllamaHost == "" {
				logger.Warn("skipping ollama adapter, no host configured")
				continue
			}
			adapter, err := NewOllama(cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize ollama adapter: %w", err)
			}
			out = append(out, adapter)
		case config.ProviderMock:
			out = append(out, NewMock(cfg))
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no provider adapter could be initialized from priority list %v", cfg.ProviderPriority)
	}
	return out, nil
}
