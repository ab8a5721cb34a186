// Package llm implements the multi-provider orchestration core: typed
// provider adapters behind a uniform contract, per-provider circuit
// breakers, and a client that extracts structured lead data and generates
// conversational replies with priority-ordered provider fallback.
package llm

import (
	"context"
	"time"
)

// Provider identifies an LLM vendor.
type Provider string

// Supported providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
	ProviderMock      Provider = "mock"
)

// ProviderStatus is the health classification maintained by a provider's
// circuit breaker.
type ProviderStatus int

const (
	// StatusHealthy is the initial state, requests flow normally.
	StatusHealthy ProviderStatus = iota
	// StatusDegraded allows trial recovery probes after failures.
	StatusDegraded
	// StatusFailed blocks requests until the recovery timeout elapses.
	StatusFailed
)

func (s ProviderStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CompletionRequest carries one prompt to a provider adapter.
type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Response is the result of one provider call.
type Response struct {
	Content          string         `json:"content"`
	Provider         Provider       `json:"provider"`
	Model            string         `json:"model"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	LatencyMS        int64          `json:"latency_ms"`
	Cached           bool           `json:"cached"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// TotalTokens returns prompt plus completion tokens.
func (r *Response) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// ExtractionResult is the output of ExtractLeadInfo. Validation failures
// are carried as data, never as an error.
type ExtractionResult struct {
	Data             map[string]any `json:"data"`
	Validated        bool           `json:"validated"`
	ValidationErrors []string       `json:"validation_errors,omitempty"`
	Response         *Response      `json:"response,omitempty"`
}

// Turn is one message of a conversation history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Adapter is the uniform provider contract. Implementations must consult
// their breaker before any network call and report the outcome to it
// exactly once per attempt.
type Adapter interface {
	Provider() Provider
	Complete(ctx context.Context, req CompletionRequest) (*Response, error)
	Breaker() *CircuitBreaker
	Close() error
}
