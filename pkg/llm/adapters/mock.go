package adapters

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"leadengine/pkg/config"
	"leadengine/pkg/llm"
)

// mockLatency is the simulated API latency per call.
const mockLatency = 50 * time.Millisecond

// Mock is a deterministic adapter for tests and local development. Canned
// responses are matched by substring against the prompt; otherwise an
// extraction-shaped or conversational default is returned.
type Mock struct {
	base
	responses map[string]string
	callCount atomic.Int64
	latency   time.Duration
}

// NewMock creates the mock adapter with default responses.
func NewMock(cfg config.LLMConfig) *Mock {
	return &Mock{
		base:    newBase(llm.ProviderMock, "mock-model-v1", cfg),
		latency: mockLatency,
	}
}

// SetResponses installs canned responses keyed by prompt substring.
func (a *Mock) SetResponses(responses map[string]string) {
	a.responses = responses
}

// SetLatency overrides the simulated latency. Test hook.
func (a *Mock) SetLatency(d time.Duration) {
	a.latency = d
}

// CallCount reports how many completions were attempted.
func (a *Mock) CallCount() int64 {
	return a.callCount.Load()
}

// Complete implements llm.Adapter.
func (a *Mock) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Response, error) {
	return a.guard(ctx, func(ctx context.Context) (*llm.Response, error) {
		a.callCount.Add(1)

		select {
		case <-time.After(a.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		lower := strings.ToLower(req.Prompt)
		for keyword, response := range a.responses {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				return a.buildResponse(response), nil
			}
		}

		if strings.Contains(lower, "extract") {
			return a.buildResponse(defaultExtractionJSON), nil
		}
		return a.buildResponse("Thank you for reaching out! I'd be happy to help. " +
			"Can you tell me more about your property?"), nil
	})
}

func (a *Mock) buildResponse(content string) *llm.Response {
	return &llm.Response{
		Content:          content,
		Provider:         llm.ProviderMock,
		Model:            a.model,
		PromptTokens:     100,
		CompletionTokens: len(strings.Fields(content)) * 2,
		LatencyMS:        a.latency.Milliseconds(),
	}
}

// Close implements llm.Adapter.
func (a *Mock) Close() error {
	return nil
}

const defaultExtractionJSON = `{
  "contact": {
    "name": null,
    "phone": null,
    "email": null,
    "preferred_contact_method": null
  },
  "property": {
    "address": null,
    "city": null,
    "state": null,
    "zip_code": null,
    "property_type": null,
    "bedrooms": null,
    "bathrooms": null,
    "square_feet": null,
    "year_built": null,
    "condition": null
  },
  "situation": {
    "motivation": null,
    "urgency": null,
    "occupancy_status": null,
    "mortgage_status": null,
    "asking_price": null,
    "repairs_needed": null,
    "open_to_cash_offer": null
  },
  "intent": {
    "classification": "needs_more_info",
    "confidence": 0.5,
    "next_action": "follow_up"
  },
  "metadata": {
    "language": "en",
    "sentiment": "neutral",
    "contains_pii": false,
    "extraction_notes": null
  }
}`
