package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"leadengine/pkg/cache"
	"leadengine/pkg/config"
	"leadengine/pkg/logx"
	"leadengine/pkg/metrics"
	"leadengine/pkg/utils"
)

// historyTurnLimit caps how many recent turns are rendered into prompts.
const historyTurnLimit = 10

// historyTokenBudget caps the rendered history length.
const historyTokenBudget = 1500

// priceReviewThreshold escalates unusually high asking prices to a human.
const priceReviewThreshold = 10_000_000

// Client orchestrates lead extraction and reply generation across a
// priority-ordered set of provider adapters. Construct one at process
// start and pass it to every consumer.
type Client struct {
	cfg      config.LLMConfig
	prompts  *PromptSet
	schema   *ExtractionSchema
	cache    cache.Cache
	recorder metrics.Recorder
	logger   *logx.Logger
	counter  *utils.TokenCounter

	adapters map[Provider]Adapter
	priority []Provider
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithCache attaches an extraction cache. Without one, every extraction
// hits a provider.
func WithCache(c cache.Cache) ClientOption {
	return func(cl *Client) { cl.cache = c }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r metrics.Recorder) ClientOption {
	return func(cl *Client) { cl.recorder = r }
}

// NewClient builds an orchestration client over the given adapters.
// Prompt templates and the extraction schema are loaded and validated
// here so misconfiguration fails at startup, not mid-conversation.
func NewClient(cfg config.LLMConfig, adapters []Adapter, opts ...ClientOption) (*Client, error) {
	prompts, err := LoadPrompts()
	if err != nil {
		return nil, err
	}
	schema, err := LoadExtractionSchema()
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		prompts:  prompts,
		schema:   schema,
		recorder: metrics.NopRecorder{},
		logger:   logx.NewLogger("llm"),
		adapters: make(map[Provider]Adapter, len(adapters)),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, a := range adapters {
		c.adapters[a.Provider()] = a
	}
	for _, name := range cfg.ProviderPriority {
		p := Provider(name)
		if _, ok := c.adapters[p]; ok {
			c.priority = append(c.priority, p)
		}
	}
	if len(c.priority) == 0 {
		return nil, fmt.Errorf("no adapter registered for any provider in priority list %v", cfg.ProviderPriority)
	}

	if counter, err := utils.NewTokenCounter(); err == nil {
		c.counter = counter
	} else {
		c.logger.Warn("token counter unavailable, using character estimation: %v", err)
	}

	c.logger.Info("client initialized with providers: %v", c.priority)
	return c, nil
}

// ExtractLeadInfo extracts structured lead information from the latest
// message. It never returns an error: total provider failure or a
// malformed response yields a schema-shaped fallback result.
func (c *Client) ExtractLeadInfo(ctx context.Context, message, sender string, history []Turn, leadID string) *ExtractionResult {
	if leadID != "" && c.cache != nil {
		if result := c.cachedExtraction(ctx, leadID, message); result != nil {
			return result
		}
	}

	historyText := c.formatHistory(history)
	if historyText == "" {
		historyText = "No prior conversation"
	}

	prompt, err := c.prompts.Extraction(historyText, sender, message)
	if err != nil {
		c.logger.Error("extraction prompt render failed: %v", err)
		return c.fallbackExtraction(err.Error())
	}

	resp, err := c.completeWithFallback(ctx, CompletionRequest{
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   c.cfg.MaxTokens,
	}, "extract_lead_info")
	if err != nil {
		c.logger.Error("extraction failed, all providers unavailable: %v", err)
		return c.fallbackExtraction(err.Error())
	}

	data := parseJSONSafely(resp.Content)
	if data == nil {
		c.logger.Error("failed to parse extraction JSON from %s", resp.Provider)
		return c.fallbackExtraction("invalid JSON response")
	}

	valid, validationErrors := c.schema.Validate(data)
	if valid && leadID != "" && c.cache != nil {
		c.saveExtraction(ctx, leadID, message, data)
	}

	return &ExtractionResult{
		Data:             data,
		Validated:        valid,
		ValidationErrors: validationErrors,
		Response:         resp,
	}
}

// GenerateResponse produces the next reply to a seller. Escalation
// triggers and detail confirmation short-circuit without any provider
// call; total provider failure yields a context-aware canned reply. It
// never returns an error.
func (c *Client) GenerateResponse(ctx context.Context, message, leadStage, infoSummary string, history []Turn, extracted map[string]any) *Response {
	missingFields := identifyMissingFields(extracted)

	if escalation := checkEscalationTriggers(message, extracted); escalation != "" {
		c.logger.Info("escalating to human: %s", escalation)
		return escalationResponse(escalation)
	}

	if shouldConfirmDetails(extracted) {
		return confirmationResponse(extracted)
	}

	if extracted != nil {
		infoSummary = BuildInfoSummary(extracted)
	} else if infoSummary == "" {
		infoSummary = "No information gathered yet"
	}

	historyText := c.formatHistory(history)
	if historyText == "" {
		historyText = "No prior conversation"
	}

	prompt, err := c.prompts.Reply(leadStage, infoSummary, historyText, message)
	if err != nil {
		c.logger.Error("reply prompt render failed: %v", err)
		return smartFallbackResponse(message, extracted, missingFields)
	}

	resp, err := c.completeWithFallback(ctx, CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: c.prompts.System(),
		Temperature:  0.7,
		MaxTokens:    300,
	}, "generate_response")
	if err != nil {
		c.logger.Warn("reply generation failed, using smart fallback: %v", err)
		return smartFallbackResponse(message, extracted, missingFields)
	}
	return resp
}

// SummarizeLead produces a short human-readable lead summary for review.
// Unlike the conversational operations it propagates total failure.
func (c *Client) SummarizeLead(ctx context.Context, history []Turn, extracted map[string]any) (string, error) {
	extractedJSON, err := json.MarshalIndent(extracted, "", "  ")
	if err != nil {
		extractedJSON = []byte("{}")
	}

	historyText := c.formatHistory(history)
	if historyText == "" {
		historyText = "No prior conversation"
	}

	prompt, err := c.prompts.Summary(string(extractedJSON), historyText)
	if err != nil {
		return "", err
	}

	resp, err := c.completeWithFallback(ctx, CompletionRequest{
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   400,
	}, "summarize_lead")
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// completeWithFallback tries each provider in priority order and returns
// the first success. Provider-local errors are collected; exhausting the
// list yields AllProvidersFailedError.
func (c *Client) completeWithFallback(ctx context.Context, req CompletionRequest, operation string) (*Response, error) {
	var failures []ProviderFailure

	for _, provider := range c.priority {
		adapter := c.adapters[provider]

		c.logger.Debug("attempting completion with %s", provider)
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
		start := time.Now()
		resp, err := adapter.Complete(attemptCtx, req)
		elapsed := time.Since(start)
		cancel()

		if err == nil {
			c.logger.Info("completion succeeded with %s (latency: %dms, tokens: %d)",
				provider, resp.LatencyMS, resp.TotalTokens())
			c.recorder.ObserveRequest(string(provider), operation,
				resp.PromptTokens, resp.CompletionTokens, true, "", elapsed)
			return resp, nil
		}

		switch {
		case IsCircuitOpen(err):
			c.logger.Warn("%s circuit breaker open, trying next provider", provider)
			c.recorder.IncCircuitOpen(string(provider))
		default:
			if pae, ok := IsProviderAPIError(err); ok {
				c.logger.Warn("%s failed: %v, trying next provider", provider, err)
				c.recorder.ObserveRequest(string(provider), operation, 0, 0, false, pae.Kind.String(), elapsed)
			} else {
				// Treated as a provider-local fault, never client-wide.
				c.logger.Error("unexpected error from %s: %v", provider, err)
				c.recorder.ObserveRequest(string(provider), operation, 0, 0, false, "unexpected", elapsed)
			}
		}
		failures = append(failures, ProviderFailure{Provider: provider, Err: err})
	}

	return nil, &AllProvidersFailedError{Failures: failures}
}

// ProviderHealth reports each adapter's breaker status.
func (c *Client) ProviderHealth() map[Provider]ProviderStatus {
	health := make(map[Provider]ProviderStatus, len(c.adapters))
	for provider, adapter := range c.adapters {
		health[provider] = adapter.Breaker().Status()
	}
	return health
}

// ResetCircuitBreakers forces every breaker back to healthy. Admin
// operation.
func (c *Client) ResetCircuitBreakers() {
	for _, adapter := range c.adapters {
		adapter.Breaker().Reset()
	}
	c.logger.Info("all circuit breakers reset")
}

// Close releases all adapter connections.
func (c *Client) Close() error {
	c.logger.Info("closing client and all adapters")
	var firstErr error
	for provider, adapter := range c.adapters {
		if err := adapter.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s adapter: %w", provider, err)
		}
	}
	return firstErr
}

// formatHistory renders the most recent turns as "role: content" lines,
// bounded by the token budget.
func (c *Client) formatHistory(history []Turn) string {
	if len(history) == 0 {
		return ""
	}
	recent := history
	if len(recent) > historyTurnLimit {
		recent = recent[len(recent)-historyTurnLimit:]
	}

	lines := make([]string, 0, len(recent))
	for _, turn := range recent {
		role := turn.Role
		if role == "" {
			role = "unknown"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, turn.Content))
	}
	text := strings.Join(lines, "\n")
	if c.counter != nil {
		text = c.counter.TruncateToTokenLimit(text, historyTokenBudget)
	}
	return text
}

// cachedExtraction returns a previously validated extraction, or nil.
// Cache faults are logged and treated as misses.
func (c *Client) cachedExtraction(ctx context.Context, leadID, message string) *ExtractionResult {
	key := extractionCacheKey(leadID, message)
	cached, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed: %v", err)
		return nil
	}
	if !found {
		c.recorder.IncCacheHit(false)
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cached), &data); err != nil {
		c.logger.Warn("cache entry corrupt for lead %s: %v", leadID, err)
		return nil
	}

	c.logger.Info("cache hit for lead %s", leadID)
	c.recorder.IncCacheHit(true)
	return &ExtractionResult{
		Data:      data,
		Validated: true,
		Response: &Response{
			Content: cached,
			Model:   "cached",
			Cached:  true,
		},
	}
}

// saveExtraction writes a validated extraction through to the cache.
// Failures are logged, never propagated.
func (c *Client) saveExtraction(ctx context.Context, leadID, message string, data map[string]any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	key := extractionCacheKey(leadID, message)
	if err := c.cache.SetEx(ctx, key, string(payload), c.cfg.CacheTTL()); err != nil {
		c.logger.Warn("cache write failed: %v", err)
		return
	}
	c.logger.Debug("cached extraction for lead %s", leadID)
}

func extractionCacheKey(leadID, message string) string {
	digest := sha256.Sum256([]byte(message))
	return fmt.Sprintf("extraction:%s:%s", leadID, hex.EncodeToString(digest[:])[:16])
}

// parseJSONSafely parses a provider response into a map, stripping
// markdown code fences if present.
func parseJSONSafely(content string) map[string]any {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
		content = strings.ReplaceAll(content, "```json", "")
		content = strings.ReplaceAll(content, "```", "")
		content = strings.TrimSpace(content)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil
	}
	return data
}
