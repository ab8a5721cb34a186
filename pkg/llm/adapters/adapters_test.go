package adapters

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadengine/pkg/config"
	"leadengine/pkg/llm"
)

func testLLMConfig() config.LLMConfig {
	cfg := config.Default().LLM
	cfg.FailureThreshold = 2
	cfg.RecoveryTimeoutSeconds = 60
	return cfg
}

func TestMockDefaultExtractionResponse(t *testing.T) {
	mock := NewMock(testLLMConfig())
	mock.SetLatency(time.Millisecond)

	resp, err := mock.Complete(context.Background(), llm.CompletionRequest{
		Prompt: "Extract all available information from this message",
	})
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderMock, resp.Provider)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(resp.Content), "{"))
	assert.Contains(t, resp.Content, `"classification": "needs_more_info"`)
	assert.Equal(t, int64(1), mock.CallCount())
}

func TestMockConversationalDefault(t *testing.T) {
	mock := NewMock(testLLMConfig())
	mock.SetLatency(time.Millisecond)

	resp, err := mock.Complete(context.Background(), llm.CompletionRequest{
		Prompt: "Generate your response to the seller",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "property")
}

func TestMockCannedResponseBySubstring(t *testing.T) {
	mock := NewMock(testLLMConfig())
	mock.SetLatency(time.Millisecond)
	mock.SetResponses(map[string]string{
		"lekki": "Custom canned reply",
	})

	resp, err := mock.Complete(context.Background(), llm.CompletionRequest{
		Prompt: "The house is in Lekki, Lagos",
	})
	require.NoError(t, err)
	assert.Equal(t, "Custom canned reply", resp.Content)
}

func TestGuardRejectsWhenBreakerOpen(t *testing.T) {
	mock := NewMock(testLLMConfig())
	mock.SetLatency(time.Millisecond)

	// Trip the breaker manually (threshold is 2).
	mock.Breaker().RecordFailure()
	mock.Breaker().RecordFailure()
	require.Equal(t, llm.StatusFailed, mock.Breaker().Status())

	before := mock.CallCount()
	_, err := mock.Complete(context.Background(), llm.CompletionRequest{Prompt: "hello"})
	require.Error(t, err)
	assert.True(t, llm.IsCircuitOpen(err))
	// The breaker gate rejects before the call is attempted.
	assert.Equal(t, before, mock.CallCount())
}

func TestGuardRecordsSuccess(t *testing.T) {
	mock := NewMock(testLLMConfig())
	mock.SetLatency(time.Millisecond)

	mock.Breaker().RecordFailure()
	require.Equal(t, 1, mock.Breaker().FailureCount())

	_, err := mock.Complete(context.Background(), llm.CompletionRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 0, mock.Breaker().FailureCount())
	assert.Equal(t, llm.StatusHealthy, mock.Breaker().Status())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   llm.ErrorKind
		wantStatus int
	}{
		{"auth status", errors.New("request failed, status code: 401 unauthorized"), llm.ErrorKindAuth, 401},
		{"rate limit status", errors.New("request failed, status code: 429 too many requests"), llm.ErrorKindRateLimit, 429},
		{"server error", errors.New("request failed, status code: 503 unavailable"), llm.ErrorKindAPI, 503},
		{"timeout text", errors.New("dial tcp: i/o timeout"), llm.ErrorKindTransport, 0},
		{"connection text", errors.New("connection refused"), llm.ErrorKindTransport, 0},
		{"quota text", errors.New("quota exceeded for project"), llm.ErrorKindRateLimit, 0},
		{"api key text", errors.New("invalid api key provided"), llm.ErrorKindAuth, 0},
		{"generic", errors.New("something odd happened"), llm.ErrorKindAPI, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(llm.ProviderOpenAI, tt.err)
			pae, ok := llm.IsProviderAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, pae.Kind)
			assert.Equal(t, tt.wantStatus, pae.StatusCode)
			assert.Equal(t, llm.ProviderOpenAI, pae.Provider)
		})
	}
}

func TestClassifyContextErrors(t *testing.T) {
	err := classify(llm.ProviderGemini, context.DeadlineExceeded)
	pae, ok := llm.IsProviderAPIError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrorKindTransport, pae.Kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	orig := &llm.ProviderAPIError{Provider: llm.ProviderMock, Kind: llm.ErrorKindAuth}
	assert.Equal(t, orig, classify(llm.ProviderMock, error(orig)))
}

func TestFromConfigSkipsUnconfiguredProviders(t *testing.T) {
	cfg := testLLMConfig()
	cfg.OpenAIAPIKey = ""
	cfg.AnthropicAPIKey = ""
	cfg.GeminiAPIKey = ""
	cfg.ProviderPriority = []string{"openai", "anthropic", "gemini", "mock"}

	adapters, err := FromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, llm.ProviderMock, adapters[0].Provider())
}

func TestFromConfigKeepsPriorityOrder(t *testing.T) {
	cfg := testLLMConfig()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.AnthropicAPIKey = "sk-ant-test"
	cfg.GeminiAPIKey = ""
	cfg.ProviderPriority = []string{"anthropic", "openai", "mock"}

	adapters, err := FromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, adapters, 3)
	assert.Equal(t, llm.ProviderAnthropic, adapters[0].Provider())
	assert.Equal(t, llm.ProviderOpenAI, adapters[1].Provider())
	assert.Equal(t, llm.ProviderMock, adapters[2].Provider())
}

func TestFromConfigErrorsWhenNothingConfigured(t *testing.T) {
	cfg := testLLMConfig()
	cfg.OpenAIAPIKey = ""
	cfg.ProviderPriority = []string{"openai"}

	_, err := FromConfig(cfg)
	assert.Error(t, err)
}
