package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadengine/pkg/config"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		RequestsPerMinute: 3,
		RequestsPerHour:   100,
		RequestsPerDay:    1000,
		BurstSize:         5,
	}
}

func newTestLimiter(t *testing.T) (*Limiter, *MemoryStore, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore()
	store.SetClock(mock.Now)
	return NewLimiter(store, testConfig(), WithClock(mock)), store, mock
}

func TestCheckRateLimitMinuteWindow(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, retryAfter := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
		assert.True(t, allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 0, retryAfter)
	}

	allowed, retryAfter := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 60)
}

func TestCheckRateLimitWindowSlides(t *testing.T) {
	limiter, _, mock := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
		require.True(t, allowed)
	}
	allowed, _ := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
	require.False(t, allowed)

	// The oldest marker leaves the minute window after 61 seconds.
	mock.Add(61 * time.Second)
	allowed, retryAfter := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
	assert.True(t, allowed)
	assert.Equal(t, 0, retryAfter)
}

func TestCheckRateLimitOrgIsolation(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
		require.True(t, allowed)
	}
	allowed, _ := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
	require.False(t, allowed)

	// A different org has its own windows.
	allowed, _ = limiter.CheckRateLimit(ctx, "org-2", "llm_call")
	assert.True(t, allowed)
}

type failingStore struct{}

var errStoreDown = errors.New("store unreachable")

func (failingStore) ZRemRangeByScore(context.Context, string, float64, float64) error {
	return errStoreDown
}
func (failingStore) ZCard(context.Context, string) (int64, error) { return 0, errStoreDown }
func (failingStore) ZRangeWithScores(context.Context, string, int64, int64) ([]Member, error) {
	return nil, errStoreDown
}
func (failingStore) ZAdd(context.Context, string, float64, string) error { return errStoreDown }
func (failingStore) ZCount(context.Context, string, float64, float64) (int64, error) {
	return 0, errStoreDown
}
func (failingStore) Expire(context.Context, string, time.Duration) error      { return errStoreDown }
func (failingStore) HIncrBy(context.Context, string, string, int64) error     { return errStoreDown }
func (failingStore) HIncrByFloat(context.Context, string, string, float64) error {
	return errStoreDown
}
func (failingStore) HGet(context.Context, string, string) (string, bool, error) {
	return "", false, errStoreDown
}
func (failingStore) Del(context.Context, ...string) error { return errStoreDown }

func TestCheckRateLimitFailsOpen(t *testing.T) {
	limiter := NewLimiter(failingStore{}, testConfig())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		allowed, retryAfter := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
		assert.True(t, allowed)
		assert.Equal(t, 0, retryAfter)
	}
}

func TestRecordRequestFailuresDoNotPropagate(t *testing.T) {
	limiter := NewLimiter(failingStore{}, testConfig())
	// Must not panic or return anything.
	limiter.RecordRequest(context.Background(), "org-1", "llm_call", 100, 0.01, "openai")
}

func TestNilStoreDisablesLimits(t *testing.T) {
	limiter := NewLimiter(nil, testConfig())
	ctx := context.Background()

	allowed, retryAfter := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
	assert.True(t, allowed)
	assert.Equal(t, 0, retryAfter)

	_, err := limiter.GetCurrentUsage(ctx, "org-1", "llm_call")
	assert.Error(t, err)
}

func TestGetCurrentUsage(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _ := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
		require.True(t, allowed)
	}

	usage, err := limiter.GetCurrentUsage(ctx, "org-1", "llm_call")
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Minute.Current)
	assert.Equal(t, 3, usage.Minute.Limit)
	assert.Equal(t, 1, usage.Minute.Remaining)
	assert.Equal(t, 2, usage.Hour.Current)
	assert.Equal(t, 98, usage.Hour.Remaining)
	assert.Equal(t, 2, usage.Day.Current)
}

func TestRecordRequestAndUsageStats(t *testing.T) {
	limiter, _, mock := newTestLimiter(t)
	ctx := context.Background()

	limiter.RecordRequest(ctx, "org-1", "llm_call", 150, 0.002, "openai")
	limiter.RecordRequest(ctx, "org-1", "llm_call", 50, 0.001, "anthropic")

	// A request recorded yesterday still counts in a 7-day report.
	mock.Add(24 * time.Hour)
	limiter.RecordRequest(ctx, "org-1", "llm_call", 30, 0, "openai")

	stats, err := limiter.GetUsageStats(ctx, "org-1", "llm_call", 7)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 230, stats.TotalTokens)
	assert.InDelta(t, 0.003, stats.TotalCostUSD, 1e-9)
	assert.Equal(t, 7, stats.PeriodDays)
	assert.Equal(t, 2, stats.Requests["2026-03-01"])
	assert.Equal(t, 1, stats.Requests["2026-03-02"])
}

func TestResetLimits(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
		require.True(t, allowed)
	}
	allowed, _ := limiter.CheckRateLimit(ctx, "org-1", "llm_call")
	require.False(t, allowed)

	require.NoError(t, limiter.ResetLimits(ctx, "org-1", "llm_call"))

	allowed, _ = limiter.CheckRateLimit(ctx, "org-1", "llm_call")
	assert.True(t, allowed)
}

func TestDefaultOperationApplied(t *testing.T) {
	limiter, store, _ := newTestLimiter(t)
	ctx := context.Background()

	allowed, _ := limiter.CheckRateLimit(ctx, "org-1", "")
	require.True(t, allowed)

	count, err := store.ZCard(ctx, "ratelimit:org-1:llm_call:minute")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
