package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"leadengine/pkg/config"
	"leadengine/pkg/logx"
	"leadengine/pkg/metrics"
)

// DefaultOperation is the operation label applied when callers do not
// distinguish request classes.
const DefaultOperation = "llm_call"

// usageRetention is how long per-day usage hashes are kept.
const usageRetention = 90 * 24 * time.Hour

type window struct {
	granularity string
	limit       int
	span        time.Duration
}

// WindowUsage reports the live count for one granularity.
type WindowUsage struct {
	Current   int `json:"current"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// Usage reports live counts across all three windows.
type Usage struct {
	Minute WindowUsage `json:"minute"`
	Hour   WindowUsage `json:"hour"`
	Day    WindowUsage `json:"day"`
}

// UsageStats aggregates recorded usage over a trailing number of days.
type UsageStats struct {
	OrgID         string             `json:"org_id"`
	Operation     string             `json:"operation"`
	PeriodDays    int                `json:"period_days"`
	Requests      map[string]int     `json:"requests"`
	Tokens        map[string]int     `json:"tokens"`
	CostUSD       map[string]float64 `json:"cost_usd"`
	TotalRequests int                `json:"total_requests"`
	TotalTokens   int                `json:"total_tokens"`
	TotalCostUSD  float64            `json:"total_cost_usd"`
}

// Limiter enforces sliding-window request quotas per organization and
// operation. Checks consume quota: each allowed CheckRateLimit adds a
// marker to every window it passed.
type Limiter struct {
	store    Store
	cfg      config.RateLimitConfig
	clock    clock.Clock
	logger   *logx.Logger
	recorder metrics.Recorder
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock injects a time source, used by tests.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithRecorder injects a metrics recorder for throttle events.
func WithRecorder(r metrics.Recorder) Option {
	return func(l *Limiter) { l.recorder = r }
}

// NewLimiter creates a rate limiter over the given store. A nil store
// disables enforcement entirely: every check is allowed.
func NewLimiter(store Store, cfg config.RateLimitConfig, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		cfg:      cfg,
		clock:    clock.New(),
		logger:   logx.NewLogger("ratelimit"),
		recorder: metrics.NopRecorder{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if store == nil {
		l.logger.Warn("rate limiter initialized without a store, limits disabled")
	} else {
		l.logger.Info("rate limiter initialized: %d/min, %d/hour, %d/day",
			cfg.RequestsPerMinute, cfg.RequestsPerHour, cfg.RequestsPerDay)
	}
	return l
}

func (l *Limiter) windows() [3]window {
	return [3]window{
		{"minute", l.cfg.RequestsPerMinute, time.Minute},
		{"hour", l.cfg.RequestsPerHour, time.Hour},
		{"day", l.cfg.RequestsPerDay, 24 * time.Hour},
	}
}

func windowKey(orgID, operation, granularity string) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s", orgID, operation, granularity)
}

func usageKey(orgID, operation, kind string) string {
	return fmt.Sprintf("usage:%s:%s:%s", orgID, operation, kind)
}

// CheckRateLimit reports whether a request is allowed. Windows are checked
// strictly from minute to hour to day; the first violated ceiling rejects
// the request with the seconds until its oldest marker leaves the window
// (minimum 1). Store failures fail open.
func (l *Limiter) CheckRateLimit(ctx context.Context, orgID, operation string) (bool, int) {
	if l.store == nil {
		return true, 0
	}
	if operation == "" {
		operation = DefaultOperation
	}

	for _, w := range l.windows() {
		allowed, retryAfter, err := l.checkWindow(ctx, windowKey(orgID, operation, w.granularity), w.limit, w.span)
		if err != nil {
			l.logger.Error("rate limit check failed for org=%s: %v", orgID, err)
			return true, 0
		}
		if !allowed {
			l.logger.Warn("rate limit exceeded for org=%s: %d/%s", orgID, w.limit, w.granularity)
			l.recorder.IncThrottle(orgID, w.granularity)
			return false, retryAfter
		}
	}
	return true, 0
}

// checkWindow runs one sliding-window check: prune stale markers, count,
// and on success record this request in the window.
func (l *Limiter) checkWindow(ctx context.Context, key string, limit int, span time.Duration) (bool, int, error) {
	now := float64(l.clock.Now().UnixNano()) / float64(time.Second)
	windowStart := now - span.Seconds()

	if err := l.store.ZRemRangeByScore(ctx, key, 0, windowStart); err != nil {
		return false, 0, err
	}

	count, err := l.store.ZCard(ctx, key)
	if err != nil {
		return false, 0, err
	}

	if count >= int64(limit) {
		oldest, err := l.store.ZRangeWithScores(ctx, key, 0, 0)
		if err != nil {
			return false, 0, err
		}
		if len(oldest) > 0 {
			retryAfter := int(oldest[0].Score + span.Seconds() - now)
			if retryAfter < 1 {
				retryAfter = 1
			}
			return false, retryAfter, nil
		}
		return false, int(span.Seconds()), nil
	}

	if err := l.store.ZAdd(ctx, key, now, uuid.NewString()); err != nil {
		return false, 0, err
	}
	if err := l.store.Expire(ctx, key, span+time.Minute); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}

// RecordRequest tracks usage for analytics after a successful provider
// call. It never enforces limits and its failures never propagate.
func (l *Limiter) RecordRequest(ctx context.Context, orgID, operation string, tokensUsed int, costUSD float64, provider string) {
	if l.store == nil {
		return
	}
	if operation == "" {
		operation = DefaultOperation
	}

	dateKey := l.clock.Now().UTC().Format("2006-01-02")
	keys := []string{usageKey(orgID, operation, "requests")}

	if err := l.store.HIncrBy(ctx, keys[0], dateKey, 1); err != nil {
		l.logger.Error("failed to record request for org=%s: %v", orgID, err)
		return
	}
	if tokensUsed > 0 {
		key := usageKey(orgID, operation, "tokens")
		keys = append(keys, key)
		if err := l.store.HIncrBy(ctx, key, dateKey, int64(tokensUsed)); err != nil {
			l.logger.Error("failed to record tokens for org=%s: %v", orgID, err)
		}
	}
	if costUSD > 0 {
		key := usageKey(orgID, operation, "cost")
		keys = append(keys, key)
		if err := l.store.HIncrByFloat(ctx, key, dateKey, costUSD); err != nil {
			l.logger.Error("failed to record cost for org=%s: %v", orgID, err)
		}
	}
	if provider != "" {
		key := fmt.Sprintf("usage:%s:provider:%s", orgID, provider)
		keys = append(keys, key)
		if err := l.store.HIncrBy(ctx, key, dateKey, 1); err != nil {
			l.logger.Error("failed to record provider count for org=%s: %v", orgID, err)
		}
	}

	for _, key := range keys {
		if err := l.store.Expire(ctx, key, usageRetention); err != nil {
			l.logger.Error("failed to set usage expiry on %s: %v", key, err)
		}
	}
}

// GetCurrentUsage returns live counts for all three windows. Reporting
// only, not authoritative for enforcement.
func (l *Limiter) GetCurrentUsage(ctx context.Context, orgID, operation string) (*Usage, error) {
	if l.store == nil {
		return nil, fmt.Errorf("rate limiter not enabled")
	}
	if operation == "" {
		operation = DefaultOperation
	}

	now := float64(l.clock.Now().UnixNano()) / float64(time.Second)
	usage := &Usage{}
	targets := []*WindowUsage{&usage.Minute, &usage.Hour, &usage.Day}

	for i, w := range l.windows() {
		count, err := l.store.ZCount(ctx, windowKey(orgID, operation, w.granularity), now-w.span.Seconds(), now)
		if err != nil {
			l.logger.Error("failed to count %s window for org=%s: %v", w.granularity, orgID, err)
			count = 0
		}
		remaining := w.limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		*targets[i] = WindowUsage{Current: int(count), Limit: w.limit, Remaining: remaining}
	}
	return usage, nil
}

// GetUsageStats returns recorded usage for the trailing number of days.
func (l *Limiter) GetUsageStats(ctx context.Context, orgID, operation string, days int) (*UsageStats, error) {
	if l.store == nil {
		return nil, fmt.Errorf("rate limiter not enabled")
	}
	if operation == "" {
		operation = DefaultOperation
	}
	if days <= 0 {
		days = 7
	}

	stats := &UsageStats{
		OrgID:      orgID,
		Operation:  operation,
		PeriodDays: days,
		Requests:   make(map[string]int, days),
		Tokens:     make(map[string]int, days),
		CostUSD:    make(map[string]float64, days),
	}

	now := l.clock.Now().UTC()
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")

		if val, ok, err := l.store.HGet(ctx, usageKey(orgID, operation, "requests"), date); err != nil {
			return nil, fmt.Errorf("failed to get usage stats: %w", err)
		} else if ok {
			n, _ := strconv.Atoi(val)
			stats.Requests[date] = n
		} else {
			stats.Requests[date] = 0
		}

		if val, ok, _ := l.store.HGet(ctx, usageKey(orgID, operation, "tokens"), date); ok {
			n, _ := strconv.Atoi(val)
			stats.Tokens[date] = n
		} else {
			stats.Tokens[date] = 0
		}

		if val, ok, _ := l.store.HGet(ctx, usageKey(orgID, operation, "cost"), date); ok {
			f, _ := strconv.ParseFloat(val, 64)
			stats.CostUSD[date] = f
		} else {
			stats.CostUSD[date] = 0
		}
	}

	for _, n := range stats.Requests {
		stats.TotalRequests += n
	}
	for _, n := range stats.Tokens {
		stats.TotalTokens += n
	}
	for _, f := range stats.CostUSD {
		stats.TotalCostUSD += f
	}
	return stats, nil
}

// ResetLimits clears all three windows for an org and operation. Admin
// operation.
func (l *Limiter) ResetLimits(ctx context.Context, orgID, operation string) error {
	if l.store == nil {
		return nil
	}
	if operation == "" {
		operation = DefaultOperation
	}

	keys := []string{
		windowKey(orgID, operation, "minute"),
		windowKey(orgID, operation, "hour"),
		windowKey(orgID, operation, "day"),
	}
	if err := l.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to reset limits for org=%s: %w", orgID, err)
	}
	l.logger.Info("reset rate limits for org=%s, operation=%s", orgID, operation)
	return nil
}
