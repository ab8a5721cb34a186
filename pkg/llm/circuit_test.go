package llm

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, recovery time.Duration) (*CircuitBreaker, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cb := NewCircuitBreaker(ProviderOpenAI, threshold, recovery)
	cb.SetClock(mock)
	return cb, mock
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 5*time.Minute)

	assert.Equal(t, StatusHealthy, cb.Status())
	assert.True(t, cb.CanAttempt())

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StatusHealthy, cb.Status())
	assert.True(t, cb.CanAttempt())

	cb.RecordFailure()
	assert.Equal(t, StatusFailed, cb.Status())
	assert.False(t, cb.CanAttempt())
	assert.Equal(t, 3, cb.FailureCount())
}

func TestBreakerRecoveryProbe(t *testing.T) {
	cb, mock := newTestBreaker(3, 5*time.Minute)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, StatusFailed, cb.Status())
	require.False(t, cb.CanAttempt())

	// Just short of the recovery timeout, still blocked.
	mock.Add(5*time.Minute - time.Second)
	assert.False(t, cb.CanAttempt())

	// At the timeout the breaker moves to degraded and allows a probe.
	mock.Add(time.Second)
	assert.True(t, cb.CanAttempt())
	assert.Equal(t, StatusDegraded, cb.Status())
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	cb, mock := newTestBreaker(2, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	mock.Add(time.Minute)
	require.True(t, cb.CanAttempt())
	require.Equal(t, StatusDegraded, cb.Status())

	cb.RecordSuccess()
	assert.Equal(t, StatusHealthy, cb.Status())
	assert.Equal(t, 0, cb.FailureCount())
	assert.True(t, cb.CanAttempt())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	cb, mock := newTestBreaker(2, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	mock.Add(time.Minute)
	require.True(t, cb.CanAttempt())

	// The failed probe pushes the count past the threshold again.
	cb.RecordFailure()
	assert.Equal(t, StatusFailed, cb.Status())
	assert.False(t, cb.CanAttempt())
}

func TestBreakerSuccessResetsMidStreak(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	assert.Equal(t, 0, cb.FailureCount())

	// A fresh streak must reach the full threshold again.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StatusHealthy, cb.Status())
	cb.RecordFailure()
	assert.Equal(t, StatusFailed, cb.Status())
}

func TestBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)

	cb.RecordFailure()
	require.Equal(t, StatusFailed, cb.Status())
	require.False(t, cb.CanAttempt())

	cb.Reset()
	assert.Equal(t, StatusHealthy, cb.Status())
	assert.Equal(t, 0, cb.FailureCount())
	assert.True(t, cb.CanAttempt())
}
