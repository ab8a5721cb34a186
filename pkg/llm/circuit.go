package llm

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// CircuitBreaker tracks failures for one provider and blocks requests once
// the failure threshold is crossed. After the recovery timeout a single
// optimistic transition to degraded lets a probe request through.
//
// Invariant: status == StatusFailed implies failureCount >= threshold.
type CircuitBreaker struct {
	provider        Provider
	threshold       int
	recoveryTimeout time.Duration

	mu              sync.Mutex
	failureCount    int
	lastFailureTime time.Time
	status          ProviderStatus

	clock clock.Clock
}

// NewCircuitBreaker creates a breaker in the healthy state.
func NewCircuitBreaker(provider Provider, threshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		provider:        provider,
		threshold:       threshold,
		recoveryTimeout: recoveryTimeout,
		status:          StatusHealthy,
		clock:           clock.New(),
	}
}

// SetClock overrides the time source. Test hook.
func (cb *CircuitBreaker) SetClock(c clock.Clock) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.clock = c
}

// Provider returns the provider this breaker guards.
func (cb *CircuitBreaker) Provider() Provider {
	return cb.provider
}

// RecordSuccess clears the failure state regardless of prior status.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	cb.lastFailureTime = time.Time{}
	cb.status = StatusHealthy
}

// RecordFailure increments the failure count and stamps the failure time.
// Crossing the threshold moves the breaker to failed.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount++
	cb.lastFailureTime = cb.clock.Now()
	if cb.failureCount >= cb.threshold {
		cb.status = StatusFailed
	}
}

// CanAttempt reports whether a request may proceed. A failed breaker whose
// recovery timeout has elapsed optimistically moves to degraded and allows
// the probe.
func (cb *CircuitBreaker) CanAttempt() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.status {
	case StatusHealthy, StatusDegraded:
		return true
	case StatusFailed:
		if cb.clock.Since(cb.lastFailureTime) >= cb.recoveryTimeout {
			cb.status = StatusDegraded
			return true
		}
		return false
	default:
		return false
	}
}

// Reset forces the breaker back to healthy. Administrative escape hatch.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	cb.lastFailureTime = time.Time{}
	cb.status = StatusHealthy
}

// Status returns the current health classification.
func (cb *CircuitBreaker) Status() ProviderStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.status
}

// FailureCount returns the current consecutive failure tally.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}
