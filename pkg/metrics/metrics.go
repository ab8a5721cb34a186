// Package metrics provides Prometheus-based metrics recording for LLM operations.
package metrics

import (
	"time"
)

// Recorder observes LLM request outcomes and rate limiter decisions.
// A nil-safe NopRecorder is available for tests and library embedders.
type Recorder interface {
	// ObserveRequest records a completed provider call.
	ObserveRequest(provider, operation string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration)
	// IncThrottle increments the throttle counter when a quota window rejects a request.
	IncThrottle(orgID, granularity string)
	// IncCircuitOpen increments the skip counter when a breaker blocks a provider.
	IncCircuitOpen(provider string)
	// IncCacheHit records an extraction cache hit or miss.
	IncCacheHit(hit bool)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) ObserveRequest(string, string, int, int, bool, string, time.Duration) {}
func (NopRecorder) IncThrottle(string, string)                                           {}
func (NopRecorder) IncCircuitOpen(string)                                                {}
func (NopRecorder) IncCacheHit(bool)                                                     {}
