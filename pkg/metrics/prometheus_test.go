package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveRequest("openai", "extract_lead_info", 120, 40, true, "", 250*time.Millisecond)
	rec.ObserveRequest("openai", "extract_lead_info", 0, 0, false, "rate_limit", 100*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		rec.requestsTotal.WithLabelValues("openai", "extract_lead_info", "success", "")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		rec.requestsTotal.WithLabelValues("openai", "extract_lead_info", "error", "rate_limit")))

	// Tokens are only counted on success.
	assert.Equal(t, float64(120), testutil.ToFloat64(
		rec.tokensTotal.WithLabelValues("openai", "extract_lead_info", "prompt")))
	assert.Equal(t, float64(40), testutil.ToFloat64(
		rec.tokensTotal.WithLabelValues("openai", "extract_lead_info", "completion")))
}

func TestThrottleAndCircuitCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.IncThrottle("org-1", "minute")
	rec.IncThrottle("org-1", "minute")
	rec.IncCircuitOpen("anthropic")
	rec.IncCacheHit(true)
	rec.IncCacheHit(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(rec.throttleTotal.WithLabelValues("org-1", "minute")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.circuitOpenTotal.WithLabelValues("anthropic")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.cacheTotal.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.cacheTotal.WithLabelValues("miss")))
}

func TestNopRecorder(t *testing.T) {
	var rec Recorder = NopRecorder{}
	rec.ObserveRequest("mock", "generate_response", 1, 1, true, "", time.Millisecond)
	rec.IncThrottle("org", "hour")
	rec.IncCircuitOpen("mock")
	rec.IncCacheHit(false)
}
