package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal    *prometheus.CounterVec
	tokensTotal      *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	throttleTotal    *prometheus.CounterVec
	circuitOpenTotal *prometheus.CounterVec
	cacheTotal       *prometheus.CounterVec
}

// NewPrometheusRecorder creates a new Prometheus-based metrics recorder and
// registers its collectors on the given registerer. Pass nil to use the
// default registry.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by provider, operation, and status",
			},
			[]string{"provider", "operation", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"provider", "operation", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),
		throttleTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_throttle_total",
				Help: "Total number of rate limit rejections",
			},
			[]string{"org_id", "granularity"},
		),
		circuitOpenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_circuit_open_total",
				Help: "Total number of requests skipped by an open circuit breaker",
			},
			[]string{"provider"},
		),
		cacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_extraction_cache_total",
				Help: "Extraction cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveRequest records metrics for a completed LLM request.
func (p *PrometheusRecorder) ObserveRequest(
	provider, operation string,
	promptTokens, completionTokens int,
	success bool,
	errorType string,
	duration time.Duration,
) {
	status := "success"
	if !success {
		status = "error"
	}

	p.requestsTotal.WithLabelValues(provider, operation, status, errorType).Inc()

	if success {
		p.tokensTotal.WithLabelValues(provider, operation, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(provider, operation, "completion").Add(float64(completionTokens))
	}

	p.requestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// IncThrottle increments the throttle counter for rate limiting events.
func (p *PrometheusRecorder) IncThrottle(orgID, granularity string) {
	p.throttleTotal.WithLabelValues(orgID, granularity).Inc()
}

// IncCircuitOpen increments the breaker skip counter.
func (p *PrometheusRecorder) IncCircuitOpen(provider string) {
	p.circuitOpenTotal.WithLabelValues(provider).Inc()
}

// IncCacheHit records an extraction cache lookup outcome.
func (p *PrometheusRecorder) IncCacheHit(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheTotal.WithLabelValues(result).Inc()
}
