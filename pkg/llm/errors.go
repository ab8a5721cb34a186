package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies provider failures for fallback decisions.
type ErrorKind int8

const (
	// ErrorKindAPI represents generic provider API faults (4xx/5xx payloads).
	ErrorKindAPI ErrorKind = iota
	// ErrorKindAuth represents authentication failures (401/403, bad key).
	ErrorKindAuth
	// ErrorKindRateLimit represents provider-side throttling (429, quota).
	ErrorKindRateLimit
	// ErrorKindTransport represents connection-level faults (timeout, reset, EOF).
	ErrorKindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindAPI:
		return "api"
	case ErrorKindAuth:
		return "auth"
	case ErrorKindRateLimit:
		return "rate_limit"
	case ErrorKindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// CircuitOpenError reports that a provider was skipped without an attempt
// because its breaker is blocking requests.
type CircuitOpenError struct {
	Provider Provider
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for provider %s", e.Provider)
}

// ProviderAPIError reports that a provider was attempted and failed. All
// failure kinds map to this one type so the fallback loop can treat them
// uniformly.
type ProviderAPIError struct {
	Provider   Provider
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderAPIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s error (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s error: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderAPIError) Unwrap() error {
	return e.Err
}

// ProviderFailure pairs a provider with the error that eliminated it from
// one fallback pass.
type ProviderFailure struct {
	Provider Provider
	Err      error
}

// AllProvidersFailedError reports that every configured provider was
// exhausted within one fallback pass.
type AllProvidersFailedError struct {
	Failures []ProviderFailure
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Provider, f.Err))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// IsCircuitOpen reports whether err is a breaker rejection.
func IsCircuitOpen(err error) bool {
	var coe *CircuitOpenError
	return errors.As(err, &coe)
}

// IsProviderAPIError extracts a ProviderAPIError from err's chain.
func IsProviderAPIError(err error) (*ProviderAPIError, bool) {
	var pae *ProviderAPIError
	if errors.As(err, &pae) {
		return pae, true
	}
	return nil, false
}

// IsAllProvidersFailed extracts an AllProvidersFailedError from err's chain.
func IsAllProvidersFailed(err error) (*AllProvidersFailedError, bool) {
	var apfe *AllProvidersFailedError
	if errors.As(err, &apfe) {
		return apfe, true
	}
	return nil, false
}
