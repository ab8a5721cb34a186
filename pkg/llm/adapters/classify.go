package adapters

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"leadengine/pkg/llm"
)

// classify maps a raw SDK error to a ProviderAPIError so the fallback
// loop can treat all vendors uniformly. Already-classified errors pass
// through unchanged.
func classify(provider llm.Provider, err error) error {
	var pae *llm.ProviderAPIError
	if errors.As(err, &pae) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.ProviderAPIError{
			Provider: provider, Kind: llm.ErrorKindTransport,
			Message: "request timeout", Err: err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &llm.ProviderAPIError{
			Provider: provider, Kind: llm.ErrorKindTransport,
			Message: "request canceled", Err: err,
		}
	}

	errStr := err.Error()
	statusCode := extractStatusCode(errStr)

	switch statusCode {
	case 401, 403:
		return &llm.ProviderAPIError{
			Provider: provider, Kind: llm.ErrorKindAuth, StatusCode: statusCode,
			Message: "authentication failed", Err: err,
		}
	case 429:
		return &llm.ProviderAPIError{
			Provider: provider, Kind: llm.ErrorKindRateLimit, StatusCode: statusCode,
			Message: "rate limit exceeded", Err: err,
		}
	case 500, 502, 503, 504:
		return &llm.ProviderAPIError{
			Provider: provider, Kind: llm.ErrorKindAPI, StatusCode: statusCode,
			Message: "server error", Err: err,
		}
	}

	lower := strings.ToLower(errStr)
	switch {
	case strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "connection") ||
		strings.Contains(lower, "network") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(lower, "reset"):
		return &llm.ProviderAPIError{
			Provider: provider, Kind: llm.ErrorKindTransport,
			Message: "network or connection error", Err: err,
		}
	case strings.Contains(lower, "rate") || strings.Contains(lower, "quota"):
		return &llm.ProviderAPIError{
			Provider: provider, Kind: llm.ErrorKindRateLimit,
			Message: "rate limiting detected", Err: err,
		}
	case strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "api key") ||
		strings.Contains(lower, "authentication"):
		return &llm.ProviderAPIError{
			Provider: provider, Kind: llm.ErrorKindAuth,
			Message: "authentication error", Err: err,
		}
	}

	return &llm.ProviderAPIError{
		Provider: provider, Kind: llm.ErrorKindAPI,
		Message: errStr, Err: err,
	}
}

// extractStatusCode pulls an HTTP status out of an SDK error string.
// Vendor SDKs usually embed the status in the message.
func extractStatusCode(errStr string) int {
	lower := strings.ToLower(errStr)
	patterns := []string{"status code: ", "status: ", "http ", "code "}
	codes := []int{400, 401, 403, 404, 429, 500, 502, 503, 504}

	for _, pattern := range patterns {
		idx := strings.Index(lower, pattern)
		if idx == -1 {
			continue
		}
		rest := errStr[idx+len(pattern):]
		for _, code := range codes {
			if strings.HasPrefix(rest, strconv.Itoa(code)) {
				return code
			}
		}
	}
	return 0
}
