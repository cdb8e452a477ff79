package ai

import (
	"errors"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// rateLimitBaseBackoff is the initial wait for rate limit errors.
	// Provider token buckets reset per minute, so short exponential
	// backoff just burns attempts.
	rateLimitBaseBackoff = 60 * time.Second

	// rateLimitMaxBackoff caps the rate limit wait.
	rateLimitMaxBackoff = 120 * time.Second
)

// isRateLimitError detects a rate limit error from any provider. It checks
// the SDK error types first, then falls back to message patterns for the
// hand-rolled HTTP clients.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var anthropicErr *anthropic.APIError
	if errors.As(err, &anthropicErr) {
		return anthropicErr.IsRateLimitErr()
	}

	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) {
		return openaiErr.HTTPStatusCode == 429
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate_limit_error") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "too many requests")
}

// isOverloadedError detects provider overload, which is treated like a
// rate limit for backoff purposes.
func isOverloadedError(err error) bool {
	if err == nil {
		return false
	}

	var anthropicErr *anthropic.APIError
	if errors.As(err, &anthropicErr) {
		return anthropicErr.IsOverloadedErr()
	}

	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) {
		return openaiErr.HTTPStatusCode == 503
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "503")
}

// getBackoffDuration returns the wait before the next attempt. Rate limit
// and overload errors wait 60-120 seconds for the token window to reset;
// everything else uses standard exponential backoff (2s, 4s, 8s, ...).
func getBackoffDuration(err error, attempt int) time.Duration {
	if isRateLimitError(err) || isOverloadedError(err) {
		backoff := rateLimitBaseBackoff * time.Duration(attempt)
		if backoff > rateLimitMaxBackoff {
			return rateLimitMaxBackoff
		}
		return backoff
	}

	return time.Duration(1<<attempt) * time.Second
}
