package ai

import (
	"context"
	"fmt"
	"time"
)

// timeAfter is swapped out in tests to avoid real backoff sleeps.
var timeAfter = time.After

const (
	// defaultMaxRetries is the default number of retry attempts.
	defaultMaxRetries = 3
)

// retryWithBackoff executes fn with backoff between attempts. Rate-limit
// and overload errors wait longer than other failures (see
// getBackoffDuration). Returns the first successful result or the last
// error after maxAttempts; a canceled context stops retrying immediately.
func retryWithBackoff[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxRetries
	}

	var result T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var err error
		result, err = fn()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return result, fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-timeAfter(getBackoffDuration(err, attempt)):
			}
		}
	}

	return result, fmt.Errorf("all retry attempts failed: %w", lastErr)
}
