package app

import (
	"context"
	"fmt"
	"time"
)

// retryWithBackoff runs operation up to maxAttempts times, doubling the
// delay after each failure. A canceled or timed-out context stops the loop;
// a provider call that times out simply counts as a failed attempt.
func retryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive, got %d", maxAttempts)
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}
