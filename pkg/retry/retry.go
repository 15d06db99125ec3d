// pkg/retry/retry.go - functions for retrying actions with exponential backoff.

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/windowsadmins/pvagent/pkg/logging"
)

// NonRetryableError interface for errors that should not be retried
type NonRetryableError interface {
	error
	Unwrap() error
	NonRetryable()
}

type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }
func (p *permanent) NonRetryable() {}

// Permanent marks err so Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// RetryConfig defines the configuration for retry attempts
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	Multiplier      float64
}

// sleep is replaced in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs action up to config.MaxRetries times, backing off between
// attempts. The last error is returned wrapped; a NonRetryableError is
// returned as-is (its cause unwrapped) without further attempts.
func Retry(ctx context.Context, config RetryConfig, action func() error) error {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 1
	}
	interval := config.InitialInterval

	var lastErr error
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		err := action()
		if err == nil {
			return nil
		}

		var nonRetryableErr NonRetryableError
		if errors.As(err, &nonRetryableErr) {
			logging.Warn("Non-retryable error encountered",
				"attempt", attempt, "error", err)
			return nonRetryableErr.Unwrap()
		}
		lastErr = err

		if attempt == config.MaxRetries {
			logging.Warn("Attempt failed, no more retries",
				"attempt", attempt, "max_attempts", config.MaxRetries, "error", err)
			break
		}

		logging.Warn("Attempt failed, retrying",
			"attempt", attempt, "max_attempts", config.MaxRetries,
			"retry_delay", interval.String(), "error", err)

		if err := sleep(ctx, interval); err != nil {
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, lastErr)
		}
		interval = time.Duration(float64(interval) * config.Multiplier)
	}

	return fmt.Errorf("action failed after %d attempts: %w", config.MaxRetries, lastErr)
}
