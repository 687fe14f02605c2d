// pkg/retry/retry.go - functions for retrying actions with exponential backoff.
//
// Removal steps are never retried; this is for bookkeeping writes such as
// persisting a report, where a transient sharing violation should not lose the record.

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/windowsadmins/cimisweep/pkg/logging"
)

// RetryConfig defines the configuration for retry attempts
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	Multiplier      float64
}

// DefaultConfig suits local file writes.
var DefaultConfig = RetryConfig{MaxRetries: 3, InitialInterval: 200 * time.Millisecond, Multiplier: 2}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry retries action with exponential backoff until it succeeds, returns a
// Permanent error, ctx is done, or MaxRetries attempts have failed. The last
// error is returned.
func Retry(ctx context.Context, config RetryConfig, log *logging.Logger, action func() error) error {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	interval := config.InitialInterval

	var err error
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		err = action()
		if err == nil {
			return nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			log.Warn("Non-retryable error encountered", "attempt", attempt, "error", permanent.err)
			return permanent.err
		}

		if attempt == config.MaxRetries {
			log.Warn(fmt.Sprintf("Attempt %d/%d failed. No more retries.", attempt, config.MaxRetries), "error", err)
			break
		}
		log.Warn(fmt.Sprintf("Attempt %d/%d failed. Retrying in %s...", attempt, config.MaxRetries, interval), "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry abandoned: %w", ctx.Err())
		case <-time.After(interval):
		}
		interval = time.Duration(float64(interval) * config.Multiplier)
	}

	return fmt.Errorf("action failed after %d attempts: %w", config.MaxRetries, err)
}
