package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/logfields"
)

// RetryPolicy defines retry behavior for the write stages (sink and ledger).
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	IsRetryable func(error) bool
}

// DefaultRetryPolicy makes a single attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, Backoff: 100 * time.Millisecond, IsRetryable: Retryable}
}

// Retryable reports whether err carries a backoff or immediate retry strategy.
func Retryable(err error) bool {
	classified, ok := errors.AsClassified(err)
	if !ok {
		return false
	}
	switch classified.RetryStrategy() {
	case errors.RetryBackoff, errors.RetryImmediate:
		return true
	default:
		return false
	}
}

// delay returns the wait before the given retry (1-based), doubling each time.
func (r RetryPolicy) delay(retry int) time.Duration {
	if retry <= 0 {
		return 0
	}
	return r.Backoff * time.Duration(1<<uint(retry-1))
}

// do runs fn until it succeeds, fails with a non-retryable error, the
// attempts are exhausted or ctx is done.
func (r RetryPolicy) do(ctx context.Context, logger *slog.Logger, stage, path string, fn func() error) error {
	attempts := max(r.MaxAttempts, 1)
	retryable := r.IsRetryable
	if retryable == nil {
		retryable = Retryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == attempts {
			break
		}
		backoff := r.delay(attempt)
		logger.Info("Retrying after failure",
			logfields.Stage(stage),
			logfields.Path(path),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			logfields.Error(lastErr))
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (retry aborted: %w)", lastErr, ctx.Err())
		case <-timer.C:
		}
	}
	return lastErr
}
