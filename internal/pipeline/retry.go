package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/nvasquez/survey-generator/internal/embedding"
	"github.com/nvasquez/survey-generator/internal/llm"
)

// maxBackoff caps the exponential delay so late attempts stay responsive to
// cancellation.
const maxBackoff = 30 * time.Second

// isTransient reports whether an external-call error is worth another
// attempt. Only upstream availability problems qualify; malformed output,
// extraction failures, and cancellation are handled elsewhere.
func isTransient(err error) bool {
	if llm.IsTransient(err) {
		return true
	}
	var unavailable *embedding.UnavailableError
	return errors.As(err, &unavailable)
}

// backoffDelay is the wait before the next attempt: base doubled per prior
// attempt, capped, plus up to 50% jitter so concurrent runs do not hammer a
// recovering upstream in lockstep.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base << (attempt - 1)
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(delay)/2 + 1))
	return delay + jitter
}

// withRetry runs fn up to the configured number of attempts, backing off
// between transient failures. Non-transient errors return immediately;
// context cancellation wins over any pending backoff.
func (e *Engine) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := e.opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) || attempt == attempts {
			return lastErr
		}

		delay := backoffDelay(e.opts.RetryBaseDelay, attempt)
		e.logger.Warn("transient failure, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("backoff", delay),
			zap.Error(lastErr))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
