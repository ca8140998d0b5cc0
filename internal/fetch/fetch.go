// Package fetch provides the two cross-cutting helpers every outbound
// backend call is wrapped in: a deadline-bound context and an
// exponential-backoff retry loop. Adapted from llm/retry's
// backoffRetryer.DoWithResult in the teacher repo, generalized to
// spec.md §4.10's retry-eligibility rule instead of a caller-supplied
// error allowlist.
package fetch

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/types"
)

// DefaultTimeout is the overall deadline applied to an outbound call
// absent an environment override (§4.10).
const DefaultTimeout = 120 * time.Second

// WithDeadline returns a context bounded by timeout (or DefaultTimeout
// if timeout <= 0) and its cancel func.
func WithDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Policy configures the retry loop. DefaultPolicy uses MaxRetries=2
// and Base=250ms.
type Policy struct {
	MaxRetries int
	Base       time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicy mirrors spec.md §4.10: 2 retries, exponential base·2^attempt,
// capped.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 2, Base: 250 * time.Millisecond, MaxDelay: 10 * time.Second}
}

// Do runs fn, retrying on transport errors, timeouts, 429s, and 5xxs
// (never on 400/401/403/404), waiting base·2^attempt capped at MaxDelay
// between attempts, and logging each retry at Debug the way the
// teacher's backoffRetryer does.
func Do[T any](ctx context.Context, logger *zap.Logger, policy Policy, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(policy, attempt)
			if logger != nil {
				logger.Debug("retrying outbound call",
					zap.Int("attempt", attempt),
					zap.Int("max_retries", policy.MaxRetries),
					zap.Duration("delay", delay),
					zap.Error(lastErr),
				)
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !types.IsRetryable(err) {
			return zero, err
		}
		if attempt >= policy.MaxRetries {
			break
		}
	}
	return zero, lastErr
}

func backoffDelay(p Policy, attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}
