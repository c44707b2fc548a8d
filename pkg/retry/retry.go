// Package retry implements the generic retry combinator (C4 in spec.md
// §4.4): exponential backoff with a cap, predicate-driven retry decisions,
// no jitter (jitter lives in the rate-limit governor's penalty scheduling).
package retry

import (
	"context"
	"time"

	"github.com/resilientcore/execbridge/pkg/envelope"
	"github.com/resilientcore/execbridge/pkg/errs"
)

// Policy configures withRetries (spec.md §4.4).
type Policy struct {
	Retries           int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	ShouldRetry       func(*envelope.APIResponse[any]) bool
	OnRetry           func(attempt int, resp *envelope.APIResponse[any], err error)
	Sleep             func(ctx context.Context, d time.Duration) error // overridable for tests
}

// DefaultPolicy matches spec.md §4.4's defaults.
func DefaultPolicy() Policy {
	return Policy{
		Retries:           2,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2,
		ShouldRetry:       DefaultShouldRetry,
		Sleep:             sleepCtx,
	}
}

// DefaultShouldRetry implements spec.md §4.4 and the envelope-totality
// invariant in §8.4: retry iff !success && statusCode in {0,429} ∪ [500,599].
func DefaultShouldRetry(resp *envelope.APIResponse[any]) bool {
	if resp == nil || resp.Success {
		return false
	}
	return resp.StatusCode == 429 || resp.StatusCode == 0 || (resp.StatusCode >= 500 && resp.StatusCode <= 599)
}

// Operation is the retried unit of work.
type Operation func(ctx context.Context) (*envelope.APIResponse[any], error)

// WithRetries runs op, retrying per policy until it succeeds, the predicate
// declines a further retry, or retries are exhausted. Thrown errors are
// converted into a transport-failure envelope (spec.md §4.4) and subjected
// to the same predicate. Cancellation is never retried (spec.md §5).
func WithRetries(ctx context.Context, op Operation, policy Policy) (*envelope.APIResponse[any], error) {
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = DefaultShouldRetry
	}
	if policy.Sleep == nil {
		policy.Sleep = sleepCtx
	}
	if policy.BackoffMultiplier == 0 {
		policy.BackoffMultiplier = 2
	}

	for attempt := 0; ; attempt++ {
		resp, err := op(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return envelope.FailTransport[any]("canceled"), nil
			}
			resp = envelope.FailTransport[any](errs.GetErrorMessage(err))
		}

		if !policy.ShouldRetry(resp) {
			return resp, nil
		}
		if attempt >= policy.Retries {
			return resp, nil
		}

		delay := backoffDelay(policy, attempt+1)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, resp, err)
		}
		if sleepErr := policy.Sleep(ctx, delay); sleepErr != nil {
			return envelope.FailTransport[any]("canceled"), nil
		}
	}
}

// backoffDelay computes spec.md §4.4's delay before attempt k (k>=1):
// min(initialDelay * multiplier^(k-1), maxDelay).
func backoffDelay(policy Policy, attempt int) time.Duration {
	d := float64(policy.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= policy.BackoffMultiplier
	}
	delay := time.Duration(d)
	if delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
