// Package resilience implements the retry executor and circuit breaker used
// around endpoint stage calls.
package resilience

import (
	"context"
	"time"

	"github.com/apichain/apichain/pkg/models"
)

// Call performs one attempt of the wrapped operation and reports the
// resulting status code. A non-nil error marks a transport-level failure,
// which is always retry-eligible.
type Call func(ctx context.Context) (int, error)

// Retrier runs a call with bounded, fixed-delay retries. A retry is
// triggered by a transport error or by a status code in the configured set;
// any other outcome is returned immediately.
type Retrier struct {
	policy  models.RetryPolicy
	retryOn map[int]bool
}

// NewRetrier builds a retrier for the given policy and retryable status set.
func NewRetrier(policy models.RetryPolicy, onStatus []int) *Retrier {
	retryOn := make(map[int]bool, len(onStatus))
	for _, status := range onStatus {
		retryOn[status] = true
	}

	return &Retrier{policy: policy, retryOn: retryOn}
}

// Retryable reports whether the given outcome triggers a retry.
func (r *Retrier) Retryable(status int, err error) bool {
	if err != nil {
		return true
	}

	return r.retryOn[status]
}

// Do runs the call until it yields a non-retryable outcome or maxRetries is
// exhausted. It returns the final status, the number of retries used, and
// the last failure when retries ran out. Cancellation is checked before
// every attempt and during the inter-attempt sleep; no attempt is made after
// the context fires.
func (r *Retrier) Do(ctx context.Context, call Call) (int, int, error) {
	var (
		status  int
		lastErr error
	)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return status, attempt, err
		}

		status, lastErr = call(ctx)
		if !r.Retryable(status, lastErr) {
			return status, attempt, nil
		}

		if attempt >= r.policy.MaxRetries {
			if lastErr == nil {
				lastErr = &models.StageFailure{Status: status, Msg: "retryable status persisted"}
			}

			return status, attempt, lastErr
		}

		if err := sleep(ctx, r.policy.Delay()); err != nil {
			return status, attempt, err
		}
	}
}

// sleep waits for d or until the context is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
