package retry

import (
	"context"
	"time"
)

// Policy bounds one guarded call: a per-attempt timeout, the number of
// retries after the first attempt, and the fixed sleep between attempts.
// The sleep is intentionally short; long waits belong to the caller's
// background schedule via Kind.SuggestedDelay.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Operation produces one fresh attempt. It must be restartable: Do invokes
// it once per attempt, never reusing state across attempts.
type Operation[T any] func(ctx context.Context) (T, error)

// Do runs the operation under the policy. It returns the result of the first
// successful attempt, or the classified error of the last attempt once
// retries are exhausted or the failure is not retryable. Expected failures
// come back as values; Do never panics for them.
func Do[T any](ctx context.Context, policy Policy, op Operation[T]) (T, *ClassifiedError) {
	var zero T
	var classified *ClassifiedError

	attempts := policy.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		attemptCtx := ctx
		cancel := func() {}
		if policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		}
		result, err := op(attemptCtx)
		cancel()

		if err == nil {
			return result, nil
		}

		classified = Classify(err)
		if !classified.Retryable() {
			return zero, classified
		}

		if attempt < attempts-1 && policy.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return zero, Classify(ctx.Err())
			case <-time.After(policy.RetryDelay):
			}
		}
	}

	return zero, classified
}
