package retryengine

import (
	"context"
	"errors"
	"time"
)

// ErrAttemptsExhausted is returned when every attempt has been consumed
// without the classifier granting success.
var ErrAttemptsExhausted = errors.New("retry: attempts exhausted")

// Classify judges the outcome of one attempt. Retry=true drives another
// attempt (subject to the attempt budget); Retry=false ends the run, with
// success for a nil error and that attempt's error otherwise.
type Classify[T any] func(value T, err error) Decision

// OnRetry is invoked before each sleep, for telemetry.
type OnRetry func(attempt int, delay time.Duration, reason Reason)

// Result carries the outcome of Run.
type Result[T any] struct {
	Value    T
	Attempts int
	LastErr  error
}

// Run executes op up to maxAttempts times under policy, consulting classify
// after every attempt and sleeping between retries (honoring context
// cancellation). retryAfter, when non-nil, is consulted once per attempt and
// overrides the computed delay if it returns a duration.
func Run[T any](
	ctx context.Context,
	policy Policy,
	maxAttempts int,
	op func(ctx context.Context, attempt int) (T, error),
	classify Classify[T],
	onRetry OnRetry,
	retryAfter func(err error) (time.Duration, bool),
) (Result[T], error) {
	var result Result[T]

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			return result, err
		}

		value, err := op(ctx, attempt)
		decision := classify(value, err)
		if !decision.Retry {
			result.Value = value
			result.LastErr = err
			if err != nil {
				return result, err
			}
			return result, nil
		}

		result.LastErr = err
		if attempt == maxAttempts {
			break
		}

		delay := ComputeDelay(policy, attempt)
		if retryAfter != nil {
			if ra, ok := retryAfter(err); ok {
				delay = WithRetryAfter(policy, ra)
			}
		}
		if onRetry != nil {
			onRetry(attempt, delay, decision.Reason)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}

	if result.LastErr != nil {
		return result, result.LastErr
	}
	return result, ErrAttemptsExhausted
}
