package prolink

import (
	"context"
	"time"
)

// DelayFunc returns the pause before retrying after the given failed
// attempt (1-based).
type DelayFunc func(attempt int) time.Duration

// LinearDelay grows the pause by step per attempt: step, 2*step, ...
func LinearDelay(step time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Sleeper pauses for d or until ctx is done, returning ctx.Err when
// the wait was cut short. Injected by tests to avoid real delays.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, d time.Duration) error {
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

// Retry runs op up to maxAttempts times, pausing per delay between
// attempts. Only errors accepted by isRetryable are retried; any other
// error, and the error of the final attempt, is returned as is. Retry
// is independent of any backend SDK so it can be exercised with a fake
// operation and sleeper.
func Retry(ctx context.Context, maxAttempts int, delay DelayFunc, isRetryable func(error) bool, op func(context.Context) error, sleep Sleeper) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if sleep == nil {
		sleep = defaultSleeper
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = op(ctx); err == nil {
			return nil
		}

		if isRetryable != nil && !isRetryable(err) {
			return err
		}

		if attempt == maxAttempts {
			break
		}

		var pause time.Duration
		if delay != nil {
			pause = delay(attempt)
		}
		if serr := sleep(ctx, pause); serr != nil {
			return serr
		}
	}

	return err
}
