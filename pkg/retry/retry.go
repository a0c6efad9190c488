// Package retry runs an operation a bounded number of times on top of
// sethvargo/go-retry, retrying only the errors the caller marks as transient.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Backoff builds a fresh schedule for one Do call. go-retry schedules keep
// state, so they are never shared between calls.
type Backoff func() goretry.Backoff

// Exponential doubles the delay from base up to ceiling, spread by
// jitterPercent in both directions. A zero ceiling means uncapped.
func Exponential(base, ceiling time.Duration, jitterPercent uint64) Backoff {
	return func() goretry.Backoff {
		b := goretry.NewExponential(max(base, time.Millisecond))
		if ceiling > 0 {
			b = goretry.WithCappedDuration(ceiling, b)
		}
		if jitterPercent > 0 {
			b = goretry.WithJitterPercent(jitterPercent, b)
		}
		return b
	}
}

// Fixed waits d before every retry.
func Fixed(d time.Duration) Backoff {
	return func() goretry.Backoff {
		return goretry.NewConstant(max(d, time.Nanosecond))
	}
}

// Default is a short exponential backoff suited to interactive clients.
func Default() Backoff {
	return Exponential(200*time.Millisecond, 2*time.Second, 10)
}

// Do calls fn until it succeeds, returns an error that retryable rejects,
// or retries are exhausted. retries counts extra attempts after the first,
// so retries=0 calls fn exactly once. A nil retryable retries every error.
// When ctx ends while waiting, the last failure is joined with ctx.Err().
func Do(ctx context.Context, retries int, backoff Backoff, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if backoff == nil {
		backoff = Default()
	}
	var last error
	err := goretry.Do(ctx, goretry.WithMaxRetries(uint64(max(retries, 0)), backoff()), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		last = err
		if retryable != nil && !retryable(err) {
			return err
		}
		return goretry.RetryableError(err)
	})
	if err != nil && last != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) && !errors.Is(last, ctx.Err()) {
		return errors.Join(last, err)
	}
	return err
}
