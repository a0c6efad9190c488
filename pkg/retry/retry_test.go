package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/fundkit/pkg/apiclient"
	"github.com/dmitrymomot/fundkit/pkg/retry"
)

var errTransient = errors.New("transient")

func TestExponential(t *testing.T) {
	t.Parallel()

	b := retry.Exponential(10*time.Millisecond, 50*time.Millisecond, 0)()
	var got []time.Duration
	for range 4 {
		d, stop := b.Next()
		assert.False(t, stop)
		got = append(got, d)
	}
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}, got)

	jittered := retry.Exponential(100*time.Millisecond, 0, 10)
	for range 20 {
		d, _ := jittered().Next()
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
}

func TestDo(t *testing.T) {
	t.Parallel()
	fast := retry.Fixed(time.Millisecond)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := retry.Do(context.Background(), 3, fast, nil, func(context.Context) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("zero retries calls once", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := retry.Do(context.Background(), 0, fast, nil, func(context.Context) error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausted retries return the last error", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := retry.Do(context.Background(), 2, fast, nil, func(context.Context) error {
			calls++
			return errTransient
		})
		assert.Equal(t, errTransient, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("network errors are retried", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := retry.Do(context.Background(), 2, fast, apiclient.IsNetworkError, func(context.Context) error {
			calls++
			if calls == 1 {
				return &apiclient.NetworkError{Method: "GET", Path: "/users/me", Err: errTransient}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("status errors are not retried", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := retry.Do(context.Background(), 5, fast, apiclient.IsNetworkError, func(context.Context) error {
			calls++
			return &apiclient.HTTPStatusError{Code: 401, Message: "Unauthorized"}
		})
		var statusErr *apiclient.HTTPStatusError
		assert.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancellation ends waiting", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := retry.Do(ctx, 10, retry.Fixed(time.Hour), nil, func(context.Context) error {
			calls++
			cancel()
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
