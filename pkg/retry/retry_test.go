package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fastRetrier(attempts int) *Retrier {
	return New(
		WithMaxAttempts(attempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
		WithJitter(0),
	)
}

func TestDo(t *testing.T) {
	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := fastRetrier(3).Do(context.Background(), func(context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries retryable errors", func(t *testing.T) {
		calls := 0
		err := fastRetrier(3).Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return Retryable(errBoom)
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		err := fastRetrier(3).Do(context.Background(), func(context.Context) error {
			calls++
			return Permanent(errBoom)
		})

		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
	})

	t.Run("unwraps the final retryable error", func(t *testing.T) {
		err := fastRetrier(2).Do(context.Background(), func(context.Context) error {
			return Retryable(errBoom)
		})

		require.ErrorIs(t, err, errBoom)
		// The wrapper is stripped so callers match the cause directly.
		var re *RetryableError
		assert.False(t, errors.As(err, &re))
	})

	t.Run("unclassified errors are not retried", func(t *testing.T) {
		calls := 0
		err := fastRetrier(3).Do(context.Background(), func(context.Context) error {
			calls++
			return errBoom
		})

		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		calls := 0
		err := New(
			WithMaxAttempts(10),
			WithInitialDelay(50*time.Millisecond),
			WithJitter(0),
		).Do(ctx, func(context.Context) error {
			calls++
			cancel()
			return Retryable(errBoom)
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("reports retries via OnRetry", func(t *testing.T) {
		var attempts []int
		r := New(
			WithMaxAttempts(3),
			WithInitialDelay(time.Millisecond),
			WithJitter(0),
			WithOnRetry(func(attempt int, _ error, _ time.Duration) {
				attempts = append(attempts, attempt)
			}),
		)

		_ = r.Do(context.Background(), func(context.Context) error {
			return Retryable(errBoom)
		})

		assert.Equal(t, []int{1, 2}, attempts)
	})
}

func TestDoWithData(t *testing.T) {
	calls := 0
	got, err := DoWithData(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", Retryable(errBoom)
		}
		return "ok", nil
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestCalculateDelay(t *testing.T) {
	r := New(
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(time.Second),
		WithMultiplier(2.0),
		WithJitter(0),
	)

	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 400*time.Millisecond, r.calculateDelay(3))
	// Capped at MaxDelay.
	assert.Equal(t, time.Second, r.calculateDelay(10))
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsRetryable(Retryable(errBoom)))
	assert.False(t, IsRetryable(Permanent(errBoom)))
	assert.True(t, IsPermanent(Permanent(errBoom)))
	assert.False(t, IsPermanent(errBoom))

	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))

	assert.ErrorIs(t, Retryable(errBoom), errBoom)
	assert.ErrorIs(t, Permanent(errBoom), errBoom)
}

func TestDatabaseRetrier(t *testing.T) {
	calls := 0
	err := DatabaseRetrier().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errBoom)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
