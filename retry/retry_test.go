/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func TestJitteredExponentialBackOff(t *testing.T) {
	var jitter float64
	b := &JitteredExponentialBackOff{
		BaseDelay:    time.Second,
		JitterFactor: DefaultJitterFactor,
		Rand:         func() float64 { return jitter },
	}
	require.Equal(t, time.Second, b.NextBackOff())
	require.Equal(t, 2*time.Second, b.NextBackOff())
	require.Equal(t, 4*time.Second, b.NextBackOff())

	b.Reset()
	jitter = 0.5
	require.Equal(t, 1050*time.Millisecond, b.NextBackOff())

	b.attempt = 1000
	require.Equal(t, MaxBackOffDelay, b.NextBackOff())
}

func TestJitteredExponentialBackOff_GrowsMonotonically(t *testing.T) {
	for _, baseDelay := range []time.Duration{time.Millisecond, time.Second, 10 * time.Second, time.Hour} {
		for _, jitter := range []float64{0, 0.999} {
			b := &JitteredExponentialBackOff{
				BaseDelay:    baseDelay,
				JitterFactor: DefaultJitterFactor,
				Rand:         func() float64 { return jitter },
			}
			prev := time.Duration(0)
			for attempt := 0; attempt < 80; attempt++ {
				delay := b.NextBackOff()
				require.GreaterOrEqual(t, delay, prev, "base delay %s, attempt %d", baseDelay, attempt)
				prev = delay
			}
			require.Equal(t, MaxBackOffDelay, prev)
		}
	}

	b := &JitteredExponentialBackOff{}
	require.Equal(t, time.Duration(0), b.NextBackOff())
}

func TestBackoffPolicy(t *testing.T) {
	bf := NewBackoffPolicy(time.Millisecond, 3).NewBackOff()
	require.NotEqual(t, backoff.Stop, bf.NextBackOff())
	require.NotEqual(t, backoff.Stop, bf.NextBackOff())
	require.Equal(t, backoff.Stop, bf.NextBackOff())

	bf = NewBackoffPolicy(time.Millisecond, 1).NewBackOff()
	require.Equal(t, backoff.Stop, bf.NextBackOff())
}

func TestDoWithRetry(t *testing.T) {
	errPersistent := errors.New("persistent")
	errTemporary := errors.New("temporary")

	t.Run("persistent error stops retries", func(t *testing.T) {
		calls := 0
		err := DoWithRetry(context.Background(), NewBackoffPolicy(time.Millisecond, 5),
			func(err error) bool { return !errors.Is(err, errPersistent) }, nil,
			func(ctx context.Context) error {
				calls++
				if calls == 2 {
					return errPersistent
				}
				return errTemporary
			})
		require.ErrorIs(t, err, errPersistent)
		require.Equal(t, 2, calls)
	})

	t.Run("policy func", func(t *testing.T) {
		var delays []time.Duration
		policy := PolicyFunc(func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
		})
		calls := 0
		err := DoWithRetry(context.Background(), policy, nil,
			func(err error, delay time.Duration) { delays = append(delays, delay) },
			func(ctx context.Context) error {
				calls++
				if calls < 3 {
					return errTemporary
				}
				return nil
			})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
		require.Equal(t, []time.Duration{time.Millisecond, time.Millisecond}, delays)
	})

	t.Run("any error is retried when IsRetryable is nil", func(t *testing.T) {
		calls := 0
		err := DoWithRetry(context.Background(), NewBackoffPolicy(time.Millisecond, 3), nil, nil,
			func(ctx context.Context) error {
				calls++
				return errTemporary
			})
		require.ErrorIs(t, err, errTemporary)
		require.Equal(t, 3, calls)
	})
}
