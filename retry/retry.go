/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsRetryable defines a func that can tell if error is retryable as opposed to persistent.
type IsRetryable func(error) bool

// RetryableFunc is function that does some work and can be potentially retried.
type RetryableFunc func(ctx context.Context) error

// Policy defines backoff strategy.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// DoWithRetry executes fn with retry according to policy p and with respect to context ctx.
// IsRetryable defines which errors lead to retry attempt (can be nil for any error).
// Notify can be used to receive notification on every retry with error and backoff delay
// (can be nil if no notifications required).
func DoWithRetry(ctx context.Context, p Policy, isRetryable IsRetryable, notify backoff.Notify, fn RetryableFunc) error {
	return DoWithRetryAndTimer(ctx, p, isRetryable, notify, nil, fn)
}

// DoWithRetryAndTimer is the same as DoWithRetry but waits between attempts using the passed timer.
// Nil timer means the real-time timer.
func DoWithRetryAndTimer(
	ctx context.Context, p Policy, isRetryable IsRetryable, notify backoff.Notify, timer backoff.Timer, fn RetryableFunc,
) error {
	bctx := backoff.WithContext(p.NewBackOff(), ctx)
	var op backoff.Operation = func() error {
		err := fn(bctx.Context())
		if err != nil &&
			(isRetryable != nil && !isRetryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotifyWithTimer(op, bctx, notify, timer)
}

// The PolicyFunc type is an adapter to allow the use of ordinary functions as retry.Policy.
type PolicyFunc func() backoff.BackOff

// NewBackOff implements retry.Policy.
func (f PolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// DefaultJitterFactor is the upper bound of the random addition to every delay, relative to the delay.
const DefaultJitterFactor = 0.1

// JitteredExponentialBackOff doubles the delay after every attempt starting from BaseDelay
// and adds a random jitter drawn uniformly from [0, JitterFactor*delay).
// It never stops by itself, use backoff.WithMaxRetries to limit the number of attempts.
type JitteredExponentialBackOff struct {
	BaseDelay    time.Duration
	JitterFactor float64
	Rand         func() float64 // returns a number in [0, 1), math/rand.Float64 is used if nil

	attempt int
}

var _ backoff.BackOff = (*JitteredExponentialBackOff)(nil)

// MaxBackOffDelay is the upper bound of delays returned by JitteredExponentialBackOff.
const MaxBackOffDelay = time.Duration(math.MaxInt64)

const maxDoublings = 62

// NextBackOff implements backoff.BackOff interface.
func (b *JitteredExponentialBackOff) NextBackOff() time.Duration {
	if b.BaseDelay <= 0 {
		return 0
	}
	shift := b.attempt
	if shift > maxDoublings {
		shift = maxDoublings
	}
	b.attempt++
	if b.BaseDelay > MaxBackOffDelay>>shift {
		return MaxBackOffDelay
	}
	delay := b.BaseDelay << shift
	randFloat := b.Rand
	if randFloat == nil {
		randFloat = rand.Float64
	}
	jitter := randFloat() * b.JitterFactor * float64(delay)
	if jitter >= float64(MaxBackOffDelay-delay) {
		return MaxBackOffDelay
	}
	return delay + time.Duration(jitter)
}

// Reset implements backoff.BackOff interface.
func (b *JitteredExponentialBackOff) Reset() {
	b.attempt = 0
}

// BackoffPolicy makes up to MaxAttempts attempts with exponentially growing jittered delays between them.
type BackoffPolicy struct {
	BaseDelay   time.Duration
	MaxAttempts int
	Rand        func() float64
}

// NewBackoffPolicy returns a policy with given base delay and total number of attempts.
func NewBackoffPolicy(baseDelay time.Duration, maxAttempts int) BackoffPolicy {
	return BackoffPolicy{BaseDelay: baseDelay, MaxAttempts: maxAttempts}
}

// NewBackOff implements retry.Policy.
func (p BackoffPolicy) NewBackOff() backoff.BackOff {
	var bf backoff.BackOff = &JitteredExponentialBackOff{
		BaseDelay:    p.BaseDelay,
		JitterFactor: DefaultJitterFactor,
		Rand:         p.Rand,
	}
	if p.MaxAttempts > 0 {
		bf = backoff.WithMaxRetries(bf, uint64(p.MaxAttempts-1))
	}
	bf.Reset()
	return bf
}
