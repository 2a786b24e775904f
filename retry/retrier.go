/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/acronis/go-reqkit/log"
	"github.com/acronis/go-reqkit/reqerr"
)

// Default parameter values for Params.
const (
	DefaultMaxRetries     = 3
	DefaultBaseDelay      = time.Second
	DefaultAttemptTimeout = 10 * time.Second
)

// Params determines how a single operation is retried.
type Params struct {
	// MaxRetries is the total number of attempts, including the first one.
	MaxRetries int

	// BaseDelay is the delay before the second attempt. Every next delay is doubled.
	BaseDelay time.Duration

	// AttemptTimeout bounds every attempt. Zero means no per-attempt timeout.
	AttemptTimeout time.Duration
}

// DefaultParams returns Params with default values.
func DefaultParams() Params {
	return Params{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay, AttemptTimeout: DefaultAttemptTimeout}
}

// Validate checks that params are consistent.
func (p Params) Validate() error {
	if p.MaxRetries < 1 {
		return fmt.Errorf("max retries should be positive, got %d", p.MaxRetries)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("base delay should not be negative, got %s", p.BaseDelay)
	}
	if p.AttemptTimeout < 0 {
		return fmt.Errorf("attempt timeout should not be negative, got %s", p.AttemptTimeout)
	}
	return nil
}

// RetrierOpts represents options for Retrier.
type RetrierOpts struct {
	// Logger is used for logging retry attempts.
	// When it's necessary to use context-specific logger, LoggerProvider should be used instead.
	Logger log.FieldLogger

	// LoggerProvider is a function that provides a context-specific logger.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// Clock is used for waiting between attempts. Real clock is used by default.
	Clock clock.Clock

	// Notify is called before every wait with the error of the failed attempt and the delay.
	Notify backoff.Notify

	// Rand returns random numbers in [0, 1) for jitter. math/rand.Float64 is used by default.
	Rand func() float64
}

// Retrier executes operations with bounded retries, exponential delays and jitter.
// Client errors (4xx except 429) and cancellations are never retried.
// Retrier has no mutable state and may be shared between goroutines.
type Retrier struct {
	logger         log.FieldLogger
	loggerProvider func(ctx context.Context) log.FieldLogger
	clock          clock.Clock
	notify         backoff.Notify
	rand           func() float64
}

// NewRetrier creates a new Retrier.
func NewRetrier(opts RetrierOpts) *Retrier {
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Retrier{
		logger:         opts.Logger,
		loggerProvider: opts.LoggerProvider,
		clock:          opts.Clock,
		notify:         opts.Notify,
		rand:           opts.Rand,
	}
}

var defaultRetrier = NewRetrier(RetrierOpts{})

// Do executes fn according to params. Every attempt receives its own context bound by params.AttemptTimeout.
// The returned error is nil or *reqerr.Error: either the fatal error of the first non-retryable failure
// or the classified error of the final attempt.
func (r *Retrier) Do(ctx context.Context, params Params, fn RetryableFunc) error {
	if err := params.Validate(); err != nil {
		return err
	}

	logger := r.ctxLogger(ctx)
	attempt := 0
	runAttempt := func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if params.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, params.AttemptTimeout)
		}
		defer cancel()
		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		classified := reqerr.Classify(ctx, err)
		if (classified.Kind == reqerr.KindUnknown || classified.Kind == reqerr.KindNetwork) &&
			errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			// The operation reported the aborted attempt in its own terms.
			return reqerr.Timeout(err)
		}
		return classified
	}
	notify := func(err error, delay time.Duration) {
		logger.Warn("operation attempt failed, retrying",
			log.Int("attempt", attempt), log.Int("max_retries", params.MaxRetries),
			log.Duration("delay", delay), log.Error(err))
		if r.notify != nil {
			r.notify(err, delay)
		}
	}
	policy := BackoffPolicy{BaseDelay: params.BaseDelay, MaxAttempts: params.MaxRetries, Rand: r.rand}
	isRetryable := func(err error) bool {
		return reqerr.KindOf(err).Retryable()
	}

	err := DoWithRetryAndTimer(ctx, policy, isRetryable, notify, &clockTimer{clock: r.clock}, runAttempt)
	if err == nil {
		return nil
	}
	classified := reqerr.Classify(ctx, err)
	if classified.Retryable() {
		logger.Warn("operation failed, no retry attempts left",
			log.Int("attempts", attempt), log.Error(classified))
	}
	return classified
}

func (r *Retrier) ctxLogger(ctx context.Context) log.FieldLogger {
	if r.loggerProvider != nil {
		return r.loggerProvider(ctx)
	}
	return r.logger
}

// Execute runs op with r according to params and returns its result.
func Execute[T any](ctx context.Context, r *Retrier, params Params, op func(ctx context.Context) (T, error)) (T, error) {
	var res T
	err := r.Do(ctx, params, func(ctx context.Context) error {
		v, opErr := op(ctx)
		if opErr != nil {
			return opErr
		}
		res = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res, nil
}

// WithBackoff runs op with up to maxRetries attempts, baseDelay*2^(n-1) (plus jitter) delays
// and attemptTimeout per attempt using a retrier with default options.
func WithBackoff[T any](
	ctx context.Context, op func(ctx context.Context) (T, error), maxRetries int, baseDelay, attemptTimeout time.Duration,
) (T, error) {
	params := Params{MaxRetries: maxRetries, BaseDelay: baseDelay, AttemptTimeout: attemptTimeout}
	return Execute(ctx, defaultRetrier, params, op)
}

// clockTimer implements backoff.Timer on top of clock.Clock, so virtual time may be used in tests.
type clockTimer struct {
	clock clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clock.Timer(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
