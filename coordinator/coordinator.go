/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package coordinator executes keyed requests with optional result caching, retries
// and supersession: a newer request for a key cancels the one still in flight.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/acronis/go-reqkit/log"
	"github.com/acronis/go-reqkit/reqerr"
	"github.com/acronis/go-reqkit/retry"
	"github.com/acronis/go-reqkit/ttlcache"
)

// Cancellation causes of in-flight requests.
var (
	ErrSuperseded      = errors.New("request superseded by a newer one")
	ErrRequestCanceled = errors.New("request canceled")
	ErrClosed          = errors.New("coordinator is closed")
)

// PanicError is wrapped into the error returned to the caller whose operation panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

// Error implements error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("request operation panicked: %v", e.Value)
}

// RequestOpts determines how a single request is executed.
type RequestOpts struct {
	// UseCache makes the request return a fresh cached value if any and cache the successful result.
	UseCache bool

	// TTL of the cached result. Zero means the default TTL of the cache.
	TTL time.Duration

	// Retry enables retries of the operation with the given parameters.
	Retry *retry.Params

	// Timeout bounds the operation when Retry is not set (Retry.AttemptTimeout is used otherwise).
	Timeout time.Duration
}

// Opts represents options for Coordinator.
type Opts[K comparable, V any] struct {
	// Cache stores successful results. A new unbounded cache without default TTL is created if nil.
	Cache *ttlcache.Cache[K, V]

	// Retrier executes requests with retries. A retrier with default options is used if nil.
	Retrier *retry.Retrier

	// Logger is used for logging supersessions and cancellations. Logging is disabled if nil.
	Logger log.FieldLogger

	// MetricsCollector is used to collect request statistics. Metrics are disabled if nil.
	MetricsCollector MetricsCollector
}

type inFlightRequest struct {
	id     xid.ID
	cancel context.CancelCauseFunc
}

// Coordinator keeps at most one in-flight request per key.
type Coordinator[K comparable, V any] struct {
	cache            *ttlcache.Cache[K, V]
	retrier          *retry.Retrier
	logger           log.FieldLogger
	metricsCollector MetricsCollector

	mu       sync.Mutex
	inFlight map[K]*inFlightRequest
	closed   bool
}

// New creates a new Coordinator.
func New[K comparable, V any](opts Opts[K, V]) (*Coordinator[K, V], error) {
	if opts.Cache == nil {
		cache, err := ttlcache.New[K, V](ttlcache.Options{})
		if err != nil {
			return nil, err
		}
		opts.Cache = cache
	}
	if opts.Retrier == nil {
		opts.Retrier = retry.NewRetrier(retry.RetrierOpts{Logger: opts.Logger})
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetricsCollector
	}
	return &Coordinator[K, V]{
		cache:            opts.Cache,
		retrier:          opts.Retrier,
		logger:           opts.Logger,
		metricsCollector: opts.MetricsCollector,
		inFlight:         make(map[K]*inFlightRequest),
	}, nil
}

// Execute runs op for key. A fresh cached value is returned without calling op when opts.UseCache is set.
// Otherwise, a request that is still in flight for the same key is canceled with ErrSuperseded cause,
// and op is called with a context that is canceled on supersession, Cancel or Close.
// A canceled request always results in a *reqerr.Error of KindCanceled kind, even if op returned a value,
// and its result is never cached. Failures are returned as *reqerr.Error and are never cached as well.
// A panic of op is recovered and returned as *reqerr.Error wrapping *PanicError.
func (c *Coordinator[K, V]) Execute(
	ctx context.Context, key K, op func(ctx context.Context) (V, error), opts RequestOpts,
) (V, error) {
	var zero V

	if opts.UseCache {
		if val, ok := c.cache.Get(key); ok {
			c.metricsCollector.IncRequests(RequestResultCacheHit)
			return val, nil
		}
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	req := &inFlightRequest{id: xid.New(), cancel: cancel}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, ErrClosed
	}
	if prev, ok := c.inFlight[key]; ok {
		prev.cancel(ErrSuperseded)
		c.metricsCollector.IncSupersessions()
		c.logger.Debug("request superseded",
			log.Any("key", key), log.String("request_id", prev.id.String()),
			log.String("new_request_id", req.id.String()))
	}
	c.inFlight[key] = req
	c.metricsCollector.SetInFlight(len(c.inFlight))
	c.mu.Unlock()

	val, err := c.safeInvoke(reqCtx, key, op, opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	// The request may have been superseded or canceled, so the handle is removed only if it's still its own.
	if cur, ok := c.inFlight[key]; ok && cur.id == req.id {
		delete(c.inFlight, key)
		c.metricsCollector.SetInFlight(len(c.inFlight))
	}

	if reqCtx.Err() != nil {
		classified := reqerr.Classify(reqCtx, reqCtx.Err())
		c.incResult(classified)
		return zero, classified
	}
	if err != nil {
		c.incResult(err)
		return zero, err
	}
	if opts.UseCache {
		ttl := opts.TTL
		if ttl == 0 {
			c.cache.Add(key, val)
		} else {
			c.cache.Set(key, val, ttl)
		}
	}
	c.metricsCollector.IncRequests(RequestResultSuccess)
	return val, nil
}

func (c *Coordinator[K, V]) safeInvoke(
	ctx context.Context, key K, op func(ctx context.Context) (V, error), opts RequestOpts,
) (val V, err error) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("request operation panicked", log.Any("key", key), log.Any("panic", p))
			var zero V
			val, err = zero, reqerr.Classify(ctx, &PanicError{Value: p, Stack: debug.Stack()})
		}
	}()
	return c.invoke(ctx, op, opts)
}

func (c *Coordinator[K, V]) invoke(ctx context.Context, op func(ctx context.Context) (V, error), opts RequestOpts) (V, error) {
	if opts.Retry != nil {
		return retry.Execute(ctx, c.retrier, *opts.Retry, op)
	}

	opCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	val, err := op(opCtx)
	if err == nil {
		return val, nil
	}
	if opts.Timeout > 0 && ctx.Err() == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return val, reqerr.Timeout(err)
	}
	return val, reqerr.Classify(ctx, err)
}

func (c *Coordinator[K, V]) incResult(err error) {
	if reqerr.IsCanceled(err) {
		c.metricsCollector.IncRequests(RequestResultCanceled)
		return
	}
	c.metricsCollector.IncRequests(RequestResultFailure)
}

// Cancel cancels the in-flight request for key with ErrRequestCanceled cause.
// It reports whether there was such a request, canceling an idle key does nothing.
func (c *Coordinator[K, V]) Cancel(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.inFlight[key]
	if !ok {
		return false
	}
	req.cancel(ErrRequestCanceled)
	delete(c.inFlight, key)
	c.metricsCollector.SetInFlight(len(c.inFlight))
	c.logger.Debug("request canceled", log.Any("key", key), log.String("request_id", req.id.String()))
	return true
}

// ClearCache removes the cached result for key.
func (c *Coordinator[K, V]) ClearCache(key K) {
	c.cache.Delete(key)
}

// ClearAllCache removes all cached results.
func (c *Coordinator[K, V]) ClearAllCache() {
	c.cache.Clear()
}

// InFlight returns the number of keys with a request in flight.
func (c *Coordinator[K, V]) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}

// Close cancels all in-flight requests with ErrClosed cause. Execute returns ErrClosed afterwards.
func (c *Coordinator[K, V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for key, req := range c.inFlight {
		req.cancel(ErrClosed)
		delete(c.inFlight, key)
	}
	c.metricsCollector.SetInFlight(0)
}
