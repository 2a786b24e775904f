/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package batcher coalesces operations submitted within a short time window
// and executes them together as one batch.
package batcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/acronis/go-reqkit/log"
	"github.com/acronis/go-reqkit/reqerr"
)

// ErrClosed is returned by Submit after the batcher is closed.
var ErrClosed = errors.New("batcher is closed")

// Opts represents options for Batcher.
type Opts struct {
	// MaxBatchSize makes the batch flush as soon as it collects this number of operations.
	// Zero means that the batch is flushed only when the interval elapses.
	MaxBatchSize int

	// Clock is used for the batch window timer. Real clock is used by default.
	Clock clock.Clock

	// Logger is used for logging flushes. Logging is disabled if nil.
	Logger log.FieldLogger

	// MetricsCollector is used to collect batching statistics. Metrics are disabled if nil.
	MetricsCollector MetricsCollector
}

type entry struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Batcher collects submitted operations into a window. The first operation of an empty window
// starts the window timer, when it fires all collected operations run concurrently.
// Every caller gets the result of its own operation only.
type Batcher struct {
	interval         time.Duration
	maxBatchSize     int
	clock            clock.Clock
	logger           log.FieldLogger
	metricsCollector MetricsCollector

	mu         sync.Mutex
	window     []*entry
	timer      *clock.Timer
	generation uint64 // incremented on every flush, a timer of the previous window does nothing
	closed     bool
}

// New creates a new Batcher with the given window interval.
func New(interval time.Duration, opts Opts) (*Batcher, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("batch interval should be positive, got %s", interval)
	}
	if opts.MaxBatchSize < 0 {
		return nil, fmt.Errorf("max batch size should not be negative, got %d", opts.MaxBatchSize)
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetricsCollector
	}
	return &Batcher{
		interval:         interval,
		maxBatchSize:     opts.MaxBatchSize,
		clock:            opts.Clock,
		logger:           opts.Logger,
		metricsCollector: opts.MetricsCollector,
	}, nil
}

// Submit adds fn to the current window and blocks until it is executed.
// If ctx is done before the window is flushed, fn is removed from the window and a cancellation error is returned.
func (b *Batcher) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Err() != nil {
		return reqerr.Classify(ctx, ctx.Err())
	}

	e := &entry{ctx: ctx, fn: fn, done: make(chan error, 1)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.window = append(b.window, e)
	if b.timer == nil {
		gen := b.generation
		b.timer = b.clock.AfterFunc(b.interval, func() { b.flushGeneration(gen) })
	}
	var full []*entry
	if b.maxBatchSize > 0 && len(b.window) >= b.maxBatchSize {
		full = b.takeWindow()
	}
	b.mu.Unlock()

	if full != nil {
		go b.execute(full)
	}

	select {
	case err := <-e.done:
		return err
	case <-ctx.Done():
	}

	b.mu.Lock()
	if b.removeFromWindow(e) {
		b.mu.Unlock()
		return reqerr.Classify(ctx, ctx.Err())
	}
	b.mu.Unlock()
	return <-e.done
}

// Pending returns the number of operations in the current window.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.window)
}

// Flush executes the current window immediately and waits until all its operations settle.
// Flushing an empty window does nothing.
func (b *Batcher) Flush() {
	b.mu.Lock()
	batch := b.takeWindow()
	b.mu.Unlock()
	b.execute(batch)
}

// Close flushes the current window. Submit returns ErrClosed afterwards.
func (b *Batcher) Close() {
	b.mu.Lock()
	b.closed = true
	batch := b.takeWindow()
	b.mu.Unlock()
	b.execute(batch)
}

func (b *Batcher) flushGeneration(gen uint64) {
	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		return
	}
	batch := b.takeWindow()
	b.mu.Unlock()
	b.execute(batch)
}

// takeWindow swaps the current window for an empty one and clears the timer. Must be called with b.mu held.
func (b *Batcher) takeWindow() []*entry {
	batch := b.window
	b.window = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.generation++
	return batch
}

// removeFromWindow reports whether e was still pending. Must be called with b.mu held.
func (b *Batcher) removeFromWindow(e *entry) bool {
	for i := range b.window {
		if b.window[i] != e {
			continue
		}
		b.window = append(b.window[:i], b.window[i+1:]...)
		if len(b.window) == 0 {
			b.takeWindow()
		}
		return true
	}
	return false
}

func (b *Batcher) execute(batch []*entry) {
	if len(batch) == 0 {
		return
	}
	b.metricsCollector.IncFlushes()
	b.metricsCollector.ObserveBatchSize(len(batch))
	b.logger.Debug("flushing batch", log.Int("size", len(batch)))

	var wg sync.WaitGroup
	wg.Add(len(batch))
	for _, e := range batch {
		go func(e *entry) {
			defer wg.Done()
			e.done <- b.call(e)
		}(e)
	}
	wg.Wait()
}

func (b *Batcher) call(e *entry) (err error) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("batched operation panicked", log.Any("panic", p))
			err = fmt.Errorf("batched operation panicked: %v", p)
		}
	}()
	return e.fn(e.ctx)
}

// Do submits op to b and returns its result.
func Do[T any](ctx context.Context, b *Batcher, op func(ctx context.Context) (T, error)) (T, error) {
	var res T
	err := b.Submit(ctx, func(ctx context.Context) error {
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
