/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package scheduler provides an admission queue that runs at most N operations concurrently,
// starting queued operations in priority order.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/acronis/go-reqkit/log"
	"github.com/acronis/go-reqkit/reqerr"
)

// PanicError is returned to the caller whose operation panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

// Error implements error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("scheduled operation panicked: %v", e.Value)
}

// Opts represents options for Scheduler.
type Opts struct {
	// Logger is used for logging panics of scheduled operations. Logging is disabled if nil.
	Logger log.FieldLogger

	// MetricsCollector is used to collect queue statistics. Metrics are disabled if nil.
	MetricsCollector MetricsCollector
}

type entry struct {
	ctx        context.Context
	fn         func(ctx context.Context) error
	priority   int
	seq        uint64
	index      int // position in the queue, -1 once dequeued
	enqueuedAt time.Time
	done       chan error
}

// Scheduler runs submitted operations with bounded concurrency.
// While all slots are busy, operations wait in a queue ordered by priority (higher first),
// operations with equal priority start in submission order.
type Scheduler struct {
	limit            int
	logger           log.FieldLogger
	metricsCollector MetricsCollector

	mu      sync.Mutex
	queue   entryQueue
	running int
	nextSeq uint64
}

// New creates a new Scheduler that runs at most concurrencyLimit operations at once.
func New(concurrencyLimit int, opts Opts) (*Scheduler, error) {
	if concurrencyLimit <= 0 {
		return nil, fmt.Errorf("concurrency limit should be positive, got %d", concurrencyLimit)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetricsCollector
	}
	return &Scheduler{limit: concurrencyLimit, logger: opts.Logger, metricsCollector: opts.MetricsCollector}, nil
}

// Submit enqueues fn with the given priority and blocks until it settles.
// The result of fn is returned as is. If ctx is done while fn is still queued,
// fn is removed from the queue and never started, a cancellation error is returned.
// If fn has already started, Submit waits for it, fn is expected to observe ctx itself.
func (s *Scheduler) Submit(ctx context.Context, priority int, fn func(ctx context.Context) error) error {
	if ctx.Err() != nil {
		return reqerr.Classify(ctx, ctx.Err())
	}

	e := &entry{ctx: ctx, fn: fn, priority: priority, enqueuedAt: time.Now(), done: make(chan error, 1)}

	s.mu.Lock()
	e.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.queue, e)
	s.process()
	s.mu.Unlock()

	select {
	case err := <-e.done:
		return err
	case <-ctx.Done():
	}

	s.mu.Lock()
	if e.index >= 0 {
		heap.Remove(&s.queue, e.index)
		s.metricsCollector.SetQueued(s.queue.Len())
		s.mu.Unlock()
		return reqerr.Classify(ctx, ctx.Err())
	}
	s.mu.Unlock()
	return <-e.done
}

// Running returns the number of currently running operations.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Queued returns the number of operations waiting for a free slot.
func (s *Scheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// process starts queued operations while there are free slots. Must be called with s.mu held.
func (s *Scheduler) process() {
	for s.running < s.limit && s.queue.Len() > 0 {
		e := heap.Pop(&s.queue).(*entry)
		s.running++
		s.metricsCollector.ObserveQueueWait(time.Since(e.enqueuedAt))
		go s.run(e)
	}
	s.metricsCollector.SetRunning(s.running)
	s.metricsCollector.SetQueued(s.queue.Len())
}

func (s *Scheduler) run(e *entry) {
	err := s.call(e)

	s.mu.Lock()
	s.running--
	s.process()
	s.mu.Unlock()

	e.done <- err
}

func (s *Scheduler) call(e *entry) (err error) {
	defer func() {
		if p := recover(); p != nil {
			panicErr := &PanicError{Value: p, Stack: debug.Stack()}
			s.logger.Error("scheduled operation panicked",
				log.Int("priority", e.priority), log.Any("panic", p), log.String("stack", string(panicErr.Stack)))
			err = panicErr
		}
	}()
	return e.fn(e.ctx)
}

// Do submits op to s and returns its result.
func Do[T any](ctx context.Context, s *Scheduler, priority int, op func(ctx context.Context) (T, error)) (T, error) {
	var res T
	err := s.Submit(ctx, priority, func(ctx context.Context) error {
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

// entryQueue implements heap.Interface, the head is the entry with the highest priority and the lowest seq.
type entryQueue []*entry

func (q entryQueue) Len() int { return len(q) }

func (q entryQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q entryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *entryQueue) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *entryQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
