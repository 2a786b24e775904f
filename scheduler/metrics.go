/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector represents a collector of scheduler metrics.
type MetricsCollector interface {
	// SetRunning sets the number of currently running operations.
	SetRunning(int)

	// SetQueued sets the number of operations waiting for a free slot.
	SetQueued(int)

	// ObserveQueueWait observes how long an operation waited in the queue before start.
	ObserveQueueWait(time.Duration)
}

// DefaultQueueWaitBuckets are the default buckets for the queue wait histogram (in seconds).
var DefaultQueueWaitBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// QueueWaitBuckets are buckets for the queue wait histogram. DefaultQueueWaitBuckets are used if nil.
	QueueWaitBuckets []float64
}

// PrometheusMetrics represents Prometheus metrics for the scheduler.
type PrometheusMetrics struct {
	Running   prometheus.Gauge
	Queued    prometheus.Gauge
	QueueWait prometheus.Histogram
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	buckets := opts.QueueWaitBuckets
	if buckets == nil {
		buckets = DefaultQueueWaitBuckets
	}
	return &PrometheusMetrics{
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "scheduler_running_operations",
			Help:        "Number of currently running operations.",
			ConstLabels: opts.ConstLabels,
		}),
		Queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "scheduler_queued_operations",
			Help:        "Number of operations waiting for a free slot.",
			ConstLabels: opts.ConstLabels,
		}),
		QueueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "scheduler_queue_wait_seconds",
			Help:        "Time an operation spent in the queue before start.",
			Buckets:     buckets,
			ConstLabels: opts.ConstLabels,
		}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.Running, pm.Queued, pm.QueueWait)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.Running)
	prometheus.Unregister(pm.Queued)
	prometheus.Unregister(pm.QueueWait)
}

// SetRunning sets the number of currently running operations.
func (pm *PrometheusMetrics) SetRunning(n int) {
	pm.Running.Set(float64(n))
}

// SetQueued sets the number of operations waiting for a free slot.
func (pm *PrometheusMetrics) SetQueued(n int) {
	pm.Queued.Set(float64(n))
}

// ObserveQueueWait observes how long an operation waited in the queue before start.
func (pm *PrometheusMetrics) ObserveQueueWait(d time.Duration) {
	pm.QueueWait.Observe(d.Seconds())
}

type disabledMetrics struct{}

func (disabledMetrics) SetRunning(int)                 {}
func (disabledMetrics) SetQueued(int)                  {}
func (disabledMetrics) ObserveQueueWait(time.Duration) {}

var disabledMetricsCollector = disabledMetrics{}
