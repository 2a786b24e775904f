/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package batcher

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of batching metrics.
type MetricsCollector interface {
	// IncFlushes increments the total number of executed (non-empty) batches.
	IncFlushes()

	// ObserveBatchSize observes the number of operations in an executed batch.
	ObserveBatchSize(int)
}

// DefaultBatchSizeBuckets are the default buckets for the batch size histogram.
var DefaultBatchSizeBuckets = []float64{1, 2, 5, 10, 20, 50, 100, 200}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// BatchSizeBuckets are buckets for the batch size histogram. DefaultBatchSizeBuckets are used if nil.
	BatchSizeBuckets []float64
}

// PrometheusMetrics represents Prometheus metrics for the batcher.
type PrometheusMetrics struct {
	FlushesTotal prometheus.Counter
	BatchSize    prometheus.Histogram
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	buckets := opts.BatchSizeBuckets
	if buckets == nil {
		buckets = DefaultBatchSizeBuckets
	}
	return &PrometheusMetrics{
		FlushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "batcher_flushes_total",
			Help:        "Number of executed batches.",
			ConstLabels: opts.ConstLabels,
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "batcher_batch_size",
			Help:        "Number of operations in executed batches.",
			Buckets:     buckets,
			ConstLabels: opts.ConstLabels,
		}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.FlushesTotal, pm.BatchSize)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.FlushesTotal)
	prometheus.Unregister(pm.BatchSize)
}

// IncFlushes increments the total number of executed batches.
func (pm *PrometheusMetrics) IncFlushes() {
	pm.FlushesTotal.Inc()
}

// ObserveBatchSize observes the number of operations in an executed batch.
func (pm *PrometheusMetrics) ObserveBatchSize(n int) {
	pm.BatchSize.Observe(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) IncFlushes()          {}
func (disabledMetrics) ObserveBatchSize(int) {}

var disabledMetricsCollector = disabledMetrics{}
