/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package coordinator

import "github.com/prometheus/client_golang/prometheus"

// Results of requests used as label values in metrics.
const (
	RequestResultCacheHit = "cache_hit"
	RequestResultSuccess  = "success"
	RequestResultFailure  = "failure"
	RequestResultCanceled = "canceled"
)

// MetricsCollector represents a collector of coordinator metrics.
type MetricsCollector interface {
	// IncRequests increments the number of finished requests with the given result.
	IncRequests(result string)

	// IncSupersessions increments the number of requests canceled by newer requests for the same key.
	IncSupersessions()

	// SetInFlight sets the number of keys with a request in flight.
	SetInFlight(int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents Prometheus metrics for the coordinator.
type PrometheusMetrics struct {
	RequestsTotal      *prometheus.CounterVec
	SupersessionsTotal prometheus.Counter
	InFlight           prometheus.Gauge
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	return &PrometheusMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "coordinator_requests_total",
			Help:        "Number of finished requests by result.",
			ConstLabels: opts.ConstLabels,
		}, []string{"result"}),
		SupersessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "coordinator_supersessions_total",
			Help:        "Number of in-flight requests canceled by newer requests for the same key.",
			ConstLabels: opts.ConstLabels,
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "coordinator_in_flight_requests",
			Help:        "Number of keys with a request in flight.",
			ConstLabels: opts.ConstLabels,
		}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.RequestsTotal, pm.SupersessionsTotal, pm.InFlight)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.RequestsTotal)
	prometheus.Unregister(pm.SupersessionsTotal)
	prometheus.Unregister(pm.InFlight)
}

// IncRequests increments the number of finished requests with the given result.
func (pm *PrometheusMetrics) IncRequests(result string) {
	pm.RequestsTotal.WithLabelValues(result).Inc()
}

// IncSupersessions increments the number of superseded requests.
func (pm *PrometheusMetrics) IncSupersessions() {
	pm.SupersessionsTotal.Inc()
}

// SetInFlight sets the number of keys with a request in flight.
func (pm *PrometheusMetrics) SetInFlight(n int) {
	pm.InFlight.Set(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) IncRequests(string) {}
func (disabledMetrics) IncSupersessions()  {}
func (disabledMetrics) SetInFlight(int)    {}

var disabledMetricsCollector = disabledMetrics{}
