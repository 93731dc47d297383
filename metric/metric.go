// Package metric provides prometheus instrumentation for the action server:
// request counts and durations per action, in-flight gauges, and stream
// chunk counters, behind a registry wrapper that owns the promhttp handler.
package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all action-server metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	StreamChunks     *prometheus.CounterVec
	StreamsActive    prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "actionkit",
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "Total action requests by action, error code and HTTP status",
			},
			[]string{"action", "code", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "actionkit",
				Subsystem: "server",
				Name:      "request_duration_seconds",
				Help:      "Action execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "actionkit",
				Subsystem: "server",
				Name:      "requests_in_flight",
				Help:      "Action requests currently executing",
			},
		),
		StreamChunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "actionkit",
				Subsystem: "stream",
				Name:      "chunks_total",
				Help:      "Total stream chunks sent by action",
			},
			[]string{"action"},
		),
		StreamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "actionkit",
				Subsystem: "stream",
				Name:      "active",
				Help:      "Event streams currently open",
			},
		),
	}
}

// Registry owns the prometheus registry and the action metrics registered
// on it.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewRegistry creates a registry with the action metrics plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            newMetrics(),
	}

	r.prometheusRegistry.MustRegister(
		r.Metrics.RequestsTotal,
		r.Metrics.RequestDuration,
		r.Metrics.RequestsInFlight,
		r.Metrics.StreamChunks,
		r.Metrics.StreamsActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Handler returns the HTTP handler exposing the registry in the
// prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the underlying registry for callers that
// register their own collectors.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// ObserveRequest records one completed action execution.
func (r *Registry) ObserveRequest(actionName, code string, httpStatus int, duration time.Duration) {
	r.Metrics.RequestsTotal.WithLabelValues(actionName, code, strconv.Itoa(httpStatus)).Inc()
	r.Metrics.RequestDuration.WithLabelValues(actionName).Observe(duration.Seconds())
}
