/*
metrics.go - Prometheus instrumentation for the wage API

PURPOSE:
  Counts calculations by outcome, observes batch sizes and durations, and
  records HTTP requests by route pattern. Exposed on GET /metrics.

  Every method is safe on a nil *Metrics, so handlers built without
  instrumentation need no checks.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels. They match the error kinds reported by the API.
const (
	OutcomeOK                = "ok"
	OutcomeRuleNotFound      = "rule_not_found"
	OutcomeInvalidTimeFormat = "invalid_time_format"
	OutcomeInvalidInput      = "invalid_input"
	OutcomeInternal          = "internal"
)

type Metrics struct {
	registry *prometheus.Registry

	calculations  *prometheus.CounterVec
	batchRecords  prometheus.Histogram
	batchDuration prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wage_calculations_total",
			Help: "Wage calculations by outcome.",
		}, []string{"outcome"}),
		batchRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wage_batch_records",
			Help:    "Records per batch run.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wage_batch_duration_seconds",
			Help:    "Duration of batch runs.",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.calculations,
		m.batchRecords,
		m.batchDuration,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Calculation counts one calculated record.
func (m *Metrics) Calculation(outcome string) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(outcome).Inc()
}

// Batch observes one batch run.
func (m *Metrics) Batch(records int, duration time.Duration) {
	if m == nil {
		return
	}
	m.batchRecords.Observe(float64(records))
	m.batchDuration.Observe(duration.Seconds())
}

// Middleware records every request under its chi route pattern, so
// /api/companies/co-1/policy and /api/companies/co-2/policy share a series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
