/*
metrics.go - Prometheus instrumentation for the HTTP API

PURPOSE:
  Counts requests and deviation commits. Each Handler owns its registry so
  tests can build many handlers without duplicate registration panics.

EXPOSED METRICS (namespace "wfe"):
  http_requests_total{route,method,status}
  http_request_duration_seconds{route,method}
  deviation_sessions_opened_total
  deviation_commits_total{outcome}
  deviation_minutes_total{category}
  ladder_resolutions_total{ladder}
  pending_time_entries

SEE ALSO:
  - server.go: middleware and /metrics route
  - scheduler.go: refreshes pending_time_entries
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/workforce-engine/deviation"
)

const metricsNamespace = "wfe"

// Metrics holds the API's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	SessionsOpened    prometheus.Counter
	Commits           *prometheus.CounterVec
	DeviationMinutes  *prometheus.CounterVec
	LadderResolutions *prometheus.CounterVec
	PendingEntries    prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"route", "method"},
		),
		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deviation_sessions_opened_total",
			Help:      "Deviation sessions opened for review",
		}),
		Commits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "deviation_commits_total",
				Help:      "Deviation commit attempts by outcome",
			},
			[]string{"outcome"},
		),
		DeviationMinutes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "deviation_minutes_total",
				Help:      "Absolute minutes booked per category",
			},
			[]string{"category"},
		),
		LadderResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ladder_resolutions_total",
				Help:      "Ladder level lookups",
			},
			[]string{"ladder"},
		),
		PendingEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_time_entries",
			Help:      "Time entries waiting for deviation review",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records count and latency per matched route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
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
		m.RequestCount.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) recordCommit(outcome string, entries []deviation.Entry) {
	m.Commits.WithLabelValues(outcome).Inc()
	for _, e := range entries {
		minutes := e.Minutes
		if minutes < 0 {
			minutes = -minutes
		}
		m.DeviationMinutes.WithLabelValues(e.Category.String()).Add(float64(minutes))
	}
}
