package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	mutations        *prometheus.CounterVec
	advisoryRequests *prometheus.CounterVec
	advisoryDuration prometheus.Histogram
	rosterExports    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amsmonitor_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amsmonitor_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amsmonitor_record_mutations_total",
				Help: "Patient record mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		advisoryRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amsmonitor_advisory_requests_total",
				Help: "Dosing advisory requests by check kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		advisoryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "amsmonitor_advisory_request_duration_seconds",
				Help:    "Latency of the dosing advisory service",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
		rosterExports: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "amsmonitor_roster_exports_total",
				Help: "Roster spreadsheets generated",
			},
		),
	}
	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.mutations,
		m.advisoryRequests,
		m.advisoryDuration,
		m.rosterExports,
	)
	return m
}

// Mutation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

func (m *Metrics) RecordMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) RecordAdvisory(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.advisoryRequests.WithLabelValues(kind, outcome).Inc()
	m.advisoryDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordRosterExport() {
	if m == nil {
		return
	}
	m.rosterExports.Inc()
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			m.httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the exposition format for g.
func Handler(g prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
