package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordMutation("stop", OutcomeOK)
		m.RecordAdvisory("renal", "ok", time.Second)
		m.RecordRosterExport()
	})
}

func TestRecordMutation(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordMutation("stop", OutcomeOK)
	m.RecordMutation("stop", OutcomeOK)
	m.RecordMutation("stop", OutcomeRejected)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("stop", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("stop", OutcomeRejected)))
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	e.GET("/metrics", Handler(reg))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/ping", "200")))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "amsmonitor_http_requests_total")
}
