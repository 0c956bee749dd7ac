package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/metrics"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCalculationCounts(t *testing.T) {
	m := metrics.New()

	m.Calculation(metrics.OutcomeOK)
	m.Calculation(metrics.OutcomeOK)
	m.Calculation(metrics.OutcomeRuleNotFound)
	m.Batch(3, 20*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `wage_calculations_total{outcome="ok"} 2`)
	assert.Contains(t, body, `wage_calculations_total{outcome="rule_not_found"} 1`)
	assert.Contains(t, body, "wage_batch_records_count 1")
}

func TestMiddleware_RoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/companies/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/companies/"+id, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `http_requests_total{route="/companies/{id}",status="418"} 2`)
	assert.Equal(t, 1, strings.Count(body, "http_requests_total{"))
}

func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.Calculation(metrics.OutcomeOK)
		m.Batch(1, time.Second)
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
