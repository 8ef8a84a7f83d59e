package jobmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	require.NoError(t, metrics.Track("dashboard:invalidate").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, metrics.Track("dashboard:invalidate").End(boom), boom)

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `crm_jobs_total{job="dashboard:invalidate",status="success"} 1`)
	assert.Contains(t, body, `crm_jobs_total{job="dashboard:invalidate",status="failure"} 1`)
	assert.Contains(t, body, "crm_job_duration_seconds_count")
}

func TestNilMetricsTrackerIsSafe(t *testing.T) {
	var metrics *Metrics
	assert.NoError(t, metrics.Track("x").End(nil))
}
