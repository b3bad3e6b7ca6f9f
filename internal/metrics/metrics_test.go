package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLogin("rejected")
	m.ObserveLogin("rejected")
	m.ObserveLogin("authenticated")
	m.ObserveStockAdjustment("IN")
	m.ObserveHTTPRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `backoffice_login_attempts_total{outcome="rejected"} 2`)
	assert.Contains(t, body, `backoffice_login_attempts_total{outcome="authenticated"} 1`)
	assert.Contains(t, body, `backoffice_stock_adjustments_total{kind="IN"} 1`)
	assert.Contains(t, body, `backoffice_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
}

func TestNew_DefaultRegistryCarriesRuntimeCollectors(t *testing.T) {
	m := New(nil)
	assert.Contains(t, scrape(t, m), "go_goroutines")
}
