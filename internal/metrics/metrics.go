// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	loginAttempts       *prometheus.CounterVec
	stockAdjustments    *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry that
// also carries the Go runtime and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backoffice_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		loginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		stockAdjustments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_stock_adjustments_total",
			Help: "Committed stock adjustments by movement kind",
		}, []string{"kind"}),
	}
}

// ObserveHTTPRequest records one request. route is the matched mux pattern
// so label cardinality stays bounded.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	s := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(method, route, s).Inc()
	m.httpRequestDuration.WithLabelValues(method, route, s).Observe(d.Seconds())
}

func (m *Metrics) ObserveLogin(outcome string) {
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStockAdjustment(kind string) {
	m.stockAdjustments.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
