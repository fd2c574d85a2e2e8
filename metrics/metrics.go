// Package metrics exposes Prometheus counters and histograms for HTTP traffic
// and document-store calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	rateLimited  *prometheus.CounterVec
}

// NewCollector creates the collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staff_portal_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staff_portal_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staff_portal_store_operations_total",
			Help: "Document store calls by operation and result.",
		}, []string{"operation", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staff_portal_store_operation_duration_seconds",
			Help:    "Document store call latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staff_portal_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(c.httpRequests, c.httpLatency, c.storeOps, c.storeLatency, c.rateLimited)
	return c
}

// ObserveStoreOperation implements store.Recorder.
func (c *Collector) ObserveStoreOperation(operation string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.storeOps.WithLabelValues(operation, result).Inc()
	c.storeLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRateLimited counts a rejected request.
func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// Middleware records request counts and latency labelled by the matched mux
// route template, so path parameters don't explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		route := RouteTemplate(r)
		c.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(m.Code)).Inc()
		c.httpLatency.WithLabelValues(route, r.Method).Observe(m.Duration.Seconds())
	})
}

// RouteTemplate returns the path template of the mux route serving r, or
// "unmatched".
func RouteTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if template, err := route.GetPathTemplate(); err == nil {
			return template
		}
	}
	return "unmatched"
}

// Handler serves the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
