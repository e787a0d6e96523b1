package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 页面访问记录结果标签。
const (
	IngestSuccess = "success"
	IngestError   = "error"
)

// Metrics holds the Prometheus collectors exposed by the server.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PageViewIngestTotal *prometheus.CounterVec
	PageViewsByDevice   *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blog_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PageViewIngestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_pageview_ingest_total",
				Help: "Page view ingestion attempts by result",
			},
			[]string{"result"},
		),
		PageViewsByDevice: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_pageviews_by_device_total",
				Help: "Recorded page views by derived device type",
			},
			[]string{"device"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PageViewIngestTotal,
		m.PageViewsByDevice,
	)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveIngest counts one ingestion attempt. device is ignored on failure.
func (m *Metrics) ObserveIngest(result, device string) {
	if m == nil {
		return
	}
	m.PageViewIngestTotal.WithLabelValues(result).Inc()
	if result == IngestSuccess && device != "" {
		m.PageViewsByDevice.WithLabelValues(device).Inc()
	}
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
