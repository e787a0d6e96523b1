package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveIngest(t *testing.T) {
	m := New()

	m.ObserveIngest(IngestSuccess, "mobile")
	m.ObserveIngest(IngestSuccess, "mobile")
	m.ObserveIngest(IngestError, "desktop")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PageViewIngestTotal.WithLabelValues(IngestSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PageViewIngestTotal.WithLabelValues(IngestError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PageViewsByDevice.WithLabelValues("mobile")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PageViewsByDevice.WithLabelValues("desktop")))
}

func TestObserveIngestNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveIngest(IngestSuccess, "mobile") })
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/ping", "200")))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "blog_http_requests_total"))
}
