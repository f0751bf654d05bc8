package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.IncError("upload_failed") })
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics("autoecole_test")
	m.IncError("convert_failed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("convert_failed")))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware(m))
	r.GET("/api/articles", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, p := range []string{"/api/articles", "/api/articles", "/health", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("GET", "/api/articles", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("GET", "unmatched", "404")))
}
