package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmdocs/internal/domain"
	"firmdocs/internal/metrics"
)

func TestPipeline_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPipeline(reg)
	require.NoError(t, err)

	m.Observe(domain.OpUpload, "completed", 10*time.Millisecond)
	m.Observe(domain.OpUpload, "completed", 5*time.Millisecond)
	m.Observe(domain.OpUpload, "denied", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations().WithLabelValues(string(domain.OpUpload), "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations().WithLabelValues(string(domain.OpUpload), "denied")))

	// Registering twice on one registry fails.
	_, err = metrics.NewPipeline(reg)
	assert.Error(t, err)

	var nilMetrics *metrics.Pipeline
	assert.NotPanics(t, func() { nilMetrics.Observe(domain.OpUpload, "completed", time.Millisecond) })
}

func TestHTTP_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := metrics.NewHTTP(prometheus.NewRegistry())
	require.NoError(t, err)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/documents/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/documents/1", "/documents/2", "/nope", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests().WithLabelValues("GET", "/documents/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests().WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Requests()))
}
