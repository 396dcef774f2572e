// Package metrics exposes Prometheus instruments for the mutation pipeline
// and the HTTP layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"firmdocs/internal/domain"
)

// Pipeline counts pipeline invocations by operation and terminal outcome.
type Pipeline struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPipeline registers the pipeline instruments on reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	m := &Pipeline{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "firmdocs_pipeline_operations_total",
				Help: "Pipeline invocations by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "firmdocs_pipeline_duration_seconds",
				Help:    "Pipeline invocation latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	for _, c := range []prometheus.Collector{m.operations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one finished invocation. A nil receiver is a no-op.
func (m *Pipeline) Observe(op domain.Operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(op), outcome).Inc()
	m.duration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}

// Operations exposes the counter for tests.
func (m *Pipeline) Operations() *prometheus.CounterVec {
	return m.operations
}

// HTTP counts requests by method, route pattern and status.
type HTTP struct {
	requests *prometheus.CounterVec
}

// NewHTTP registers the HTTP request counter on reg.
func NewHTTP(reg prometheus.Registerer) (*HTTP, error) {
	m := &HTTP{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "firmdocs_http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
	}
	if err := reg.Register(m.requests); err != nil {
		return nil, err
	}
	return m, nil
}

// Middleware returns the gin handler that counts requests. /metrics itself
// is not counted.
func (m *HTTP) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Requests exposes the counter for tests.
func (m *HTTP) Requests() *prometheus.CounterVec {
	return m.requests
}
