package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new HealthHandler. db may be nil when the
// service runs on in-memory repositories.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database not reachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
