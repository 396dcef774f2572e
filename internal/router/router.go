package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"firmdocs/internal/handler"
	"firmdocs/internal/metrics"
	"firmdocs/internal/middleware"
	"firmdocs/internal/port"
	"firmdocs/internal/service"
)

// Deps holds everything the HTTP surface is wired from.
type Deps struct {
	Verifier       service.TokenVerifier
	Roles          port.RoleResolver
	DocumentH      *handler.DocumentHandler
	AuditH         *handler.AuditHandler
	HealthH        *handler.HealthHandler
	HTTPMetrics    *metrics.HTTP
	MetricsHandler http.Handler
	CORSOrigins    []string
	Logger         *slog.Logger
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(d Deps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.CORS(d.CORSOrigins))
	if d.HTTPMetrics != nil {
		r.Use(d.HTTPMetrics.Middleware())
	}

	// Health checks
	r.GET("/healthz", d.HealthH.Liveness)
	r.GET("/readyz", d.HealthH.Readiness)
	if d.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}

	// Requests without a valid token still reach the handlers so that the
	// pipeline can record the unauthorized attempt.
	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(d.Verifier, d.Roles, d.Logger))

	docs := v1.Group("/documents")
	docs.POST("", d.DocumentH.Upload)
	docs.POST("/:id/versions", d.DocumentH.CreateVersion)
	docs.GET("/:id/versions", d.DocumentH.ListVersions)
	docs.POST("/:id/versions/:version/restore", d.DocumentH.Restore)
	docs.POST("/:id/archive", d.DocumentH.Archive)

	audit := v1.Group("/audit")
	audit.GET("", d.AuditH.Query)
	audit.GET("/export", d.AuditH.Export)
	audit.GET("/verify", d.AuditH.Verify)

	return r
}
