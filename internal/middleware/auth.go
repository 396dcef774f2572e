package middleware

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"firmdocs/internal/domain"
	"firmdocs/internal/port"
	"firmdocs/internal/service"
)

// ContextKeyActor is the gin context key holding the resolved *domain.Actor.
const ContextKeyActor = "actor"

// AuthMiddleware validates the bearer token and resolves the caller's role
// to a permission set. It never aborts: a request without a valid token
// continues with no actor, and the pipeline records and rejects it as
// unauthorized.
func AuthMiddleware(verifier service.TokenVerifier, roles port.RoleResolver, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.Next()
			return
		}

		claims, err := verifier.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			logger.Debug("middleware.Auth: token rejected", "request_id", GetRequestID(c), "error", err)
			c.Next()
			return
		}

		perms, err := roles.Resolve(c.Request.Context(), claims.TenantID, claims.UserID, claims.Role)
		if err != nil {
			logger.Error("middleware.Auth: role resolution failed",
				"request_id", GetRequestID(c), "role", claims.Role, "error", err)
			perms = domain.PermissionSet{}
		}

		c.Set(ContextKeyActor, &domain.Actor{
			ID:          claims.UserID,
			TenantID:    claims.TenantID,
			Role:        claims.Role,
			Permissions: perms,
			IPAddress:   c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
			RequestID:   GetRequestID(c),
		})
		c.Next()
	}
}

// GetActor returns the authenticated actor, or nil when the request carried
// no valid token.
func GetActor(c *gin.Context) *domain.Actor {
	v, ok := c.Get(ContextKeyActor)
	if !ok {
		return nil
	}
	actor, _ := v.(*domain.Actor)
	return actor
}
