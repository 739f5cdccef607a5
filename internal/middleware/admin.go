package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mcp-registry/backend/internal/models"
	"github.com/mcp-registry/backend/pkg/response"
)

// RequireAdmin returns a middleware that allows only admin principals.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := c.Get(ContextPrincipal)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		principal, _ := val.(models.Principal)
		if !principal.IsAdmin {
			response.Forbidden(c, "admin privileges required")
			c.Abort()
			return
		}
		c.Next()
	}
}
