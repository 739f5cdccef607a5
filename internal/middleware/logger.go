package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcp-registry/backend/internal/models"
)

// Logger returns a zap-based request logging middleware. The principal id
// is included when the request was authenticated.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		clientIP := c.ClientIP()
		method := c.Request.Method

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("client_ip", clientIP),
		}
		if val, ok := c.Get(ContextPrincipal); ok {
			if principal, ok := val.(models.Principal); ok {
				fields = append(fields, zap.String("user_id", principal.UserID.String()))
			}
		}
		logger.Info("request", fields...)
	}
}
