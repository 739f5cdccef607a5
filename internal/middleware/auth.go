package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mcp-registry/backend/internal/models"
	"github.com/mcp-registry/backend/pkg/response"
)

const (
	// ContextPrincipal is the key for the authenticated principal in gin context.
	ContextPrincipal = "principal"
)

// ErrAuthUnavailable marks authentication failures caused by the user store
// rather than the credential. Authenticators wrap their store errors with it
// so the middleware can answer 503 instead of blaming the token.
var ErrAuthUnavailable = errors.New("authentication backend unavailable")

// Authenticator resolves a bearer token to a verified principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

// Auth returns a middleware that validates the bearer token and sets the
// principal in context. The token may also arrive via the "token" query
// parameter for websocket upgrades, which cannot carry headers.
func Auth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		principal, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, ErrAuthUnavailable) {
				response.ServiceUnavailable(c, "authentication is temporarily unavailable")
			} else {
				response.Unauthorized(c, "invalid or expired token")
			}
			c.Abort()
			return
		}
		c.Set(ContextPrincipal, principal)
		c.Next()
	}
}

// Principal returns the authenticated principal from context. The second
// return is false when the request did not pass the Auth middleware.
func Principal(c *gin.Context) (models.Principal, bool) {
	val, ok := c.Get(ContextPrincipal)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := val.(models.Principal)
	return p, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
