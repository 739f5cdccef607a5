package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcp-registry/backend/internal/middleware"
	"github.com/mcp-registry/backend/pkg/response"
)

// Handler handles user profile HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a user handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Me handles GET /users/me. The authentication middleware already upserted
// the row, so this is a plain read of the caller's own profile.
func (h *Handler) Me(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), principal.UserID)
	if err != nil {
		h.logger.Error("get own profile failed", zap.Error(err), zap.String("user_id", principal.UserID.String()))
		response.Internal(c, "failed to load profile")
		return
	}
	response.OK(c, user)
}

// GetByID handles GET /users/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		response.NotFound(c, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("get user failed", zap.Error(err), zap.String("user_id", id.String()))
		response.Internal(c, "failed to load user")
		return
	}
	response.OK(c, user)
}
