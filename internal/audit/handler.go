package audit

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcp-registry/backend/internal/models"
	"github.com/mcp-registry/backend/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Handler handles audit log HTTP endpoints (admin only; gated in routing).
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an audit handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Query handles GET /audit-logs.
func (h *Handler) Query(c *gin.Context) {
	f, ok := parseQueryFilter(c)
	if !ok {
		return
	}

	result, err := h.repo.Query(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("audit query failed", zap.Error(err))
		response.Internal(c, "failed to query audit logs")
		return
	}
	response.OK(c, result)
}

// parseQueryFilter reads the filter parameters from the query string. On a
// bad parameter it writes the 400 response and returns false.
func parseQueryFilter(c *gin.Context) (QueryFilter, bool) {
	var f QueryFilter

	if v := c.Query("registration_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid registration_id")
			return QueryFilter{}, false
		}
		f.RegistrationID = &id
	}
	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid user_id")
			return QueryFilter{}, false
		}
		f.UserID = &id
	}
	if v := c.Query("action"); v != "" {
		action := models.AuditAction(v)
		if !action.Valid() {
			response.BadRequest(c, "invalid action")
			return QueryFilter{}, false
		}
		f.Action = &action
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "invalid from timestamp")
			return QueryFilter{}, false
		}
		f.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "invalid to timestamp")
			return QueryFilter{}, false
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		response.BadRequest(c, "to must not precede from")
		return QueryFilter{}, false
	}

	f.Limit = defaultLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return QueryFilter{}, false
		}
		if n > maxLimit {
			n = maxLimit
		}
		f.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(c, "invalid offset")
			return QueryFilter{}, false
		}
		f.Offset = n
	}

	return f, true
}
