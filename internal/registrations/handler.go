package registrations

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcp-registry/backend/internal/events"
	"github.com/mcp-registry/backend/internal/middleware"
	"github.com/mcp-registry/backend/internal/models"
	"github.com/mcp-registry/backend/pkg/queue"
	"github.com/mcp-registry/backend/pkg/response"
)

// Handler exposes the registration endpoints. The queue and hub are
// optional; without them review outcomes are neither queued nor pushed.
type Handler struct {
	svc    *Service
	jobs   *queue.Queue
	hub    *events.Hub
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, jobs *queue.Queue, hub *events.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, jobs: jobs, hub: hub, logger: logger}
}

// RegisterRoutes mounts the registration endpoints on an authenticated
// router group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/registrations", h.Submit)
	r.GET("/registrations", h.List)
	r.GET("/registrations/my", h.ListMine)
	r.GET("/registrations/by-url", h.GetByURL)
	r.GET("/registrations/:id", h.GetByID)
	r.PATCH("/registrations/:id/status", h.Review)
	r.DELETE("/registrations/:id", h.Remove)
}

// Submit handles POST /registrations.
func (h *Handler) Submit(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	var in SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	reg, err := h.svc.Submit(c.Request.Context(), p, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.hub != nil {
		status := reg.Status
		h.hub.Publish(events.Event{
			Action:         "created",
			RegistrationID: reg.ID,
			ActorID:        p.UserID,
			NewStatus:      &status,
		})
	}
	response.Created(c, reg)
}

// List handles GET /registrations.
func (h *Handler) List(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	opts, err := parseListOptions(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.svc.List(c.Request.Context(), p, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, result)
}

// ListMine handles GET /registrations/my.
func (h *Handler) ListMine(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	opts, err := parseListOptions(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.svc.ListMine(c.Request.Context(), p, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, result)
}

// GetByID handles GET /registrations/:id.
func (h *Handler) GetByID(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.svc.GetByID(c.Request.Context(), p, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, reg)
}

// GetByURL handles GET /registrations/by-url?endpoint_url=...
func (h *Handler) GetByURL(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	endpointURL := c.Query("endpoint_url")
	if endpointURL == "" {
		response.BadRequest(c, "endpoint_url query parameter required")
		return
	}
	reg, err := h.svc.GetByURL(c.Request.Context(), p, endpointURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, reg)
}

type reviewRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Review handles PATCH /registrations/:id/status.
func (h *Handler) Review(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	reg, err := h.svc.Review(c.Request.Context(), p, id, models.Status(req.Status), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.notifyReview(c.Request.Context(), reg, p, req.Reason)
	response.OK(c, reg)
}

// Remove handles DELETE /registrations/:id.
func (h *Handler) Remove(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	if err := h.svc.Remove(c.Request.Context(), p, id); err != nil {
		h.fail(c, err)
		return
	}
	if h.hub != nil {
		h.hub.Publish(events.Event{
			Action:         "deleted",
			RegistrationID: id,
			ActorID:        p.UserID,
		})
	}
	response.NoContent(c)
}

// notifyReview enqueues the outcome notification and pushes the event to
// the admin feed. Both are best effort; the review itself already
// committed.
func (h *Handler) notifyReview(ctx context.Context, reg *models.Registration, p models.Principal, reason string) {
	if h.jobs != nil {
		err := h.jobs.EnqueueReviewNotification(ctx, queue.ReviewNotificationPayload{
			RegistrationID: reg.ID,
			EndpointName:   reg.EndpointName,
			Recipient:      reg.OwnerContact,
			Outcome:        string(reg.Status),
			Reason:         reason,
		})
		if err != nil {
			h.logger.Warn("enqueue review notification failed",
				zap.Error(err), zap.String("registration_id", reg.ID.String()))
		}
	}
	if h.hub != nil {
		prev := models.StatusPending
		status := reg.Status
		action := "approved"
		if status == models.StatusRejected {
			action = "rejected"
		}
		h.hub.Publish(events.Event{
			Action:         action,
			RegistrationID: reg.ID,
			ActorID:        p.UserID,
			PreviousStatus: &prev,
			NewStatus:      &status,
		})
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.ValidationFailed(c, "validation failed", verr.Fields)
	case errors.Is(err, ErrConflict):
		response.Conflict(c, "endpoint_url is already registered")
	case errors.Is(err, ErrInvalidTransition):
		response.BadRequest(c, "registration is not pending review")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, "not allowed")
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "registration not found")
	case errors.Is(err, ErrStoreUnavailable):
		response.ServiceUnavailable(c, "storage unavailable")
	default:
		h.logger.Error("request failed", zap.Error(err))
		response.Internal(c, "internal error")
	}
}

func parseListOptions(c *gin.Context) (ListOptions, error) {
	var opts ListOptions
	if s := c.Query("status"); s != "" {
		status := models.Status(s)
		opts.Status = &status
	}
	if s := c.Query("submitter_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return opts, errors.New("submitter_id must be a UUID")
		}
		opts.SubmitterID = &id
	}
	opts.Search = c.Query("search")
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, errors.New("limit must be an integer")
		}
		opts.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, errors.New("offset must be an integer")
		}
		opts.Offset = n
	}
	return opts, nil
}
