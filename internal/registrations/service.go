package registrations

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcp-registry/backend/internal/models"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// SubmitInput is the caller-provided payload for a new registration.
type SubmitInput struct {
	EndpointURL  string        `json:"endpoint_url"`
	EndpointName string        `json:"endpoint_name"`
	Description  string        `json:"description"`
	OwnerContact string        `json:"owner_contact"`
	Tools        []models.Tool `json:"available_tools"`
}

// ListOptions are the caller-facing list parameters before visibility
// rules are applied.
type ListOptions struct {
	Status      *models.Status
	SubmitterID *uuid.UUID
	Search      string
	Limit       int
	Offset      int
}

// Service holds the registration business rules: validation, the review
// state machine, and role-based visibility.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a registrations service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Submit validates and creates a Pending registration owned by the caller.
func (s *Service) Submit(ctx context.Context, p models.Principal, in SubmitInput) (*models.Registration, error) {
	in.EndpointURL = strings.TrimSpace(in.EndpointURL)
	in.EndpointName = strings.TrimSpace(in.EndpointName)
	in.Description = strings.TrimSpace(in.Description)
	in.OwnerContact = strings.TrimSpace(in.OwnerContact)
	if verr := validateSubmit(in); verr != nil {
		return nil, verr
	}

	tools := in.Tools
	if tools == nil {
		tools = []models.Tool{}
	}
	reg := &models.Registration{
		EndpointURL:  in.EndpointURL,
		EndpointName: in.EndpointName,
		Description:  in.Description,
		OwnerContact: in.OwnerContact,
		Tools:        tools,
		SubmitterID:  p.UserID,
	}
	if err := s.store.Create(ctx, reg); err != nil {
		return nil, err
	}
	s.logger.Info("registration submitted",
		zap.String("registration_id", reg.ID.String()),
		zap.String("submitter_id", p.UserID.String()))
	return reg, nil
}

// GetByID returns a single registration, subject to visibility: admins see
// everything, other callers see Approved registrations and their own. A
// hidden registration reads as not found, never as forbidden.
func (s *Service) GetByID(ctx context.Context, p models.Principal, id uuid.UUID) (*models.Registration, error) {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(p, reg) {
		return nil, ErrNotFound
	}
	return reg, nil
}

// GetByURL looks up the registration holding an endpoint URL, with the
// same visibility rule as GetByID.
func (s *Service) GetByURL(ctx context.Context, p models.Principal, endpointURL string) (*models.Registration, error) {
	reg, err := s.store.GetByURL(ctx, strings.TrimSpace(endpointURL))
	if err != nil {
		return nil, err
	}
	if !visible(p, reg) {
		return nil, ErrNotFound
	}
	return reg, nil
}

// List returns a page of registrations. Non-admin callers are restricted
// to Approved registrations regardless of the requested status filter.
func (s *Service) List(ctx context.Context, p models.Principal, opts ListOptions) (*ListResult, error) {
	f, err := buildFilter(opts)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin {
		approved := models.StatusApproved
		f.Status = &approved
	}
	return s.store.List(ctx, *f)
}

// ListMine returns the caller's own registrations in every status.
func (s *Service) ListMine(ctx context.Context, p models.Principal, opts ListOptions) (*ListResult, error) {
	f, err := buildFilter(opts)
	if err != nil {
		return nil, err
	}
	id := p.UserID
	f.SubmitterID = &id
	return s.store.List(ctx, *f)
}

// Review approves or rejects a Pending registration. Only admins may
// review, and never their own submissions.
func (s *Service) Review(ctx context.Context, p models.Principal, id uuid.UUID, newStatus models.Status, reason string) (*models.Registration, error) {
	if !newStatus.Terminal() {
		return nil, ErrInvalidTransition
	}
	if !p.IsAdmin {
		return nil, ErrForbidden
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// submitter_id never changes, so this check holds across the
	// conditional update below.
	if current.SubmitterID == p.UserID {
		return nil, ErrForbidden
	}

	reg, err := s.store.Review(ctx, id, newStatus, p.UserID, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	s.logger.Info("registration reviewed",
		zap.String("registration_id", reg.ID.String()),
		zap.String("new_status", string(reg.Status)),
		zap.String("approver_id", p.UserID.String()))
	return reg, nil
}

// Remove deletes a registration. Admin only, in any status; ownership is
// irrelevant. A repeat call reads as NotFound, which callers treat as
// already satisfied.
func (s *Service) Remove(ctx context.Context, p models.Principal, id uuid.UUID) error {
	if !p.IsAdmin {
		return ErrForbidden
	}
	if err := s.store.Delete(ctx, id, p.UserID); err != nil {
		return err
	}
	s.logger.Info("registration removed",
		zap.String("registration_id", id.String()),
		zap.String("deleted_by", p.UserID.String()))
	return nil
}

func visible(p models.Principal, reg *models.Registration) bool {
	return p.IsAdmin || reg.Status == models.StatusApproved || reg.SubmitterID == p.UserID
}

func buildFilter(opts ListOptions) (*ListFilter, error) {
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "must be Pending, Approved or Rejected"}}
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, &ValidationError{Fields: map[string]string{"pagination": "limit and offset must not be negative"}}
	}
	limit := opts.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return &ListFilter{
		Status:      opts.Status,
		SubmitterID: opts.SubmitterID,
		Search:      strings.TrimSpace(opts.Search),
		Limit:       limit,
		Offset:      opts.Offset,
	}, nil
}
