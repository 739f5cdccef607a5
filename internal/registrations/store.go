package registrations

import (
	"context"

	"github.com/google/uuid"

	"github.com/mcp-registry/backend/internal/models"
)

// ListFilter narrows a registration listing. Zero values mean "no filter";
// the service applies limit defaults and the visibility rule before the
// filter reaches the store.
type ListFilter struct {
	Status      *models.Status
	SubmitterID *uuid.UUID
	Search      string
	Limit       int
	Offset      int
}

// ListResult is one page of registrations. Total counts matches before
// pagination so callers can compute page counts.
type ListResult struct {
	Total   int                   `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
	Results []models.Registration `json:"results"`
}

// Store is the persistence contract for registrations. Implementations
// return the package error taxonomy (ErrNotFound, ErrConflict,
// ErrInvalidTransition, ErrStoreUnavailable) and write the matching audit
// entry in the same transaction as each mutation.
type Store interface {
	// Create inserts reg as Pending, assigning ID and timestamps.
	// Returns ErrConflict when the endpoint URL exists in any status.
	Create(ctx context.Context, reg *models.Registration) error
	// GetByID returns the registration or ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	// GetByURL returns the registration with the exact endpoint URL or ErrNotFound.
	GetByURL(ctx context.Context, endpointURL string) (*models.Registration, error)
	// List returns one page ordered newest first (created_at, then id).
	List(ctx context.Context, f ListFilter) (*ListResult, error)
	// Review atomically moves a Pending registration to newStatus,
	// stamping approver and approval time. A non-Pending target yields
	// ErrInvalidTransition; a missing one ErrNotFound.
	Review(ctx context.Context, id uuid.UUID, newStatus models.Status, approverID uuid.UUID, reason string) (*models.Registration, error)
	// Delete removes the registration or returns ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID) error
}
