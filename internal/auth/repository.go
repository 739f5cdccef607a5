package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcp-registry/backend/internal/models"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts a user keyed by the provider account id, refreshing email
// and display name on conflict. The admin flag is preserved; SyncAdmin
// updates it when the token's group claim disagrees.
func (r *Repository) Upsert(ctx context.Context, entraID, email, displayName string) (*models.User, error) {
	const q = `INSERT INTO users (entra_id, email, display_name)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (entra_id) DO UPDATE
		SET email = EXCLUDED.email,
		    display_name = EXCLUDED.display_name,
		    updated_at = NOW()
		RETURNING user_id, entra_id, email, COALESCE(display_name, ''), is_admin, created_at, updated_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, entraID, email, displayName).
		Scan(&u.ID, &u.EntraID, &u.Email, &u.DisplayName, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SyncAdmin sets the admin flag for a user.
func (r *Repository) SyncAdmin(ctx context.Context, userID uuid.UUID, isAdmin bool) error {
	const q = `UPDATE users SET is_admin = $1, updated_at = NOW() WHERE user_id = $2`
	_, err := r.pool.Exec(ctx, q, isAdmin, userID)
	return err
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT user_id, entra_id, email, COALESCE(display_name, ''), is_admin, created_at, updated_at
		FROM users WHERE user_id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&u.ID, &u.EntraID, &u.Email, &u.DisplayName, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
