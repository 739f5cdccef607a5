package worker

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcp-registry/backend/internal/models"
)

// Repository persists notification delivery records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts a notification log entry.
func (r *Repository) Record(ctx context.Context, log *models.NotificationLog) error {
	const q = `INSERT INTO notification_logs (registration_id, recipient, kind, status, error_message, sent_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		log.RegistrationID, log.Recipient, log.Kind, log.Status, log.ErrorMessage, log.SentAt).
		Scan(&log.ID, &log.CreatedAt)
}

