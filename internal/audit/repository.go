package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcp-registry/backend/internal/models"
)

// Insert writes an audit entry using the given transaction. Callers must
// pass the transaction of the mutation being recorded so the entry commits
// or rolls back together with the change.
func Insert(ctx context.Context, tx pgx.Tx, e *models.AuditLog) error {
	const q = `INSERT INTO audit_log (registration_id, user_id, action, previous_status, new_status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING log_id, timestamp`
	return tx.QueryRow(ctx, q, e.RegistrationID, e.UserID, string(e.Action), e.PreviousStatus, e.NewStatus, e.Metadata).
		Scan(&e.ID, &e.Timestamp)
}

// QueryFilter narrows an audit log query. All fields are optional.
type QueryFilter struct {
	RegistrationID *uuid.UUID
	UserID         *uuid.UUID
	Action         *models.AuditAction
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

// QueryResult is a page of audit entries with the pre-pagination total.
type QueryResult struct {
	Total   int               `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
	Results []models.AuditLog `json:"results"`
}

// Repository queries audit log entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Query returns audit entries newest first, with the total count of
// matching rows before pagination.
func (r *Repository) Query(ctx context.Context, f QueryFilter) (*QueryResult, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.RegistrationID != nil {
		add("registration_id = $%d", *f.RegistrationID)
	}
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Action != nil {
		add("action = $%d", string(*f.Action))
	}
	if f.From != nil {
		add("timestamp >= $%d", *f.From)
	}
	if f.To != nil {
		add("timestamp <= $%d", *f.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT log_id, registration_id, user_id, action, previous_status, new_status, metadata, timestamp
		FROM audit_log%s
		ORDER BY timestamp DESC, log_id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]models.AuditLog, 0)
	for rows.Next() {
		var e models.AuditLog
		if err := rows.Scan(&e.ID, &e.RegistrationID, &e.UserID, &e.Action, &e.PreviousStatus, &e.NewStatus, &e.Metadata, &e.Timestamp); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &QueryResult{Total: total, Limit: f.Limit, Offset: f.Offset, Results: results}, nil
}
