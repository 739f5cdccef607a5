package registrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcp-registry/backend/internal/audit"
	"github.com/mcp-registry/backend/internal/models"
)

const registrationColumns = `registration_id, endpoint_url, endpoint_name, COALESCE(description, ''),
	owner_contact, available_tools, status, submitter_id, approver_id, approved_at, created_at, updated_at`

// Repository is the PostgreSQL-backed Store. Mutations write their audit
// entry inside the same transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Create inserts a Pending registration and its Created audit entry.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	tools, err := json.Marshal(reg.Tools)
	if err != nil {
		return fmt.Errorf("marshal tools: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO registrations (endpoint_url, endpoint_name, description, owner_contact, available_tools, status, submitter_id)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		RETURNING registration_id, created_at, updated_at`
	err = tx.QueryRow(ctx, q,
		reg.EndpointURL, reg.EndpointName, reg.Description, reg.OwnerContact,
		tools, string(models.StatusPending), reg.SubmitterID).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	reg.Status = models.StatusPending
	reg.ApproverID = nil
	reg.ApprovedAt = nil

	newStatus := models.StatusPending
	meta, _ := json.Marshal(map[string]string{
		"endpoint_url":  reg.EndpointURL,
		"endpoint_name": reg.EndpointName,
	})
	entry := &models.AuditLog{
		RegistrationID: reg.ID,
		UserID:         reg.SubmitterID,
		Action:         models.AuditCreated,
		NewStatus:      &newStatus,
		Metadata:       meta,
	}
	if err := audit.Insert(ctx, tx, entry); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE registration_id = $1`
	return r.queryOne(ctx, q, id)
}

// GetByURL returns the registration with the exact endpoint URL.
func (r *Repository) GetByURL(ctx context.Context, endpointURL string) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE endpoint_url = $1`
	return r.queryOne(ctx, q, endpointURL)
}

// List returns one page of registrations with the pre-pagination total.
func (r *Repository) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.SubmitterID != nil {
		add("submitter_id = $%d", *f.SubmitterID)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(endpoint_name ILIKE $%d OR COALESCE(description, '') ILIKE $%d OR owner_contact ILIKE $%d)", n, n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM registrations"+where, args...).Scan(&total); err != nil {
		return nil, classify(err)
	}

	q := fmt.Sprintf(`SELECT %s FROM registrations%s
		ORDER BY created_at DESC, registration_id DESC
		LIMIT $%d OFFSET $%d`, registrationColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	results := make([]models.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, classify(err)
		}
		results = append(results, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return &ListResult{Total: total, Limit: f.Limit, Offset: f.Offset, Results: results}, nil
}

// Review moves a Pending registration to newStatus. The conditional update
// and the audit entry share one transaction, so of two concurrent reviews
// exactly one commits and the other observes ErrInvalidTransition.
func (r *Repository) Review(ctx context.Context, id uuid.UUID, newStatus models.Status, approverID uuid.UUID, reason string) (*models.Registration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer tx.Rollback(ctx)

	q := `UPDATE registrations
		SET status = $1, approver_id = $2, approved_at = NOW(), updated_at = NOW()
		WHERE registration_id = $3 AND status = 'Pending'
		RETURNING ` + registrationColumns
	reg, err := scanRegistration(tx.QueryRow(ctx, q, string(newStatus), approverID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing registration from one already reviewed.
		var status string
		probe := tx.QueryRow(ctx, `SELECT status FROM registrations WHERE registration_id = $1`, id)
		if probeErr := probe.Scan(&status); probeErr != nil {
			if errors.Is(probeErr, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, classify(probeErr)
		}
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, classify(err)
	}

	prev := models.StatusPending
	action := models.AuditApproved
	if newStatus == models.StatusRejected {
		action = models.AuditRejected
	}
	var meta json.RawMessage
	if reason != "" {
		meta, _ = json.Marshal(map[string]string{"reason": reason})
	}
	entry := &models.AuditLog{
		RegistrationID: reg.ID,
		UserID:         approverID,
		Action:         action,
		PreviousStatus: &prev,
		NewStatus:      &newStatus,
		Metadata:       meta,
	}
	if err := audit.Insert(ctx, tx, entry); err != nil {
		return nil, classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err)
	}
	return reg, nil
}

// Delete removes a registration and records the Deleted audit entry.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `DELETE FROM registrations WHERE registration_id = $1 RETURNING status`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return classify(err)
	}

	prev := models.Status(status)
	entry := &models.AuditLog{
		RegistrationID: id,
		UserID:         deletedBy,
		Action:         models.AuditDeleted,
		PreviousStatus: &prev,
	}
	if err := audit.Insert(ctx, tx, entry); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

func (r *Repository) queryOne(ctx context.Context, q string, arg interface{}) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return reg, nil
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var status string
	var tools []byte
	err := row.Scan(&reg.ID, &reg.EndpointURL, &reg.EndpointName, &reg.Description,
		&reg.OwnerContact, &tools, &status, &reg.SubmitterID, &reg.ApproverID,
		&reg.ApprovedAt, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	reg.Status = models.Status(status)
	if len(tools) > 0 {
		if err := json.Unmarshal(tools, &reg.Tools); err != nil {
			return nil, fmt.Errorf("unmarshal tools: %w", err)
		}
	}
	if reg.Tools == nil {
		reg.Tools = []models.Tool{}
	}
	return &reg, nil
}

// classify maps driver errors onto the package taxonomy. Unique violations
// become ErrConflict; anything else unexpected is surfaced as
// ErrStoreUnavailable rather than retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
