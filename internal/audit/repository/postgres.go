package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"staff-auth-core/internal/audit/domain"
)

// PostgresRepository implements Repository over *sql.DB with the pgx driver.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const auditColumns = `id, principal_id, action, outcome, ip, metadata, created_at`

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id)
	a := &domain.AuditLog{}
	err := row.Scan(&a.ID, &a.PrincipalID, &a.Action, &a.Outcome, &a.IP, &a.Metadata, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// ListByPrincipal returns audit logs for the principal, newest first,
// paginated by limit and offset.
func (r *PostgresRepository) ListByPrincipal(ctx context.Context, principalID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+auditColumns+` FROM audit_logs
		WHERE principal_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, principalID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a := &domain.AuditLog{}
		if err := rows.Scan(&a.ID, &a.PrincipalID, &a.Action, &a.Outcome, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create persists the audit log. The record must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, principal_id, action, outcome, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.PrincipalID, a.Action, a.Outcome, a.IP, a.Metadata, a.CreatedAt)
	return err
}

// DeleteOlderThan removes audit logs created before the cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
