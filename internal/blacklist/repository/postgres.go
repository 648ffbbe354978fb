package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"staff-auth-core/internal/blacklist/domain"
)

// PostgresRepository implements Repository over *sql.DB with the pgx driver.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a blacklist repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add persists the entry. A duplicate token hash is absorbed by the unique
// index; the row that is already there serves the same purpose.
func (r *PostgresRepository) Add(ctx context.Context, e *domain.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO token_blacklist (id, token_hash, jti, principal_id, principal_type, sentinel, reason, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (token_hash) DO NOTHING`,
		e.ID, e.TokenHash, e.JTI, e.PrincipalID, e.PrincipalType, e.Sentinel, e.Reason, e.ExpiresAt, e.CreatedAt)
	return err
}

// ContainsHash reports whether a non-expired entry exists for the hash.
func (r *PostgresRepository) ContainsHash(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM token_blacklist
			WHERE token_hash = $1 AND expires_at > $2
		)`, tokenHash, now).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// LatestSentinelAt returns the creation time of the newest live sentinel for
// the principal, or nil when the principal has none.
func (r *PostgresRepository) LatestSentinelAt(ctx context.Context, principalID string, now time.Time) (*time.Time, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT created_at FROM token_blacklist
		WHERE principal_id = $1 AND sentinel = true AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`, principalID, now).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &at, nil
}

// DeleteExpired removes entries past expiry.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM token_blacklist WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOlderThan removes entries created before the cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM token_blacklist WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
