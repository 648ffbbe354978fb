package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"staff-auth-core/internal/refreshtoken/domain"
)

// PostgresRepository implements Repository over *sql.DB with the pgx driver.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh token repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = `id, token_hash, principal_id, principal_type,
	user_agent, ip_address, device_id, platform,
	expires_at, revoked, revoked_at, revoked_reason, usage_count, last_used_at, created_at`

// Create persists the record. The record must have ID and TokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, token_hash, principal_id, principal_type,
			user_agent, ip_address, device_id, platform,
			expires_at, revoked, revoked_at, revoked_reason, usage_count, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.TokenHash, t.PrincipalID, t.PrincipalType,
		t.Device.UserAgent, t.Device.IP, t.Device.DeviceID, t.Device.Platform,
		t.ExpiresAt, t.Revoked, timeToNullTime(t.RevokedAt), t.RevokedReason,
		t.UsageCount, timeToNullTime(t.LastUsedAt), t.CreatedAt)
	return err
}

// FindByHash returns the record for the hash, or nil if not found.
// Validity (revoked/expired) is the caller's decision; the row is returned as is.
func (r *PostgresRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	return scanToken(row)
}

// Revoke marks the record revoked. Idempotent: a second revoke matches zero
// rows and succeeds without effect, and the original reason is preserved.
func (r *PostgresRepository) Revoke(ctx context.Context, id, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = true, revoked_at = $3, revoked_reason = $2
		WHERE id = $1 AND revoked = false`, id, reason, at)
	return err
}

// RevokeAllForPrincipal flips every non-revoked record for the principal.
func (r *PostgresRepository) RevokeAllForPrincipal(ctx context.Context, principalID, principalType, reason string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = true, revoked_at = $4, revoked_reason = $3
		WHERE principal_id = $1 AND principal_type = $2 AND revoked = false`,
		principalID, principalType, reason, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimForRotation revokes the record only when it is still unrevoked.
// RowsAffected decides the race: exactly one concurrent caller sees 1.
func (r *PostgresRepository) ClaimForRotation(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = true, revoked_at = $2, revoked_reason = 'rotated'
		WHERE id = $1 AND revoked = false`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// TouchUsage bumps usage_count and last_used_at.
func (r *PostgresRepository) TouchUsage(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET usage_count = usage_count + 1, last_used_at = $2
		WHERE id = $1`, id, at)
	return err
}

// DeleteExpired removes records past expiry, and revoked records older than
// revokedKeepFor. Safe to run with nothing to delete.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time, revokedKeepFor time.Duration) (int64, error) {
	cutoff := now.Add(-revokedKeepFor)
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1 OR (revoked = true AND revoked_at < $2)`, now, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountCreationsByIP returns IPs that created at least minCount tokens since the given time.
func (r *PostgresRepository) CountCreationsByIP(ctx context.Context, since time.Time, minCount int) ([]IPCreationCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ip_address, COUNT(*) FROM refresh_tokens
		WHERE created_at >= $1 AND ip_address <> ''
		GROUP BY ip_address
		HAVING COUNT(*) >= $2
		ORDER BY COUNT(*) DESC`, since, minCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []IPCreationCount
	for rows.Next() {
		var c IPCreationCount
		if err := rows.Scan(&c.IP, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountSecurityRevocations returns principals with at least minCount
// security-reason revocations since the given time. Rotation is routine and
// excluded.
func (r *PostgresRepository) CountSecurityRevocations(ctx context.Context, since time.Time, minCount int) ([]PrincipalRevocationCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT principal_id, COUNT(*) FROM refresh_tokens
		WHERE revoked = true AND revoked_at >= $1 AND revoked_reason <> 'rotated'
		GROUP BY principal_id
		HAVING COUNT(*) >= $2
		ORDER BY COUNT(*) DESC`, since, minCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PrincipalRevocationCount
	for rows.Next() {
		var c PrincipalRevocationCount
		if err := rows.Scan(&c.PrincipalID, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListHighUsage returns live records whose usage count is at or above minUsage.
func (r *PostgresRepository) ListHighUsage(ctx context.Context, minUsage int, limit int) ([]*domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tokenColumns+` FROM refresh_tokens
		WHERE usage_count >= $1 AND revoked = false
		ORDER BY usage_count DESC
		LIMIT $2`, minUsage, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.RefreshToken
	for rows.Next() {
		t, err := scanTokenRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInto(s scanner) (*domain.RefreshToken, error) {
	var (
		t          domain.RefreshToken
		revokedAt  sql.NullTime
		lastUsedAt sql.NullTime
	)
	err := s.Scan(&t.ID, &t.TokenHash, &t.PrincipalID, &t.PrincipalType,
		&t.Device.UserAgent, &t.Device.IP, &t.Device.DeviceID, &t.Device.Platform,
		&t.ExpiresAt, &t.Revoked, &revokedAt, &t.RevokedReason,
		&t.UsageCount, &lastUsedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.RevokedAt = nullTimeToPtr(revokedAt)
	t.LastUsedAt = nullTimeToPtr(lastUsedAt)
	return &t, nil
}

func scanToken(row *sql.Row) (*domain.RefreshToken, error) {
	t, err := scanInto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func scanTokenRows(rows *sql.Rows) (*domain.RefreshToken, error) {
	return scanInto(rows)
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
