package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"staff-auth-core/internal/staff/domain"
)

// PostgresRepository implements Repository over *sql.DB with the pgx driver.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a staff repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const staffColumns = `id, email, name, password_hash, role, principal_type, super_admin,
	active, blocked, failed_attempts, lock_until, last_login_at, last_password_change_at,
	created_at, updated_at`

// GetByID returns the staff record for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Staff, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id)
	return scanStaff(row)
}

// GetByEmail returns the staff record for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Staff, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE email = $1`, email)
	return scanStaff(row)
}

// Create persists the staff record. The record must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Staff) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO staff (id, email, name, password_hash, role, principal_type, super_admin,
			active, blocked, failed_attempts, lock_until, last_login_at, last_password_change_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.Email, s.Name, s.PasswordHash, s.Role, string(s.PrincipalType), s.SuperAdmin,
		s.Active, s.Blocked, s.FailedAttempts, timeToNullTime(s.LockUntil),
		timeToNullTime(s.LastLoginAt), timeToNullTime(s.LastPasswordChangeAt),
		s.CreatedAt, s.UpdatedAt)
	return err
}

// UpdatePasswordHash replaces the credential hash and stamps the change time.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE staff SET password_hash = $2, last_password_change_at = $3, updated_at = $3
		WHERE id = $1`, id, hash, at)
	return err
}

// UpdateRole replaces the role and super-admin capability.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id, role string, superAdmin bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE staff SET role = $2, super_admin = $3, updated_at = $4
		WHERE id = $1`, id, role, superAdmin, at)
	return err
}

// RecordFailure bumps the failed-login counter in a single conditional UPDATE
// so concurrent failures are all counted. An expired lock restarts the counter
// at 1; crossing the threshold arms lock_until = now + lockFor.
func (r *PostgresRepository) RecordFailure(ctx context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*LockoutState, error) {
	lockUntil := now.Add(lockFor)
	row := r.db.QueryRowContext(ctx, `
		UPDATE staff SET
			failed_attempts = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN 1
				ELSE failed_attempts + 1
			END,
			lock_until = CASE
				WHEN lock_until IS NOT NULL AND lock_until > $2 THEN lock_until
				WHEN (CASE
					WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN 1
					ELSE failed_attempts + 1
				END) >= $3 THEN $4
				ELSE NULL
			END,
			updated_at = $2
		WHERE id = $1
		RETURNING failed_attempts, lock_until`,
		id, now, threshold, lockUntil)

	state := &LockoutState{}
	var lu sql.NullTime
	if err := row.Scan(&state.FailedAttempts, &lu); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	state.LockUntil = nullTimeToPtr(lu)
	return state, nil
}

// RecordSuccess clears the counter and lock and sets last login, atomically.
func (r *PostgresRepository) RecordSuccess(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE staff SET failed_attempts = 0, lock_until = NULL, last_login_at = $2, updated_at = $2
		WHERE id = $1`, id, now)
	return err
}

func scanStaff(row *sql.Row) (*domain.Staff, error) {
	var (
		s             domain.Staff
		principalType string
		lockUntil     sql.NullTime
		lastLogin     sql.NullTime
		lastPwdChange sql.NullTime
	)
	err := row.Scan(&s.ID, &s.Email, &s.Name, &s.PasswordHash, &s.Role, &principalType,
		&s.SuperAdmin, &s.Active, &s.Blocked, &s.FailedAttempts, &lockUntil,
		&lastLogin, &lastPwdChange, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.PrincipalType = domain.PrincipalType(principalType)
	s.LockUntil = nullTimeToPtr(lockUntil)
	s.LastLoginAt = nullTimeToPtr(lastLogin)
	s.LastPasswordChangeAt = nullTimeToPtr(lastPwdChange)
	return &s, nil
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
