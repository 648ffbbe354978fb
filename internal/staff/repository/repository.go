package repository

import (
	"context"
	"time"

	"staff-auth-core/internal/staff/domain"
)

// LockoutState is the post-update lockout state returned by RecordFailure.
type LockoutState struct {
	FailedAttempts int
	LockUntil      *time.Time // nil when not locked
}

// Repository is the staff persistence interface. Failure counting must be
// atomic at the store: two concurrent failed logins are both counted.
type Repository interface {
	// GetByID returns the staff record for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Staff, error)
	// GetByEmail returns the staff record for email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.Staff, error)
	// Create persists the staff record. The record must have ID set.
	Create(ctx context.Context, s *domain.Staff) error
	// UpdatePasswordHash replaces the credential hash and stamps the change time.
	UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error
	// UpdateRole replaces the role and super-admin capability.
	UpdateRole(ctx context.Context, id, role string, superAdmin bool, at time.Time) error
	// RecordFailure atomically bumps the failed-login counter. A counter under
	// an already-expired lock restarts at 1; reaching threshold sets the lock
	// to now+lockFor. Returns the resulting state.
	RecordFailure(ctx context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*LockoutState, error)
	// RecordSuccess atomically clears the counter and lock and sets last login.
	RecordSuccess(ctx context.Context, id string, now time.Time) error
}
