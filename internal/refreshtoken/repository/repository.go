package repository

import (
	"context"
	"time"

	"staff-auth-core/internal/refreshtoken/domain"
)

// IPCreationCount is one row of the per-IP creation anomaly query.
type IPCreationCount struct {
	IP    string
	Count int64
}

// PrincipalRevocationCount is one row of the per-principal revocation anomaly query.
type PrincipalRevocationCount struct {
	PrincipalID string
	Count       int64
}

// Repository is the refresh token persistence interface. Rotation relies on
// ClaimForRotation being a single conditional update so that concurrent
// refreshes of the same record produce exactly one winner.
type Repository interface {
	// Create persists the record. The record must have ID and TokenHash set.
	Create(ctx context.Context, t *domain.RefreshToken) error
	// FindByHash returns the record for the hash, or nil if not found.
	FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// Revoke marks the record revoked with the given reason. Idempotent:
	// revoking an already-revoked record is a no-op and not an error.
	Revoke(ctx context.Context, id, reason string, at time.Time) error
	// RevokeAllForPrincipal flips every non-revoked record for the principal.
	// Returns the number of records revoked.
	RevokeAllForPrincipal(ctx context.Context, principalID, principalType, reason string, at time.Time) (int64, error)
	// ClaimForRotation revokes the record only if it is not yet revoked and
	// reports whether this caller won. Losers must not mint a replacement.
	ClaimForRotation(ctx context.Context, id string, at time.Time) (bool, error)
	// TouchUsage bumps usage_count and last_used_at.
	TouchUsage(ctx context.Context, id string, at time.Time) error
	// DeleteExpired removes records past expiry, and revoked records older
	// than revokedKeepFor. Returns rows deleted; zero with nil error when
	// nothing is eligible.
	DeleteExpired(ctx context.Context, now time.Time, revokedKeepFor time.Duration) (int64, error)

	// Anomaly scan support.
	CountCreationsByIP(ctx context.Context, since time.Time, minCount int) ([]IPCreationCount, error)
	CountSecurityRevocations(ctx context.Context, since time.Time, minCount int) ([]PrincipalRevocationCount, error)
	ListHighUsage(ctx context.Context, minUsage int, limit int) ([]*domain.RefreshToken, error)
}
