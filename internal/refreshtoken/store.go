// Package refreshtoken manages opaque refresh credentials: creation,
// validation, rotation, bulk revocation, and cleanup. Plaintext secrets
// leave this package exactly once, on creation; only hashes are stored.
package refreshtoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"staff-auth-core/internal/clock"
	"staff-auth-core/internal/refreshtoken/domain"
	"staff-auth-core/internal/refreshtoken/repository"
	"staff-auth-core/internal/security"
)

// ErrRotationConflict is returned when a concurrent refresh already claimed
// the record; exactly one caller per record wins rotation.
var ErrRotationConflict = errors.New("refresh token already rotated")

// Store issues and manages refresh token records over the repository.
type Store struct {
	repo           repository.Repository
	clk            clock.Clock
	lifetime       time.Duration
	revokedKeepFor time.Duration
}

// NewStore returns a Store with the given record lifetime and post-revocation
// retention window for cleanup.
func NewStore(repo repository.Repository, clk clock.Clock, lifetime, revokedKeepFor time.Duration) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{repo: repo, clk: clk, lifetime: lifetime, revokedKeepFor: revokedKeepFor}
}

// Create mints a high-entropy secret, persists its hash plus metadata, and
// returns the plaintext secret with the stored record. Expiry is now+lifetime.
func (s *Store) Create(ctx context.Context, principalID, principalType string, device domain.DeviceInfo) (string, *domain.RefreshToken, error) {
	secret, err := security.NewRefreshSecret()
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh secret: %w", err)
	}
	now := s.clk.Now()
	rec := &domain.RefreshToken{
		ID:            uuid.New().String(),
		TokenHash:     security.HashToken(secret),
		PrincipalID:   principalID,
		PrincipalType: principalType,
		Device:        device,
		ExpiresAt:     now.Add(s.lifetime),
		CreatedAt:     now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return "", nil, err
	}
	return secret, rec, nil
}

// FindValid hashes the plaintext secret and returns the matching record if
// it is non-revoked and non-expired, or nil when no usable record exists.
// The hash is re-checked in constant time before the record is trusted.
func (s *Store) FindValid(ctx context.Context, secret string) (*domain.RefreshToken, error) {
	rec, err := s.repo.FindByHash(ctx, security.HashToken(secret))
	if err != nil {
		return nil, err
	}
	if rec == nil || !security.TokenHashEqual(secret, rec.TokenHash) || !rec.ValidAt(s.clk.Now()) {
		return nil, nil
	}
	return rec, nil
}

// Revoke marks the record revoked with the given reason. Idempotent.
func (s *Store) Revoke(ctx context.Context, rec *domain.RefreshToken, reason string) error {
	return s.repo.Revoke(ctx, rec.ID, reason, s.clk.Now())
}

// RevokeAllForPrincipal bulk-revokes every live record for the principal.
func (s *Store) RevokeAllForPrincipal(ctx context.Context, principalID, principalType, reason string) (int64, error) {
	return s.repo.RevokeAllForPrincipal(ctx, principalID, principalType, reason, s.clk.Now())
}

// TouchUsage bumps the record's usage counter.
func (s *Store) TouchUsage(ctx context.Context, rec *domain.RefreshToken) error {
	return s.repo.TouchUsage(ctx, rec.ID, s.clk.Now())
}

// Rotate atomically invalidates rec and mints a replacement for the same
// principal. The invalidation is a conditional update on revoked=false, so
// of N concurrent calls exactly one proceeds to create; the rest get
// ErrRotationConflict and must not retry with the old secret.
func (s *Store) Rotate(ctx context.Context, rec *domain.RefreshToken, device domain.DeviceInfo) (string, *domain.RefreshToken, error) {
	won, err := s.repo.ClaimForRotation(ctx, rec.ID, s.clk.Now())
	if err != nil {
		return "", nil, err
	}
	if !won {
		return "", nil, ErrRotationConflict
	}
	return s.Create(ctx, rec.PrincipalID, rec.PrincipalType, device)
}

// Cleanup deletes expired records and revoked records past the retention
// window. Returns rows deleted; a run with nothing eligible is a no-op.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clk.Now(), s.revokedKeepFor)
}
