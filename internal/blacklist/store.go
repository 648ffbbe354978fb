// Package blacklist is the access token denylist. Individual tokens are
// rejected by hash until their natural expiry; a principal-wide sentinel
// rejects every token issued before the sentinel was placed.
package blacklist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"staff-auth-core/internal/blacklist/domain"
	"staff-auth-core/internal/blacklist/repository"
	"staff-auth-core/internal/clock"
	"staff-auth-core/internal/security"
)

// Store manages denylist entries over the repository.
type Store struct {
	repo      repository.Repository
	clk       clock.Clock
	accessTTL time.Duration
}

// NewStore returns a Store. accessTTL is the access token lifetime; it bounds
// how long any entry needs to live, since an older token is expired anyway.
func NewStore(repo repository.Repository, clk clock.Clock, accessTTL time.Duration) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{repo: repo, clk: clk, accessTTL: accessTTL}
}

// Add denylists a single token, recorded with its jti and owning principal.
// The entry expires when the token would, so the table never outlives the
// tokens it rejects. A token with no expiry claim gets the full access
// lifetime.
func (s *Store) Add(ctx context.Context, tokenString, jti, principalID, principalType, reason string, tokenExpiresAt *time.Time) error {
	now := s.clk.Now()
	expires := now.Add(s.accessTTL)
	if tokenExpiresAt != nil {
		expires = *tokenExpiresAt
	}
	return s.repo.Add(ctx, &domain.Entry{
		ID:            uuid.New().String(),
		TokenHash:     security.HashToken(tokenString),
		JTI:           jti,
		PrincipalID:   principalID,
		PrincipalType: principalType,
		Reason:        reason,
		ExpiresAt:     expires,
		CreatedAt:     now,
	})
}

// Contains reports whether the token is denylisted.
func (s *Store) Contains(ctx context.Context, tokenString string) (bool, error) {
	return s.repo.ContainsHash(ctx, security.HashToken(tokenString), s.clk.Now())
}

// MarkAllForPrincipal places a sentinel that rejects every access token the
// principal holds right now. The sentinel's synthetic hash keys on principal
// and placement time; it lives one access lifetime, after which all covered
// tokens have expired on their own.
func (s *Store) MarkAllForPrincipal(ctx context.Context, principalID, principalType, reason string) error {
	now := s.clk.Now()
	return s.repo.Add(ctx, &domain.Entry{
		ID:            uuid.New().String(),
		TokenHash:     fmt.Sprintf("ALL_TOKENS_%s_%d", principalID, now.Unix()),
		PrincipalID:   principalID,
		PrincipalType: principalType,
		Sentinel:      true,
		Reason:        reason,
		ExpiresAt:     now.Add(s.accessTTL),
		CreatedAt:     now,
	})
}

// LatestSentinelAt returns when the newest live sentinel for the principal
// was placed, or nil when there is none. Tokens issued before that instant
// must be rejected.
func (s *Store) LatestSentinelAt(ctx context.Context, principalID string) (*time.Time, error) {
	return s.repo.LatestSentinelAt(ctx, principalID, s.clk.Now())
}

// Cleanup deletes expired entries. Returns rows deleted.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clk.Now())
}

// PruneOld deletes entries created more than keepFor ago, expired or not.
func (s *Store) PruneOld(ctx context.Context, keepFor time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, s.clk.Now().Add(-keepFor))
}
