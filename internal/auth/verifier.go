package auth

import (
	"context"
	"errors"

	"staff-auth-core/internal/blacklist"
	"staff-auth-core/internal/security"
)

// Verifier validates access tokens against the signing key and the denylist.
// The denylist check runs first so revocation short-circuits before any trust
// is placed in the signature, and again by issue time against the principal's
// latest sentinel once the claims are known.
type Verifier struct {
	tokens   *security.TokenProvider
	denylist *blacklist.Store
}

// NewVerifier returns a Verifier over the token provider and denylist.
func NewVerifier(tokens *security.TokenProvider, denylist *blacklist.Store) *Verifier {
	return &Verifier{tokens: tokens, denylist: denylist}
}

// Verify checks the token and returns its claims. Order matters:
// denylist membership, then signature/expiry/claim completeness, then the
// sentinel issue-time check. A token issued before the principal's most
// recent mass revocation is rejected even if it verifies cryptographically.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*security.AccessClaims, error) {
	listed, err := v.denylist.Contains(ctx, tokenString)
	if err != nil {
		return nil, infra("blacklist lookup", err)
	}
	if listed {
		return nil, ErrTokenRevoked
	}

	claims, err := v.tokens.ParseAccess(tokenString)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	sentinelAt, err := v.denylist.LatestSentinelAt(ctx, claims.Subject)
	if err != nil {
		return nil, infra("sentinel lookup", err)
	}
	if sentinelAt != nil && claims.IssuedAt.Time.Before(*sentinelAt) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}
