package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"staff-auth-core/internal/clock"
)

var (
	// ErrInvalidToken is returned when a token is malformed, tampered with,
	// or missing required claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a token's signature is good but its
	// lifetime has elapsed. Callers distinguish this from tampering for UX.
	ErrExpiredToken = errors.New("expired token")
	// ErrMissingSecret is returned at construction when no signing secret is
	// configured. This is a startup failure, never a per-request one.
	ErrMissingSecret = errors.New("signing secret is not configured")
)

// AccessClaims holds JWT claims for the staff access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
	PrincipalType string `json:"principal_type"`
	SuperAdmin    bool   `json:"super_admin,omitempty"`
}

// ValidateRequired checks claim completeness: subject, principal type, jti,
// and issued-at must all be present. Incomplete tokens are rejected here,
// at one place, rather than discovered ad hoc at call sites.
func (c *AccessClaims) ValidateRequired() error {
	if c.Subject == "" || c.PrincipalType == "" || c.ID == "" || c.IssuedAt == nil {
		return ErrInvalidToken
	}
	return nil
}

// TokenProvider issues and validates HS256-signed staff access tokens.
// The issuer, audience, and lifetime come from configuration; the clock is
// injected so expiry can be tested deterministically.
type TokenProvider struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
	clk       clock.Clock
}

// NewTokenProvider returns a TokenProvider signing with the given secret.
// Returns ErrMissingSecret when secret is empty; callers check this at startup.
func NewTokenProvider(secret, issuer, audience string, accessTTL time.Duration, clk clock.Clock) (*TokenProvider, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if clk == nil {
		clk = clock.System{}
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &TokenProvider{
		secret:    []byte(secret),
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
		clk:       clk,
	}, nil
}

// AccessLifetime returns the configured access token lifetime.
func (p *TokenProvider) AccessLifetime() time.Duration { return p.accessTTL }

// IssueAccess issues a short-lived access JWT for the given staff principal.
// Returns the signed token, its claims (with fresh jti and iat), and expiry.
func (p *TokenProvider) IssueAccess(staffID, email, role, principalType string, superAdmin bool) (token string, claims *AccessClaims, err error) {
	now := p.clk.Now()
	claims = &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   staffID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.accessTTL)),
		},
		Email:         email,
		Role:          role,
		PrincipalType: principalType,
		SuperAdmin:    superAdmin,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = t.SignedString(p.secret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// ParseAccess parses and validates the access token: signature, expiry
// (against the injected clock), issuer, audience, and claim completeness.
// Returns ErrExpiredToken for lapsed tokens and ErrInvalidToken otherwise.
func (p *TokenProvider) ParseAccess(tokenString string) (*AccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.clk.Now),
	)
	token, err := parser.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return nil, ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return nil, ErrInvalidToken
	}
	if err := claims.ValidateRequired(); err != nil {
		return nil, err
	}
	return claims, nil
}
