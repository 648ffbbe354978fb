// Package pipeline composes authorization checks as an ordered list of pure
// predicate stages over a request identity. Call sites declare the stages
// they need through the builder; evaluation short-circuits on the first
// failing stage.
package pipeline

import (
	"context"
	"slices"

	"staff-auth-core/internal/auth"
	"staff-auth-core/internal/security"
	staffdomain "staff-auth-core/internal/staff/domain"
)

// Identity accumulates what the stages learn about the caller. Earlier
// stages fill fields later stages read.
type Identity struct {
	Token  string
	Claims *security.AccessClaims
	Staff  *staffdomain.Staff
}

// SuperAdmin reports the structural super-admin capability from the claims.
func (id *Identity) SuperAdmin() bool {
	return id.Claims != nil && id.Claims.SuperAdmin
}

// Stage is one predicate over the identity. A nil return passes control to
// the next stage; an error stops the run.
type Stage func(ctx context.Context, id *Identity) error

// TokenVerifier validates an access token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*security.AccessClaims, error)
}

// StaffGetter loads the staff record behind the verified claims.
type StaffGetter interface {
	GetByID(ctx context.Context, id string) (*staffdomain.Staff, error)
}

// PermissionChecker answers whether a principal holds a permission.
type PermissionChecker interface {
	Has(ctx context.Context, principalID, perm string) (bool, error)
}

// Pipeline is a built, immutable stage sequence.
type Pipeline struct {
	stages []Stage
}

// Run evaluates the stages in order against the presented token.
func (p *Pipeline) Run(ctx context.Context, token string) (*Identity, error) {
	id := &Identity{Token: token}
	for _, stage := range p.stages {
		if err := stage(ctx, id); err != nil {
			return nil, err
		}
	}
	return id, nil
}

// Builder collects stages. Zero value is not usable; start with NewBuilder.
type Builder struct {
	stages []Stage
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Authenticated verifies the token and fills Claims. Almost every pipeline
// starts here; later stages fail closed if it is omitted.
func (b *Builder) Authenticated(verifier TokenVerifier) *Builder {
	b.stages = append(b.stages, func(ctx context.Context, id *Identity) error {
		if id.Token == "" {
			return auth.ErrTokenInvalid
		}
		claims, err := verifier.Verify(ctx, id.Token)
		if err != nil {
			return err
		}
		id.Claims = claims
		return nil
	})
	return b
}

// ActiveAccount loads the staff record and requires it to be active and
// unblocked. Fills Staff.
func (b *Builder) ActiveAccount(staff StaffGetter) *Builder {
	b.stages = append(b.stages, func(ctx context.Context, id *Identity) error {
		if id.Claims == nil {
			return auth.ErrTokenInvalid
		}
		member, err := staff.GetByID(ctx, id.Claims.Subject)
		if err != nil {
			return err
		}
		if member == nil {
			return auth.ErrAccountInactive
		}
		if member.Blocked {
			return auth.ErrAccountBlocked
		}
		if !member.Active {
			return auth.ErrAccountInactive
		}
		id.Staff = member
		return nil
	})
	return b
}

// Roles requires the caller's role to be one of the given roles. The
// super-admin capability bypasses the check.
func (b *Builder) Roles(roles ...string) *Builder {
	b.stages = append(b.stages, func(ctx context.Context, id *Identity) error {
		if id.Claims == nil {
			return auth.ErrTokenInvalid
		}
		if id.SuperAdmin() {
			return nil
		}
		if !slices.Contains(roles, id.Claims.Role) {
			return auth.ErrPermissionDenied
		}
		return nil
	})
	return b
}

// PrincipalTypes requires the caller's principal type to be one of the given
// types. Not bypassed by super-admin: type is identity, not privilege.
func (b *Builder) PrincipalTypes(types ...string) *Builder {
	b.stages = append(b.stages, func(ctx context.Context, id *Identity) error {
		if id.Claims == nil {
			return auth.ErrTokenInvalid
		}
		if !slices.Contains(types, id.Claims.PrincipalType) {
			return auth.ErrPermissionDenied
		}
		return nil
	})
	return b
}

// Permission requires the caller to hold the named permission per the
// checker. The super-admin capability bypasses the lookup.
func (b *Builder) Permission(checker PermissionChecker, perm string) *Builder {
	b.stages = append(b.stages, func(ctx context.Context, id *Identity) error {
		if id.Claims == nil {
			return auth.ErrTokenInvalid
		}
		if id.SuperAdmin() {
			return nil
		}
		ok, err := checker.Has(ctx, id.Claims.Subject, perm)
		if err != nil {
			return err
		}
		if !ok {
			return auth.ErrPermissionDenied
		}
		return nil
	})
	return b
}

// Stage appends a custom stage.
func (b *Builder) Stage(s Stage) *Builder {
	b.stages = append(b.stages, s)
	return b
}

// Build returns the immutable pipeline.
func (b *Builder) Build() *Pipeline {
	return &Pipeline{stages: slices.Clone(b.stages)}
}
