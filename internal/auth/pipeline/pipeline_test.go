package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"staff-auth-core/internal/auth"
	"staff-auth-core/internal/security"
	staffdomain "staff-auth-core/internal/staff/domain"
)

type fakeVerifier struct {
	claims map[string]*security.AccessClaims
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*security.AccessClaims, error) {
	c, ok := f.claims[token]
	if !ok {
		return nil, auth.ErrTokenInvalid
	}
	return c, nil
}

type fakeStaff struct {
	members map[string]*staffdomain.Staff
}

func (f *fakeStaff) GetByID(_ context.Context, id string) (*staffdomain.Staff, error) {
	return f.members[id], nil
}

type fakePerms struct {
	grants map[string][]string
	err    error
	calls  int
}

func (f *fakePerms) Has(_ context.Context, principalID, perm string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	for _, p := range f.grants[principalID] {
		if p == perm {
			return true, nil
		}
	}
	return false, nil
}

func claimsFor(subject, role, principalType string, super bool) *security.AccessClaims {
	return &security.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Role:             role,
		PrincipalType:    principalType,
		SuperAdmin:       super,
	}
}

func testWorld() (*fakeVerifier, *fakeStaff, *fakePerms) {
	verifier := &fakeVerifier{claims: map[string]*security.AccessClaims{
		"tok-support": claimsFor("staff-1", "support", "staff", false),
		"tok-manager": claimsFor("staff-2", "manager", "staff", false),
		"tok-super":   claimsFor("staff-3", "support", "admin", true),
		"tok-blocked": claimsFor("staff-4", "support", "staff", false),
	}}
	staff := &fakeStaff{members: map[string]*staffdomain.Staff{
		"staff-1": {ID: "staff-1", Role: "support", Active: true},
		"staff-2": {ID: "staff-2", Role: "manager", Active: true},
		"staff-3": {ID: "staff-3", Role: "support", Active: true, SuperAdmin: true},
		"staff-4": {ID: "staff-4", Role: "support", Active: true, Blocked: true},
	}}
	perms := &fakePerms{grants: map[string][]string{
		"staff-1": {"bookings.read"},
		"staff-2": {"bookings.read", "reports.read"},
	}}
	return verifier, staff, perms
}

func TestPipeline_FullChainPasses(t *testing.T) {
	verifier, staff, perms := testWorld()
	p := NewBuilder().
		Authenticated(verifier).
		ActiveAccount(staff).
		Roles("support", "manager").
		Permission(perms, "bookings.read").
		Build()

	id, err := p.Run(context.Background(), "tok-support")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if id.Claims.Subject != "staff-1" || id.Staff == nil {
		t.Errorf("identity = %+v, want claims and staff filled", id)
	}
}

func TestPipeline_ShortCircuitsOnFirstFailure(t *testing.T) {
	verifier, staff, perms := testWorld()
	p := NewBuilder().
		Authenticated(verifier).
		ActiveAccount(staff).
		Permission(perms, "bookings.read").
		Build()

	_, err := p.Run(context.Background(), "unknown-token")
	if !errors.Is(err, auth.ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
	if perms.calls != 0 {
		t.Errorf("permission checker called %d times after auth failure, want 0", perms.calls)
	}
}

func TestPipeline_MissingTokenFails(t *testing.T) {
	verifier, _, _ := testWorld()
	p := NewBuilder().Authenticated(verifier).Build()

	if _, err := p.Run(context.Background(), ""); !errors.Is(err, auth.ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestPipeline_BlockedAccount(t *testing.T) {
	verifier, staff, _ := testWorld()
	p := NewBuilder().Authenticated(verifier).ActiveAccount(staff).Build()

	if _, err := p.Run(context.Background(), "tok-blocked"); !errors.Is(err, auth.ErrAccountBlocked) {
		t.Fatalf("err = %v, want ErrAccountBlocked", err)
	}
}

func TestPipeline_RoleCheck(t *testing.T) {
	verifier, _, _ := testWorld()
	p := NewBuilder().Authenticated(verifier).Roles("manager").Build()

	if _, err := p.Run(context.Background(), "tok-manager"); err != nil {
		t.Fatalf("manager: %v", err)
	}
	if _, err := p.Run(context.Background(), "tok-support"); !errors.Is(err, auth.ErrPermissionDenied) {
		t.Fatalf("support: err = %v, want ErrPermissionDenied", err)
	}
	// Capability bypass, not a role-name match.
	if _, err := p.Run(context.Background(), "tok-super"); err != nil {
		t.Fatalf("super admin: %v", err)
	}
}

func TestPipeline_PrincipalTypeCheckNotBypassed(t *testing.T) {
	verifier, _, _ := testWorld()
	p := NewBuilder().Authenticated(verifier).PrincipalTypes("staff").Build()

	if _, err := p.Run(context.Background(), "tok-support"); err != nil {
		t.Fatalf("staff type: %v", err)
	}
	// Super admin is an admin-typed principal; type is identity, not privilege.
	if _, err := p.Run(context.Background(), "tok-super"); !errors.Is(err, auth.ErrPermissionDenied) {
		t.Fatalf("admin type: err = %v, want ErrPermissionDenied", err)
	}
}

func TestPipeline_PermissionCheck(t *testing.T) {
	verifier, _, perms := testWorld()
	p := NewBuilder().Authenticated(verifier).Permission(perms, "reports.read").Build()

	if _, err := p.Run(context.Background(), "tok-manager"); err != nil {
		t.Fatalf("granted: %v", err)
	}
	if _, err := p.Run(context.Background(), "tok-support"); !errors.Is(err, auth.ErrPermissionDenied) {
		t.Fatalf("ungranted: err = %v, want ErrPermissionDenied", err)
	}

	// Super admin bypasses the lookup entirely.
	before := perms.calls
	if _, err := p.Run(context.Background(), "tok-super"); err != nil {
		t.Fatalf("super admin: %v", err)
	}
	if perms.calls != before {
		t.Error("permission lookup ran for super admin")
	}
}

func TestPipeline_StagesRequireAuthentication(t *testing.T) {
	_, staff, perms := testWorld()

	// Pipelines missing the Authenticated stage fail closed.
	for name, p := range map[string]*Pipeline{
		"active":     NewBuilder().ActiveAccount(staff).Build(),
		"roles":      NewBuilder().Roles("support").Build(),
		"types":      NewBuilder().PrincipalTypes("staff").Build(),
		"permission": NewBuilder().Permission(perms, "bookings.read").Build(),
	} {
		if _, err := p.Run(context.Background(), "tok-support"); !errors.Is(err, auth.ErrTokenInvalid) {
			t.Errorf("%s: err = %v, want ErrTokenInvalid", name, err)
		}
	}
}

func TestPipeline_CustomStage(t *testing.T) {
	verifier, _, _ := testWorld()
	custom := errors.New("custom check failed")
	p := NewBuilder().
		Authenticated(verifier).
		Stage(func(_ context.Context, id *Identity) error {
			if id.Claims.Subject == "staff-1" {
				return custom
			}
			return nil
		}).
		Build()

	if _, err := p.Run(context.Background(), "tok-support"); !errors.Is(err, custom) {
		t.Fatalf("err = %v, want custom error", err)
	}
	if _, err := p.Run(context.Background(), "tok-manager"); err != nil {
		t.Fatalf("passing stage: %v", err)
	}
}
