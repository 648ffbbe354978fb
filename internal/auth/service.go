// Package auth is the session lifecycle coordinator: login, refresh, logout,
// principal-wide revocation, password and role changes. It composes the
// lockout guard, token provider, refresh store, denylist, and permission
// cache; it owns none of their state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staff-auth-core/internal/audit"
	"staff-auth-core/internal/blacklist"
	"staff-auth-core/internal/clock"
	"staff-auth-core/internal/lockout"
	"staff-auth-core/internal/permission"
	"staff-auth-core/internal/refreshtoken"
	refreshdomain "staff-auth-core/internal/refreshtoken/domain"
	"staff-auth-core/internal/security"
	staffdomain "staff-auth-core/internal/staff/domain"
)

// StaffRepository is the slice of the staff repository the coordinator needs.
type StaffRepository interface {
	GetByID(ctx context.Context, id string) (*staffdomain.Staff, error)
	GetByEmail(ctx context.Context, email string) (*staffdomain.Staff, error)
	UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error
	UpdateRole(ctx context.Context, id, role string, superAdmin bool, at time.Time) error
}

// MetricsRecorder receives security event counters. Implemented by the
// telemetry package; NopMetrics drops everything.
type MetricsRecorder interface {
	RecordLogin(ctx context.Context, success bool)
	RecordLockout(ctx context.Context)
	RecordRotation(ctx context.Context)
	RecordRevocation(ctx context.Context, count int64)
}

// NopMetrics is a MetricsRecorder that drops every event.
type NopMetrics struct{}

func (NopMetrics) RecordLogin(context.Context, bool)       {}
func (NopMetrics) RecordLockout(context.Context)           {}
func (NopMetrics) RecordRotation(context.Context)          {}
func (NopMetrics) RecordRevocation(context.Context, int64) {}

// Session is the result of a successful login or refresh.
type Session struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
	Permissions     []string
	Staff           *staffdomain.Staff
}

// LogoutResult reports which credentials a best-effort logout actually
// invalidated.
type LogoutResult struct {
	AccessRevoked  bool
	RefreshRevoked bool
}

// Deps are the collaborators of the Service. All are required except Audit
// and Metrics, which default to no-ops.
type Deps struct {
	Staff    StaffRepository
	Hasher   *security.Hasher
	Tokens   *security.TokenProvider
	Refresh  *refreshtoken.Store
	Denylist *blacklist.Store
	Guard    *lockout.Guard
	Perms    *permission.Cache
	Audit    audit.AuditLogger
	Metrics  MetricsRecorder
	Clock    clock.Clock

	// RotateRefreshTokens controls whether Refresh replaces the presented
	// secret. Explicit configuration input, not an env lookup.
	RotateRefreshTokens bool
}

// Service coordinates the session lifecycle over its collaborators.
type Service struct {
	staff    StaffRepository
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	refresh  *refreshtoken.Store
	denylist *blacklist.Store
	guard    *lockout.Guard
	perms    *permission.Cache
	audit    audit.AuditLogger
	metrics  MetricsRecorder
	clk      clock.Clock
	rotate   bool
}

// NewService returns a Service over the given collaborators.
func NewService(d Deps) *Service {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = NopMetrics{}
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	return &Service{
		staff:    d.Staff,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		refresh:  d.Refresh,
		denylist: d.Denylist,
		guard:    d.Guard,
		perms:    d.Perms,
		audit:    d.Audit,
		metrics:  d.Metrics,
		clk:      d.Clock,
		rotate:   d.RotateRefreshTokens,
	}
}

// Login authenticates the credentials and opens a session: access token,
// refresh secret, resolved permissions. Failure side effects (lockout counter
// bumps) happen on credential failures only, never on infrastructure errors.
func (s *Service) Login(ctx context.Context, email, password string, device refreshdomain.DeviceInfo) (*Session, error) {
	member, err := s.staff.GetByEmail(ctx, email)
	if err != nil {
		return nil, infra("load staff by email", err)
	}
	if member == nil {
		// Unknown principal: no account, no counter to bump.
		s.audit.LogEvent(ctx, "", audit.ActionLogin, audit.OutcomeFailure, "unknown email")
		s.metrics.RecordLogin(ctx, false)
		return nil, ErrInvalidCredentials
	}

	if member.LockedAt(s.clk.Now()) {
		s.audit.LogEvent(ctx, member.ID, audit.ActionLogin, audit.OutcomeLocked, "")
		s.metrics.RecordLogin(ctx, false)
		return nil, &LockedError{Until: *member.LockUntil}
	}

	if err := s.hasher.Compare(member.PasswordHash, []byte(password)); err != nil {
		locked, _, gerr := s.guard.RecordFailure(ctx, member.ID)
		if gerr != nil {
			return nil, infra("record login failure", gerr)
		}
		s.metrics.RecordLogin(ctx, false)
		// The failure that arms the lock still reports bad credentials; the
		// lock itself answers from the next attempt on.
		if locked {
			s.metrics.RecordLockout(ctx)
			s.audit.LogEvent(ctx, member.ID, audit.ActionLogin, audit.OutcomeLocked, "threshold crossed")
		} else {
			s.audit.LogEvent(ctx, member.ID, audit.ActionLogin, audit.OutcomeFailure, "wrong password")
		}
		return nil, ErrInvalidCredentials
	}

	// Correct credentials but unusable account. Not a counter event.
	if err := accountUsable(member); err != nil {
		s.audit.LogEvent(ctx, member.ID, audit.ActionLogin, audit.OutcomeFailure, err.Error())
		s.metrics.RecordLogin(ctx, false)
		return nil, err
	}

	if err := s.guard.RecordSuccess(ctx, member.ID); err != nil {
		return nil, infra("record login success", err)
	}

	session, err := s.openSession(ctx, member, device)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, member.ID, audit.ActionLogin, audit.OutcomeSuccess, "")
	s.metrics.RecordLogin(ctx, true)
	return session, nil
}

// Refresh exchanges a refresh secret for a new access token, rotating the
// secret when rotation is enabled. A secret that is unknown, expired,
// revoked, or loses the rotation race fails with ErrRefreshTokenInvalid.
func (s *Service) Refresh(ctx context.Context, refreshSecret string, device refreshdomain.DeviceInfo) (*Session, error) {
	rec, err := s.refresh.FindValid(ctx, refreshSecret)
	if err != nil {
		return nil, infra("find refresh token", err)
	}
	if rec == nil {
		return nil, ErrRefreshTokenInvalid
	}

	member, err := s.staff.GetByID(ctx, rec.PrincipalID)
	if err != nil {
		return nil, infra("load staff by id", err)
	}
	if member == nil || accountUsable(member) != nil {
		// Principal gone or disabled: the record must not stay exchangeable.
		if rerr := s.refresh.Revoke(ctx, rec, "account_inactive"); rerr == nil {
			s.metrics.RecordRevocation(ctx, 1)
		}
		s.audit.LogEvent(ctx, rec.PrincipalID, audit.ActionRefresh, audit.OutcomeFailure, "account not usable")
		if member != nil && member.Blocked {
			return nil, ErrAccountBlocked
		}
		return nil, ErrAccountInactive
	}

	// Rotation happens before the access token is minted so a lost race
	// fails the whole call instead of handing out a token on a dead secret.
	returnedSecret := refreshSecret
	if s.rotate {
		newSecret, _, err := s.refresh.Rotate(ctx, rec, device)
		if err != nil {
			if errors.Is(err, refreshtoken.ErrRotationConflict) {
				return nil, ErrRefreshTokenInvalid
			}
			return nil, infra("rotate refresh token", err)
		}
		s.metrics.RecordRotation(ctx)
		returnedSecret = newSecret
	} else if err := s.refresh.TouchUsage(ctx, rec); err != nil {
		return nil, infra("touch refresh token", err)
	}

	session, err := s.openAccess(ctx, member)
	if err != nil {
		return nil, err
	}
	session.RefreshToken = returnedSecret
	s.audit.LogEvent(ctx, member.ID, audit.ActionRefresh, audit.OutcomeSuccess, "")
	return session, nil
}

// Logout invalidates whichever credentials were presented: the access token
// goes on the denylist, the refresh record is revoked. Best-effort; partial
// success is reported, not failed.
func (s *Service) Logout(ctx context.Context, accessToken, refreshSecret string) (*LogoutResult, error) {
	res := &LogoutResult{}
	principalID := ""

	if accessToken != "" {
		if claims, err := s.tokens.ParseAccess(accessToken); err == nil {
			principalID = claims.Subject
			var exp *time.Time
			if claims.ExpiresAt != nil {
				exp = &claims.ExpiresAt.Time
			}
			if err := s.denylist.Add(ctx, accessToken, claims.ID, claims.Subject, claims.PrincipalType, "logout", exp); err == nil {
				res.AccessRevoked = true
			}
		}
	}

	if refreshSecret != "" {
		rec, err := s.refresh.FindValid(ctx, refreshSecret)
		if err == nil && rec != nil {
			if principalID == "" {
				principalID = rec.PrincipalID
			}
			if err := s.refresh.Revoke(ctx, rec, "logout"); err == nil {
				res.RefreshRevoked = true
				s.metrics.RecordRevocation(ctx, 1)
			}
		}
	}

	outcome := audit.OutcomeSuccess
	if !res.AccessRevoked && !res.RefreshRevoked {
		outcome = audit.OutcomeFailure
	}
	s.audit.LogEvent(ctx, principalID, audit.ActionLogout, outcome,
		fmt.Sprintf("access=%t refresh=%t", res.AccessRevoked, res.RefreshRevoked))
	return res, nil
}

// LogoutAll terminates every outstanding session of the principal: bulk
// refresh revocation, a denylist sentinel covering all live access tokens,
// and a permission cache purge. Best-effort; sub-step failures are logged
// and do not fail the caller.
func (s *Service) LogoutAll(ctx context.Context, principalID, principalType, reason string) error {
	n, err := s.refresh.RevokeAllForPrincipal(ctx, principalID, principalType, reason)
	if err != nil {
		s.audit.LogEvent(ctx, principalID, audit.ActionLogoutAll, audit.OutcomeFailure, "revoke-all: "+err.Error())
	} else if n > 0 {
		s.metrics.RecordRevocation(ctx, n)
	}

	if err := s.denylist.MarkAllForPrincipal(ctx, principalID, principalType, reason); err != nil {
		s.audit.LogEvent(ctx, principalID, audit.ActionLogoutAll, audit.OutcomeFailure, "sentinel: "+err.Error())
	}

	s.perms.Invalidate(principalID)
	s.audit.LogEvent(ctx, principalID, audit.ActionLogoutAll, audit.OutcomeSuccess, "reason="+reason)
	return nil
}

// ChangePassword verifies the current password, stores the new hash, and
// terminates every outstanding session of the principal.
func (s *Service) ChangePassword(ctx context.Context, principalID, current, newPassword string) error {
	member, err := s.staff.GetByID(ctx, principalID)
	if err != nil {
		return infra("load staff by id", err)
	}
	if member == nil {
		return ErrInvalidCredentials
	}
	if err := s.hasher.Compare(member.PasswordHash, []byte(current)); err != nil {
		s.audit.LogEvent(ctx, principalID, audit.ActionPasswordChange, audit.OutcomeFailure, "wrong current password")
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return infra("hash password", err)
	}
	if err := s.staff.UpdatePasswordHash(ctx, principalID, hash, s.clk.Now()); err != nil {
		return infra("update password hash", err)
	}

	s.audit.LogEvent(ctx, principalID, audit.ActionPasswordChange, audit.OutcomeSuccess, "")
	return s.LogoutAll(ctx, principalID, string(member.PrincipalType), "password_change")
}

// ChangeRole updates the principal's role and super-admin capability and
// purges their cached permissions so the change is visible immediately on
// this instance, not after the cache TTL.
func (s *Service) ChangeRole(ctx context.Context, principalID, role string, superAdmin bool) error {
	if err := s.staff.UpdateRole(ctx, principalID, role, superAdmin, s.clk.Now()); err != nil {
		return infra("update role", err)
	}
	s.perms.Invalidate(principalID)
	s.audit.LogEvent(ctx, principalID, audit.ActionRoleChange, audit.OutcomeSuccess, "role="+role)
	return nil
}

// InvalidatePermissions purges the cached permission set for the principal.
func (s *Service) InvalidatePermissions(principalID string) {
	s.perms.Invalidate(principalID)
}

func (s *Service) openSession(ctx context.Context, member *staffdomain.Staff, device refreshdomain.DeviceInfo) (*Session, error) {
	session, err := s.openAccess(ctx, member)
	if err != nil {
		return nil, err
	}
	secret, _, err := s.refresh.Create(ctx, member.ID, string(member.PrincipalType), device)
	if err != nil {
		return nil, infra("create refresh token", err)
	}
	session.RefreshToken = secret
	return session, nil
}

func (s *Service) openAccess(ctx context.Context, member *staffdomain.Staff) (*Session, error) {
	token, claims, err := s.tokens.IssueAccess(member.ID, member.Email, member.Role, string(member.PrincipalType), member.SuperAdmin)
	if err != nil {
		return nil, infra("sign access token", err)
	}
	perms, err := s.perms.Get(ctx, member.ID)
	if err != nil {
		return nil, infra("resolve permissions", err)
	}
	return &Session{
		AccessToken:     token,
		AccessExpiresAt: claims.ExpiresAt.Time,
		Permissions:     perms,
		Staff:           member,
	}, nil
}

func accountUsable(member *staffdomain.Staff) error {
	if member.Blocked {
		return ErrAccountBlocked
	}
	if !member.Active {
		return ErrAccountInactive
	}
	return nil
}
