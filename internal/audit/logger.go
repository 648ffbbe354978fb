package audit

import (
	"context"
	"log"

	"github.com/google/uuid"

	"staff-auth-core/internal/audit/domain"
	auditrepo "staff-auth-core/internal/audit/repository"
	"staff-auth-core/internal/clock"
)

// Audit actions and outcomes. One event per login attempt, permission deny,
// and revocation event.
const (
	ActionLogin          = "login"
	ActionRefresh        = "refresh"
	ActionLogout         = "logout"
	ActionLogoutAll      = "logout_all"
	ActionPasswordChange = "password_change"
	ActionRoleChange     = "role_change"
	ActionPermissionDeny = "permission_deny"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeLocked  = "locked"
)

// IPExtractor returns the client IP from the request context (e.g. gRPC metadata or peer).
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/outcome.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, principalID, action, outcome, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	clk         clock.Clock
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor
// for client IP. ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, clk clock.Clock) *Logger {
	if clk == nil {
		clk = clock.System{}
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, clk: clk}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, principalID, action, outcome, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	entry := &domain.AuditLog{
		ID:          uuid.New().String(),
		PrincipalID: principalID,
		Action:      action,
		Outcome:     outcome,
		IP:          ip,
		Metadata:    metadata,
		CreatedAt:   l.clk.Now(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, outcome, err)
	}
}

// Nop is an AuditLogger that drops every event. Useful in tests and as a
// default when no sink is wired.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string) {}
