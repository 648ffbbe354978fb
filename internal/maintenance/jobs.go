package maintenance

import (
	"context"
	"log"
	"time"

	"staff-auth-core/internal/blacklist"
	"staff-auth-core/internal/refreshtoken"
)

// AuditPruner is the slice of the audit repository the prune job needs.
type AuditPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob deletes expired refresh token records and denylist entries from
// both stores. Zero rows deleted is a normal outcome.
func CleanupJob(refresh *refreshtoken.Store, denylist *blacklist.Store, every time.Duration) Job {
	return Job{
		Name:  "cleanup",
		Every: every,
		Run: func(ctx context.Context) error {
			nTokens, err := refresh.Cleanup(ctx)
			if err != nil {
				return err
			}
			nEntries, err := denylist.Cleanup(ctx)
			if err != nil {
				return err
			}
			if nTokens > 0 || nEntries > 0 {
				log.Printf("maintenance: cleanup removed %d refresh tokens, %d blacklist entries", nTokens, nEntries)
			}
			return nil
		},
	}
}

// PruneJob removes denylist rows and audit logs past the retention window,
// regardless of their own expiry. auditRepo may be nil.
func PruneJob(denylist *blacklist.Store, auditRepo AuditPruner, keepFor time.Duration, nowFn func() time.Time, every time.Duration) Job {
	return Job{
		Name:  "prune",
		Every: every,
		Run: func(ctx context.Context) error {
			n, err := denylist.PruneOld(ctx, keepFor)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Printf("maintenance: prune removed %d old blacklist entries", n)
			}
			if auditRepo != nil {
				n, err := auditRepo.DeleteOlderThan(ctx, nowFn().Add(-keepFor))
				if err != nil {
					return err
				}
				if n > 0 {
					log.Printf("maintenance: prune removed %d old audit logs", n)
				}
			}
			return nil
		},
	}
}

// AnomalyJob runs the scanner's detectors.
func AnomalyJob(scanner *Scanner, every time.Duration) Job {
	return Job{
		Name:  "anomaly-scan",
		Every: every,
		Run:   scanner.Scan,
	}
}
