package repository

import (
	"context"
	"time"

	"staff-auth-core/internal/blacklist/domain"
)

// Repository is the token denylist persistence interface. Lookups are by
// token hash for regular entries and by principal for sentinels; both paths
// run on every verification, so the backing indexes matter.
type Repository interface {
	// Add persists the entry. Inserting the same token hash twice is treated
	// as success; the denylist only cares that the hash is present.
	Add(ctx context.Context, e *domain.Entry) error
	// ContainsHash reports whether a non-expired entry exists for the hash.
	ContainsHash(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	// LatestSentinelAt returns the creation time of the newest non-expired
	// sentinel for the principal, or nil when none exists.
	LatestSentinelAt(ctx context.Context, principalID string, now time.Time) (*time.Time, error)
	// DeleteExpired removes entries past expiry. Returns rows deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// DeleteOlderThan removes entries created before the cutoff regardless of
	// expiry, bounding table growth. Returns rows deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
