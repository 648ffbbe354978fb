package domain

import "time"

// DeviceInfo is the opaque client context stored alongside a refresh token
// for audit. This core records it verbatim; it never parses or validates it.
type DeviceInfo struct {
	UserAgent string
	IP        string
	DeviceID  string
	Platform  string
}

// RefreshToken is the persisted server-side record of an opaque refresh
// credential. The plaintext secret is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID            string
	TokenHash     string
	PrincipalID   string
	PrincipalType string
	Device        DeviceInfo
	ExpiresAt     time.Time
	Revoked       bool
	RevokedAt     *time.Time // nil when not revoked
	RevokedReason string
	UsageCount    int64
	LastUsedAt    *time.Time
	CreatedAt     time.Time
}

// ValidAt reports whether the record can still be exchanged at the given
// time: not revoked and not past expiry. Revocation is monotonic; a revoked
// record never becomes valid again.
func (t *RefreshToken) ValidAt(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
