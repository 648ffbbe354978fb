package domain

import "time"

// Entry is one denylisted access token, or a sentinel covering every token a
// principal held at a point in time. Regular entries carry the SHA-256 hash
// of the rejected token and expire when the token itself would; sentinels
// carry a synthetic hash and reject by issue time instead.
type Entry struct {
	ID            string
	TokenHash     string
	JTI           string // jti claim of the rejected token; empty on sentinels
	PrincipalID   string
	PrincipalType string
	Sentinel      bool
	Reason        string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// ActiveAt reports whether the entry still matters at the given time.
// Expired entries are dead weight awaiting cleanup.
func (e *Entry) ActiveAt(now time.Time) bool {
	return e.ExpiresAt.After(now)
}
