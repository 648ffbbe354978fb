package domain

import "time"

// AuditLog is one security event: who, what, how it ended.
type AuditLog struct {
	ID          string
	PrincipalID string
	Action      string
	Outcome     string
	IP          string
	Metadata    string
	CreatedAt   time.Time
}
