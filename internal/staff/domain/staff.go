package domain

import (
	"errors"
	"time"
)

// PrincipalType distinguishes the kinds of authenticated principals this
// core issues credentials for.
type PrincipalType string

const (
	PrincipalTypeStaff PrincipalType = "staff"
	PrincipalTypeAdmin PrincipalType = "admin"
)

// Staff is the authenticated staff principal. Lockout state (FailedAttempts,
// LockUntil) is embedded here and mutated only through the repository's
// atomic operations.
type Staff struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	Role          string
	PrincipalType PrincipalType
	// SuperAdmin is a structural capability; authorization decisions check
	// this flag, never a display name.
	SuperAdmin bool
	Active     bool
	Blocked    bool

	FailedAttempts       int
	LockUntil            *time.Time // nil when not locked
	LastLoginAt          *time.Time
	LastPasswordChangeAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the staff record for persistence. Returns an error
// describing the first validation failure.
func (s *Staff) Validate() error {
	if s.Email == "" {
		return errors.New("email is required")
	}
	if s.Role == "" {
		return errors.New("role is required")
	}
	if s.PrincipalType == "" {
		s.PrincipalType = PrincipalTypeStaff
	}
	return nil
}

// LockedAt reports whether the principal is locked out at the given time.
func (s *Staff) LockedAt(now time.Time) bool {
	return s.LockUntil != nil && s.LockUntil.After(now)
}
