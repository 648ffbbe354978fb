package auth

import (
	"errors"
	"fmt"
	"time"
)

// Authentication-outcome errors. These are terminal for the request: the core
// never retries them, and they must never be confused with infrastructure
// failures.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account locked")
	ErrAccountInactive     = errors.New("account inactive")
	ErrAccountBlocked      = errors.New("account blocked")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenInvalid        = errors.New("token invalid")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	ErrPermissionDenied    = errors.New("permission denied")
)

// LockedError is ErrAccountLocked carrying the unlock time.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrAccountLocked) match.
func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

// InfrastructureError wraps a store or backend failure. Callers can retry
// these at a higher layer; they are never mapped to credential failures, so
// "database unreachable" cannot masquerade as "wrong password".
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// IsInfrastructure reports whether err is (or wraps) an InfrastructureError.
func IsInfrastructure(err error) bool {
	var ie *InfrastructureError
	return errors.As(err, &ie)
}

func infra(op string, err error) error {
	return &InfrastructureError{Op: op, Err: err}
}
