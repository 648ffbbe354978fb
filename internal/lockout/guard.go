// Package lockout guards against credential brute force by counting failed
// login attempts per account and arming a temporary lock once a threshold
// is crossed.
package lockout

import (
	"context"
	"time"

	"staff-auth-core/internal/clock"
	"staff-auth-core/internal/staff/repository"
)

// Counter is the slice of the staff repository the guard needs.
type Counter interface {
	RecordFailure(ctx context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*repository.LockoutState, error)
	RecordSuccess(ctx context.Context, id string, now time.Time) error
}

// Guard applies the failure threshold and lock window over the counter.
// Counting is delegated to a single conditional update in the repository, so
// concurrent failures across processes are all observed.
type Guard struct {
	counter   Counter
	clk       clock.Clock
	threshold int
	lockFor   time.Duration
}

// NewGuard returns a Guard locking accounts for lockFor after threshold
// consecutive failures.
func NewGuard(counter Counter, clk clock.Clock, threshold int, lockFor time.Duration) *Guard {
	if clk == nil {
		clk = clock.System{}
	}
	return &Guard{counter: counter, clk: clk, threshold: threshold, lockFor: lockFor}
}

// IsLocked reports whether a lock armed until the given time is still active.
// A nil until means the account was never locked.
func (g *Guard) IsLocked(until *time.Time) bool {
	return until != nil && until.After(g.clk.Now())
}

// RecordFailure counts one failed attempt and reports the resulting state.
// locked is true when this failure armed a new lock or an earlier one is
// still active; until is the lock deadline in that case.
func (g *Guard) RecordFailure(ctx context.Context, accountID string) (locked bool, until *time.Time, err error) {
	state, err := g.counter.RecordFailure(ctx, accountID, g.clk.Now(), g.threshold, g.lockFor)
	if err != nil {
		return false, nil, err
	}
	if state == nil {
		// Account vanished underneath us; nothing to lock.
		return false, nil, nil
	}
	return g.IsLocked(state.LockUntil), state.LockUntil, nil
}

// RecordSuccess clears the failure counter and any armed lock.
func (g *Guard) RecordSuccess(ctx context.Context, accountID string) error {
	return g.counter.RecordSuccess(ctx, accountID, g.clk.Now())
}

// Threshold returns the configured failure threshold.
func (g *Guard) Threshold() int { return g.threshold }
