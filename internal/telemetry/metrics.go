package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics holds counters for security events: login outcomes, lockouts,
// refresh rotations, and revocations. Counters export through the configured
// MeterProvider; with no-op providers they cost nothing.
type AuthMetrics struct {
	logins      metric.Int64Counter
	lockouts    metric.Int64Counter
	rotations   metric.Int64Counter
	revocations metric.Int64Counter
}

// NewAuthMetrics registers the counters on the given MeterProvider.
func NewAuthMetrics(mp metric.MeterProvider) (*AuthMetrics, error) {
	meter := mp.Meter("staff-auth-core/auth")

	logins, err := meter.Int64Counter("auth.logins",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, err
	}
	lockouts, err := meter.Int64Counter("auth.lockouts",
		metric.WithDescription("Accounts locked after repeated failures"))
	if err != nil {
		return nil, err
	}
	rotations, err := meter.Int64Counter("auth.refresh_rotations",
		metric.WithDescription("Refresh tokens rotated"))
	if err != nil {
		return nil, err
	}
	revocations, err := meter.Int64Counter("auth.revocations",
		metric.WithDescription("Refresh tokens revoked"))
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		logins:      logins,
		lockouts:    lockouts,
		rotations:   rotations,
		revocations: revocations,
	}, nil
}

// RecordLogin counts one login attempt with its outcome.
func (m *AuthMetrics) RecordLogin(ctx context.Context, success bool) {
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordLockout counts one account lockout.
func (m *AuthMetrics) RecordLockout(ctx context.Context) {
	m.lockouts.Add(ctx, 1)
}

// RecordRotation counts one refresh token rotation.
func (m *AuthMetrics) RecordRotation(ctx context.Context) {
	m.rotations.Add(ctx, 1)
}

// RecordRevocation counts revoked refresh tokens.
func (m *AuthMetrics) RecordRevocation(ctx context.Context, count int64) {
	m.revocations.Add(ctx, count)
}
