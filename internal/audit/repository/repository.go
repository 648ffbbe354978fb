package repository

import (
	"context"
	"time"

	"staff-auth-core/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	ListByPrincipal(ctx context.Context, principalID string, limit, offset int32) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
