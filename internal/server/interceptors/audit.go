package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"staff-auth-core/internal/audit"
)

// AuditUnary returns a unary server interceptor that records permission
// denials as audit events. Domain events (login, logout, revocation) are
// audited inside the auth service; this layer only catches authorization
// rejections, including ones that never reach a handler. Best-effort by
// construction. Must be installed outside AuthUnary in the chain so it sees
// the pipeline's rejections.
func AuditUnary(logger audit.AuditLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if status.Code(err) == codes.PermissionDenied {
			principalID := ""
			if id, ok := GetIdentity(ctx); ok && id.Claims != nil {
				principalID = id.Claims.Subject
			}
			logger.LogEvent(ctx, principalID, audit.ActionPermissionDeny, audit.OutcomeFailure, info.FullMethod)
		}
		return resp, err
	}
}
