package interceptors

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"staff-auth-core/internal/auth"
	"staff-auth-core/internal/auth/pipeline"
)

const bearerPrefix = "bearer "

// AuthUnary returns a unary server interceptor that runs the given pipeline
// over the Bearer token from gRPC metadata and sets the resolved identity in
// context for protected RPCs. publicMethods is the set of full method names
// that do not require a token (e.g. Login, Refresh, health checks).
func AuthUnary(p *pipeline.Pipeline, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if token == "" && public {
			return handler(ctx, req)
		}

		id, err := p.Run(ctx, token)
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			return nil, statusFromError(err)
		}

		return handler(WithIdentity(ctx, id), req)
	}
}

// statusFromError maps the auth error taxonomy onto gRPC status codes.
// Infrastructure failures surface as Unavailable, never as Unauthenticated,
// so a database outage cannot look like a bad credential.
func statusFromError(err error) error {
	if auth.IsInfrastructure(err) {
		return status.Error(codes.Unavailable, "authentication backend unavailable")
	}
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "token expired")
	case errors.Is(err, auth.ErrTokenRevoked):
		return status.Error(codes.Unauthenticated, "token revoked")
	case errors.Is(err, auth.ErrTokenInvalid):
		return status.Error(codes.Unauthenticated, "missing or invalid authorization")
	case errors.Is(err, auth.ErrAccountLocked):
		return status.Error(codes.PermissionDenied, "account locked")
	case errors.Is(err, auth.ErrAccountBlocked), errors.Is(err, auth.ErrAccountInactive):
		return status.Error(codes.PermissionDenied, "account not usable")
	case errors.Is(err, auth.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, "permission denied")
	default:
		return status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
