package interceptors

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"staff-auth-core/internal/auth/pipeline"
)

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// WithIdentity returns a context carrying the resolved caller identity.
// Handlers read it via GetIdentity.
func WithIdentity(ctx context.Context, id *pipeline.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the caller identity from context and true if set.
func GetIdentity(ctx context.Context) (*pipeline.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*pipeline.Identity)
	return id, ok
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

// DeviceInfoFromMetadata assembles the opaque device blob stored with refresh
// records from request metadata. Values are recorded verbatim, never parsed.
func DeviceInfoFromMetadata(ctx context.Context) (userAgent, deviceID, platform string) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", "", ""
	}
	first := func(key string) string {
		if vals := md.Get(key); len(vals) > 0 {
			return strings.TrimSpace(vals[0])
		}
		return ""
	}
	return first("user-agent"), first("x-device-id"), first("x-platform")
}
