// Package server assembles the gRPC server: interceptor chain, OTEL
// instrumentation, and the standard health service. The auth core exposes no
// RPC surface of its own; services built on top register themselves on the
// returned server and get identity resolution via the interceptors.
package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"

	"staff-auth-core/internal/audit"
	"staff-auth-core/internal/auth"
	"staff-auth-core/internal/auth/pipeline"
	"staff-auth-core/internal/server/interceptors"
)

// Options configures the assembled server.
type Options struct {
	// Auth is the assembled authentication core. The health service reports
	// SERVING only when it is present.
	Auth *auth.Service
	// Pipeline resolves Bearer tokens to identities. Required.
	Pipeline *pipeline.Pipeline
	// Audit records permission denials per RPC. Nil disables RPC auditing.
	Audit audit.AuditLogger
	// PublicMethods is the set of full method names reachable without a
	// token. Health check methods are always public.
	PublicMethods map[string]bool
}

// New builds a *grpc.Server with the audit and auth interceptors installed
// (audit outermost so it observes the auth interceptor's denials) and the
// standard health service registered. Health reports SERVING once the auth
// core is wired in, NOT_SERVING otherwise.
func New(opts Options) (*grpc.Server, *health.Server) {
	public := map[string]bool{
		healthpb.Health_Check_FullMethodName: true,
		healthpb.Health_Watch_FullMethodName: true,
	}
	for m := range opts.PublicMethods {
		public[m] = true
	}

	auditLogger := opts.Audit
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuditUnary(auditLogger),
			interceptors.AuthUnary(opts.Pipeline, public),
		),
	)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(s, healthSrv)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if opts.Auth != nil {
		status = healthpb.HealthCheckResponse_SERVING
	}
	healthSrv.SetServingStatus("", status)

	return s, healthSrv
}
