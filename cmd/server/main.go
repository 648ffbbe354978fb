// Server runs the staff auth gRPC front: health service plus the
// authentication and audit interceptor chain. API services built on this core
// register themselves on the returned server.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staff-auth-core/internal/audit"
	auditrepo "staff-auth-core/internal/audit/repository"
	"staff-auth-core/internal/auth"
	"staff-auth-core/internal/auth/pipeline"
	"staff-auth-core/internal/blacklist"
	blacklistrepo "staff-auth-core/internal/blacklist/repository"
	"staff-auth-core/internal/clock"
	"staff-auth-core/internal/config"
	"staff-auth-core/internal/db"
	"staff-auth-core/internal/lockout"
	"staff-auth-core/internal/permission"
	"staff-auth-core/internal/refreshtoken"
	refreshrepo "staff-auth-core/internal/refreshtoken/repository"
	"staff-auth-core/internal/security"
	"staff-auth-core/internal/server"
	"staff-auth-core/internal/server/interceptors"
	staffrepo "staff-auth-core/internal/staff/repository"
	"staff-auth-core/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("starting: %s", cfg)

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, "staff-auth", cfg.Env, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	clk := clock.System{}
	staffRepo := staffrepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), interceptors.ClientIP, clk)

	tokens, err := security.NewTokenProvider(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), clk)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	denylist := blacklist.NewStore(blacklistrepo.NewPostgresRepository(conn), clk, cfg.AccessTTL())
	verifier := auth.NewVerifier(tokens, denylist)

	refreshStore := refreshtoken.NewStore(refreshrepo.NewPostgresRepository(conn), clk, cfg.RefreshTokenTTL(), cfg.RevokedKeepFor())
	guard := lockout.NewGuard(staffRepo, clk, cfg.LockoutThreshold, cfg.LockoutWindow())

	permSource, err := permission.NewOPASource(staffRepo)
	if err != nil {
		log.Fatalf("permission policy: %v", err)
	}
	perms := permission.NewCache(permSource, clk, cfg.PermissionTTL())

	metrics, err := telemetry.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	svc := auth.NewService(auth.Deps{
		Staff:               staffRepo,
		Hasher:              security.NewHasher(cfg.BcryptCost),
		Tokens:              tokens,
		Refresh:             refreshStore,
		Denylist:            denylist,
		Guard:               guard,
		Perms:               perms,
		Audit:               auditLogger,
		Metrics:             metrics,
		Clock:               clk,
		RotateRefreshTokens: cfg.RefreshRotation,
	})

	p := pipeline.NewBuilder().
		Authenticated(verifier).
		ActiveAccount(staffRepo).
		Build()

	s, _ := server.New(server.Options{
		Auth:     svc,
		Pipeline: p,
		Audit:    auditLogger,
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	s.GracefulStop()
	log.Println("gRPC server stopped")
}
