// Worker runs the periodic maintenance jobs: expired refresh token and
// denylist cleanup, retention pruning, and the anomaly scan. GRPC_ADDR is
// required by config but unused here (e.g. set to :0).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	auditrepo "staff-auth-core/internal/audit/repository"
	"staff-auth-core/internal/blacklist"
	blacklistrepo "staff-auth-core/internal/blacklist/repository"
	"staff-auth-core/internal/clock"
	"staff-auth-core/internal/config"
	"staff-auth-core/internal/db"
	"staff-auth-core/internal/maintenance"
	"staff-auth-core/internal/refreshtoken"
	refreshrepo "staff-auth-core/internal/refreshtoken/repository"
	"staff-auth-core/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, "staff-auth-worker", cfg.Env, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	clk := clock.System{}
	refreshRepo := refreshrepo.NewPostgresRepository(conn)
	refreshStore := refreshtoken.NewStore(refreshRepo, clk, cfg.RefreshTokenTTL(), cfg.RevokedKeepFor())
	denylist := blacklist.NewStore(blacklistrepo.NewPostgresRepository(conn), clk, cfg.AccessTTL())
	auditRepo := auditrepo.NewPostgresRepository(conn)

	scanner := maintenance.NewScanner(refreshRepo, clk, maintenance.Thresholds{
		CreationsPerIP:          cfg.AnomalyIPCreationThreshold,
		RevocationsPerPrincipal: cfg.AnomalyRevocationThreshold,
		UsageCount:              cfg.AnomalyUsageThreshold,
		Window:                  time.Hour,
	}, telemetry.NewSecurityEvents(providers.LoggerProvider))

	scheduler := maintenance.NewScheduler(
		maintenance.CleanupJob(refreshStore, denylist, cfg.CleanupEvery()),
		maintenance.PruneJob(denylist, auditRepo, cfg.PruneOlderThan(), clk.Now, cfg.PruneEvery()),
		maintenance.AnomalyJob(scanner, cfg.AnomalyEvery()),
	)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Println("worker: running first pass")
	scheduler.RunAllOnce(ctx)
	scheduler.Start(ctx)
	log.Println("worker: stopped")
}
