package maintenance

import (
	"context"
	"fmt"
	"log"
	"time"

	"staff-auth-core/internal/clock"
	"staff-auth-core/internal/refreshtoken/repository"
)

// Reporter receives anomaly findings. Implemented by telemetry.SecurityEvents.
type Reporter interface {
	Emit(ctx context.Context, eventType, subject string, count int64)
}

// Thresholds bound what the scanner flags. Zero values disable a detector.
type Thresholds struct {
	// CreationsPerIP flags IPs creating at least this many refresh tokens
	// within the window.
	CreationsPerIP int
	// RevocationsPerPrincipal flags principals with at least this many
	// security-reason revocations within the window.
	RevocationsPerPrincipal int
	// UsageCount flags live refresh records used at least this many times.
	UsageCount int
	// Window is the lookback for the first two detectors.
	Window time.Duration
}

// Scanner runs the anomaly detectors over the refresh token store. Findings
// are reported and logged only; nothing is blocked or revoked here.
type Scanner struct {
	repo       repository.Repository
	clk        clock.Clock
	thresholds Thresholds
	reporter   Reporter
}

// NewScanner returns a Scanner. reporter may be nil; findings still go to the log.
func NewScanner(repo repository.Repository, clk clock.Clock, thresholds Thresholds, reporter Reporter) *Scanner {
	if clk == nil {
		clk = clock.System{}
	}
	if thresholds.Window <= 0 {
		thresholds.Window = time.Hour
	}
	return &Scanner{repo: repo, clk: clk, thresholds: thresholds, reporter: reporter}
}

// Scan runs the three detectors. Detector errors are collected so one failed
// query does not hide the others' findings.
func (s *Scanner) Scan(ctx context.Context) error {
	since := s.clk.Now().Add(-s.thresholds.Window)
	var firstErr error

	if min := s.thresholds.CreationsPerIP; min > 0 {
		hits, err := s.repo.CountCreationsByIP(ctx, since, min)
		if err != nil {
			firstErr = fmt.Errorf("creation scan: %w", err)
		}
		for _, h := range hits {
			s.report(ctx, "refresh_creation_spike", h.IP, h.Count)
		}
	}

	if min := s.thresholds.RevocationsPerPrincipal; min > 0 {
		hits, err := s.repo.CountSecurityRevocations(ctx, since, min)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("revocation scan: %w", err)
		}
		for _, h := range hits {
			s.report(ctx, "excessive_revocations", h.PrincipalID, h.Count)
		}
	}

	if min := s.thresholds.UsageCount; min > 0 {
		records, err := s.repo.ListHighUsage(ctx, min, 100)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("usage scan: %w", err)
		}
		for _, r := range records {
			s.report(ctx, "high_usage_refresh_token", r.PrincipalID, r.UsageCount)
		}
	}

	return firstErr
}

func (s *Scanner) report(ctx context.Context, eventType, subject string, count int64) {
	log.Printf("maintenance: anomaly %s: %s (count %d)", eventType, subject, count)
	if s.reporter != nil {
		s.reporter.Emit(ctx, eventType, subject, count)
	}
}
