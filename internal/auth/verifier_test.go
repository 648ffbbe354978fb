package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	refreshdomain "staff-auth-core/internal/refreshtoken/domain"
)

func TestVerifier_RevocationShortCircuitsSignature(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()

	// A denylisted string is rejected as revoked before any signature check,
	// even though it would never parse.
	session, err := fx.svc.Login(ctx, "ana@example.com", testPassword, refreshdomain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := fx.svc.Logout(ctx, session.AccessToken, ""); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, err := fx.verifier.Verify(ctx, session.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("err = %v, want ErrTokenRevoked", err)
	}
}

func TestVerifier_TamperedToken(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()

	session, err := fx.svc.Login(ctx, "ana@example.com", testPassword, refreshdomain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	tampered := session.AccessToken[:len(session.AccessToken)-4] + "aaaa"
	if _, err := fx.verifier.Verify(ctx, tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("tampered: err = %v, want ErrTokenInvalid", err)
	}
	if _, err := fx.verifier.Verify(ctx, "not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("garbage: err = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifier_ExpiredBeatsInvalid(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()

	session, err := fx.svc.Login(ctx, "ana@example.com", testPassword, refreshdomain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	fx.clk.Advance(time.Hour)
	if _, err := fx.verifier.Verify(ctx, session.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired (distinguished from tampering)", err)
	}
}

func TestVerifier_SentinelRejectsByIssueTime(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()

	before, err := fx.svc.Login(ctx, "ana@example.com", testPassword, refreshdomain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	fx.clk.Advance(2 * time.Second)
	if err := fx.svc.LogoutAll(ctx, "staff-1", "staff", "compromise"); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	fx.clk.Advance(2 * time.Second)

	after, err := fx.svc.Login(ctx, "ana@example.com", testPassword, refreshdomain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := fx.verifier.Verify(ctx, before.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("pre-sentinel token: err = %v, want ErrTokenRevoked", err)
	}
	if _, err := fx.verifier.Verify(ctx, after.AccessToken); err != nil {
		t.Fatalf("post-sentinel token: %v", err)
	}
}
