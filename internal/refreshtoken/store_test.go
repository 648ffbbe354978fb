package refreshtoken

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"staff-auth-core/internal/clock"
	"staff-auth-core/internal/refreshtoken/domain"
	"staff-auth-core/internal/refreshtoken/repository"
	"staff-auth-core/internal/security"
)

type memoryRepo struct {
	mu     sync.Mutex
	byID   map[string]*domain.RefreshToken
	byHash map[string]string // token_hash -> id
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: map[string]*domain.RefreshToken{}, byHash: map[string]string{}}
}

func (m *memoryRepo) Create(_ context.Context, t *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.byID[t.ID] = &cp
	m.byHash[t.TokenHash] = t.ID
	return nil
}

func (m *memoryRepo) FindByHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[tokenHash]
	if !ok {
		return nil, nil
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memoryRepo) Revoke(_ context.Context, id, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || t.Revoked {
		return nil
	}
	t.Revoked = true
	t.RevokedAt = &at
	t.RevokedReason = reason
	return nil
}

func (m *memoryRepo) RevokeAllForPrincipal(_ context.Context, principalID, principalType, reason string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.byID {
		if t.PrincipalID == principalID && t.PrincipalType == principalType && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = &at
			t.RevokedReason = reason
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) ClaimForRotation(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	t.RevokedAt = &at
	t.RevokedReason = "rotated"
	return true, nil
}

func (m *memoryRepo) TouchUsage(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byID[id]; ok {
		t.UsageCount++
		t.LastUsedAt = &at
	}
	return nil
}

func (m *memoryRepo) DeleteExpired(_ context.Context, now time.Time, revokedKeepFor time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := now.Add(-revokedKeepFor)
	var n int64
	for id, t := range m.byID {
		if t.ExpiresAt.Before(now) || (t.Revoked && t.RevokedAt != nil && t.RevokedAt.Before(cutoff)) {
			delete(m.byHash, t.TokenHash)
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) CountCreationsByIP(context.Context, time.Time, int) ([]repository.IPCreationCount, error) {
	return nil, nil
}

func (m *memoryRepo) CountSecurityRevocations(context.Context, time.Time, int) ([]repository.PrincipalRevocationCount, error) {
	return nil, nil
}

func (m *memoryRepo) ListHighUsage(context.Context, int, int) ([]*domain.RefreshToken, error) {
	return nil, nil
}

func newTestStore(t *testing.T) (*Store, *memoryRepo, *clock.Fake) {
	t.Helper()
	repo := newMemoryRepo()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewStore(repo, clk, 30*24*time.Hour, 7*24*time.Hour), repo, clk
}

func TestStore_CreateAndFindValid(t *testing.T) {
	store, _, clk := newTestStore(t)
	ctx := context.Background()

	secret, rec, err := store.Create(ctx, "staff-1", "staff", domain.DeviceInfo{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if secret == "" {
		t.Fatal("expected plaintext secret")
	}
	if rec.TokenHash != security.HashToken(secret) {
		t.Error("stored hash does not match secret")
	}
	if got, want := rec.ExpiresAt, clk.Now().Add(30*24*time.Hour); !got.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", got, want)
	}

	found, err := store.FindValid(ctx, secret)
	if err != nil {
		t.Fatalf("FindValid: %v", err)
	}
	if found == nil || found.ID != rec.ID {
		t.Fatalf("FindValid = %+v, want record %s", found, rec.ID)
	}
}

func TestStore_FindValid_Misses(t *testing.T) {
	store, _, clk := newTestStore(t)
	ctx := context.Background()

	if rec, err := store.FindValid(ctx, "no-such-secret"); err != nil || rec != nil {
		t.Fatalf("unknown secret: got (%v, %v), want (nil, nil)", rec, err)
	}

	secret, rec, err := store.Create(ctx, "staff-1", "staff", domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Revoke(ctx, rec, "logout"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if got, err := store.FindValid(ctx, secret); err != nil || got != nil {
		t.Fatalf("revoked secret: got (%v, %v), want (nil, nil)", got, err)
	}

	secret2, _, err := store.Create(ctx, "staff-1", "staff", domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	clk.Advance(31 * 24 * time.Hour)
	if got, err := store.FindValid(ctx, secret2); err != nil || got != nil {
		t.Fatalf("expired secret: got (%v, %v), want (nil, nil)", got, err)
	}
}

func TestStore_FindValid_RejectsMismatchedStoredHash(t *testing.T) {
	store, repo, clk := newTestStore(t)
	ctx := context.Background()

	// A row whose stored hash disagrees with its lookup key must not be
	// trusted, however it got that way.
	secret := "plaintext-secret"
	rec := &domain.RefreshToken{
		ID:          "rec-1",
		TokenHash:   security.HashToken("a-different-secret"),
		PrincipalID: "staff-1",
		ExpiresAt:   clk.Now().Add(time.Hour),
		CreatedAt:   clk.Now(),
	}
	repo.mu.Lock()
	repo.byID[rec.ID] = rec
	repo.byHash[security.HashToken(secret)] = rec.ID
	repo.mu.Unlock()

	if got, err := store.FindValid(ctx, secret); err != nil || got != nil {
		t.Fatalf("mismatched hash: got (%v, %v), want (nil, nil)", got, err)
	}
}

func TestStore_Rotate(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	oldSecret, rec, err := store.Create(ctx, "staff-1", "staff", domain.DeviceInfo{DeviceID: "d1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newSecret, newRec, err := store.Rotate(ctx, rec, domain.DeviceInfo{DeviceID: "d1"})
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if newSecret == oldSecret {
		t.Error("rotation reused the old secret")
	}
	if newRec.PrincipalID != rec.PrincipalID || newRec.PrincipalType != rec.PrincipalType {
		t.Error("replacement lost principal identity")
	}

	// The consumed secret must be dead immediately.
	if got, err := store.FindValid(ctx, oldSecret); err != nil || got != nil {
		t.Fatalf("old secret after rotation: got (%v, %v), want (nil, nil)", got, err)
	}
	if got, err := store.FindValid(ctx, newSecret); err != nil || got == nil {
		t.Fatalf("new secret after rotation: got (%v, %v), want live record", got, err)
	}

	// A second rotation of the same record loses the claim.
	if _, _, err := store.Rotate(ctx, rec, domain.DeviceInfo{}); !errors.Is(err, ErrRotationConflict) {
		t.Fatalf("second rotate: err = %v, want ErrRotationConflict", err)
	}
}

func TestStore_Rotate_ConcurrentSingleWinner(t *testing.T) {
	store, repo, _ := newTestStore(t)
	ctx := context.Background()

	_, rec, err := store.Create(ctx, "staff-1", "staff", domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Rotate(ctx, rec, domain.DeviceInfo{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrRotationConflict):
				conflicts++
			default:
				t.Errorf("Rotate: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
	if conflicts != attempts-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, attempts-1)
	}

	// One consumed record plus one replacement.
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.byID) != 2 {
		t.Errorf("records = %d, want 2", len(repo.byID))
	}
}

func TestStore_RevokeAllForPrincipal(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	var secrets []string
	for i := 0; i < 3; i++ {
		s, _, err := store.Create(ctx, "staff-1", "staff", domain.DeviceInfo{})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		secrets = append(secrets, s)
	}
	otherSecret, _, err := store.Create(ctx, "staff-2", "staff", domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := store.RevokeAllForPrincipal(ctx, "staff-1", "staff", "logout_all")
	if err != nil {
		t.Fatalf("RevokeAllForPrincipal: %v", err)
	}
	if n != 3 {
		t.Errorf("revoked = %d, want 3", n)
	}
	for _, s := range secrets {
		if got, _ := store.FindValid(ctx, s); got != nil {
			t.Error("secret survived bulk revocation")
		}
	}
	if got, _ := store.FindValid(ctx, otherSecret); got == nil {
		t.Error("bulk revocation crossed principals")
	}
}

func TestStore_Cleanup(t *testing.T) {
	store, repo, clk := newTestStore(t)
	ctx := context.Background()

	// Expired record.
	_, _, err := store.Create(ctx, "staff-1", "staff", domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Revoked record inside the retention window.
	_, recent, err := store.Create(ctx, "staff-1", "staff", domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	clk.Advance(31 * 24 * time.Hour)
	if err := store.Revoke(ctx, recent, "logout"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// First record expired 31d ago; recent one is revoked just now and also
	// expired, so both go.
	n, err := store.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	repo.mu.Lock()
	remaining := len(repo.byID)
	repo.mu.Unlock()
	if remaining != 0 {
		t.Errorf("records left = %d, want 0", remaining)
	}

	// Nothing eligible: no-op.
	if n, err := store.Cleanup(ctx); err != nil || n != 0 {
		t.Errorf("idle cleanup = (%d, %v), want (0, nil)", n, err)
	}
}
