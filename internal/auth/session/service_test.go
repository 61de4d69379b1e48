package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

func testService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()

	secret := paseto.NewV4AsymmetricSecretKey()
	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = secret.ExportHex()

	mgr, err := NewPasetoV4PublicManager(cfg)
	if err != nil {
		t.Fatalf("NewPasetoV4PublicManager: %v", err)
	}

	store := NewMemoryStore()
	return NewService(nil, cfg, store, mgr), store
}

func TestIssue_PersistenceControlsMaxAge(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	persistent, err := svc.Issue(ctx, now, "user-1", true, Provenance{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if persistent.MaxAge == nil {
		t.Fatalf("persistent session must carry a max-age")
	}
	if *persistent.MaxAge != svc.RefreshTTL() {
		t.Fatalf("max-age = %v, want %v", *persistent.MaxAge, svc.RefreshTTL())
	}

	scoped, err := svc.Issue(ctx, now, "user-1", false, Provenance{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if scoped.MaxAge != nil {
		t.Fatalf("session-scoped login must never carry a max-age")
	}
}

func TestRotate_HappyPathLinksAndPreservesPersistence(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := svc.Issue(ctx, now, "user-1", true, Provenance{UserAgent: "ua-1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	next, err := svc.Rotate(ctx, now.Add(time.Minute), first.RefreshToken, Provenance{UserAgent: "ua-2"})
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if next.UserID != "user-1" {
		t.Fatalf("rotation changed the owner: %q", next.UserID)
	}
	if next.RefreshToken == first.RefreshToken {
		t.Fatalf("rotation must mint a new refresh credential")
	}
	if !next.Persistent || next.MaxAge == nil {
		t.Fatalf("persistence must survive rotation")
	}

	old, err := store.GetByID(ctx, first.TokenID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if old.RevokedAt == nil {
		t.Fatalf("consumed record must be revoked")
	}
	if old.ReplacedByTokenID == nil || *old.ReplacedByTokenID != next.TokenID {
		t.Fatalf("consumed record must link to its successor")
	}
	if store.ActiveCountForUser("user-1", now.Add(time.Minute)) != 1 {
		t.Fatalf("rotation must leave exactly one active record")
	}
}

func TestRotate_SessionScopedStaysSessionScoped(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := svc.Issue(ctx, now, "user-1", false, Provenance{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	next, err := svc.Rotate(ctx, now.Add(time.Minute), first.RefreshToken, Provenance{})
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if next.Persistent || next.MaxAge != nil {
		t.Fatalf("rotation must not upgrade a session-scoped login to persistent")
	}
}

func TestRotate_AtMostOnceUnderConcurrentReplay(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := svc.Issue(ctx, now, "user-1", false, Provenance{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Rotate(ctx, now.Add(time.Second), first.RefreshToken, Provenance{})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		// Losers fail; whether a given loser read the row before or after the
		// winner's consume decides which denial it sees. Either way no loser
		// may surface an internal error.
		if !IsDenial(err) {
			t.Fatalf("loser returned non-denial error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one rotation winner, got %d", wins)
	}
	if got := store.ActiveCountForUser("user-1", now.Add(time.Second)); got > 1 {
		t.Fatalf("expected at most one active record after the race, got %d", got)
	}
}

func TestRotate_ReuseDetectionRevokesEverything(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stolen, err := svc.Issue(ctx, now, "user-1", false, Provenance{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// An unrelated second device for the same user.
	other, err := svc.Issue(ctx, now, "user-1", false, Provenance{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := svc.Rotate(ctx, now.Add(time.Second), stolen.RefreshToken, Provenance{}); err != nil {
		t.Fatalf("first rotation should succeed: %v", err)
	}

	// Replay of the consumed credential: deny and nuke every session.
	_, err = svc.Rotate(ctx, now.Add(2*time.Second), stolen.RefreshToken, Provenance{})
	if !errors.Is(err, ErrReuseDetected) {
		t.Fatalf("expected ErrReuseDetected, got %v", err)
	}

	if got := store.ActiveCountForUser("user-1", now.Add(2*time.Second)); got != 0 {
		t.Fatalf("reuse detection must revoke all sessions, %d still active", got)
	}

	otherRow, err := store.GetByID(ctx, other.TokenID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if otherRow.RevokedAt == nil {
		t.Fatalf("independently issued session must be swept by the cascade")
	}
}

func TestRotate_ExpiryIsAuthoritative(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	issued, err := svc.Issue(ctx, now, "user-1", false, Provenance{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	late := now.Add(svc.RefreshTTL() + time.Second)
	_, err = svc.Rotate(ctx, late, issued.RefreshToken, Provenance{})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRotate_UnknownTokenDenied(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.Rotate(context.Background(), time.Now().UTC(), "no-such-token", Provenance{})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	issued, err := svc.Issue(ctx, now, "user-1", false, Provenance{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.Revoke(ctx, now, issued.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	row, err := store.GetByID(ctx, issued.TokenID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row.RevokedAt == nil {
		t.Fatalf("expected revoked record")
	}
	firstRevokedAt := *row.RevokedAt

	// Second revoke and unknown-token revoke are both no-ops.
	if err := svc.Revoke(ctx, now.Add(time.Hour), issued.RefreshToken); err != nil {
		t.Fatalf("repeat Revoke: %v", err)
	}
	if err := svc.Revoke(ctx, now, "never-issued"); err != nil {
		t.Fatalf("unknown Revoke: %v", err)
	}

	row, _ = store.GetByID(ctx, issued.TokenID)
	if !row.RevokedAt.Equal(firstRevokedAt) {
		t.Fatalf("revoked_at must be write-once")
	}
}

func TestValidateAccessToken_HonorsRevocation(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	issued, err := svc.Issue(ctx, now, "user-1", false, Provenance{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := svc.ValidateAccessToken(ctx, issued.AccessToken, now.Add(time.Second))
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.SessionID != issued.TokenID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if err := svc.RevokeAllForUser(ctx, now, "user-1"); err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if _, err := svc.ValidateAccessToken(ctx, issued.AccessToken, now.Add(2*time.Second)); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestPasetoV4_IssueAndVerify(t *testing.T) {
	secret := paseto.NewV4AsymmetricSecretKey()
	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = secret.ExportHex()

	mgr, err := NewPasetoV4PublicManager(cfg)
	if err != nil {
		t.Fatalf("NewPasetoV4PublicManager: %v", err)
	}

	now := time.Now().UTC()
	tok, exp, err := mgr.Issue("01HZZZZZZZZZZZZZZZZZZZZZZZ", "01HYYYYYYYYYYYYYYYYYYYYYYY", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.After(now) {
		t.Fatalf("expected exp after now")
	}

	claims, err := mgr.Verify(tok, now.Add(1*time.Second))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID == "" || claims.SessionID == "" {
		t.Fatalf("missing claims")
	}

	if _, err := mgr.Verify(tok, exp.Add(time.Minute)); err == nil {
		t.Fatalf("expected expired token to fail verification")
	}
}
