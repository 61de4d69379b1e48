package session

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Service implements the high-level credential-lifecycle operations for Mew.
//
// It issues sessions (access + refresh pair), validates access credentials,
// supports per-session and per-user revocation, and performs refresh rotation
// with reuse detection.
type Service struct {
	log    *slog.Logger
	cfg    Config
	tokens AccessTokenManager
	store  Store
}

// Issued is the result of issuing or rotating a session.
// It includes a short-lived access credential and an opaque refresh credential.
type Issued struct {
	TokenID      string
	UserID       string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time

	// Persistent mirrors the stored is_persistent flag of the new record.
	Persistent bool

	// MaxAge is the cookie max-age for the refresh credential. Set only for
	// persistent sessions; nil means the cookie dies with the browser session.
	MaxAge *time.Duration
}

// NewService constructs a Service with the provided configuration, store, and
// access-token manager.
func NewService(log *slog.Logger, cfg Config, store Store, tokens AccessTokenManager) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log, cfg: cfg, store: store, tokens: tokens}
}

// Issue creates a new session record and returns fresh credentials.
//
// Refresh credentials are opaque random strings and must never be persisted
// in plaintext. Only the hash (hex) is stored.
func (s *Service) Issue(ctx context.Context, now time.Time, userID string, persistent bool, prov Provenance) (Issued, error) {
	refreshPlain, refreshHash, err := newOpaqueRefreshToken(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Issued{}, err
	}

	refreshExp := now.Add(s.cfg.RefreshTTL)

	tokenID, err := s.store.Create(ctx, now, userID, persistent, prov, refreshHash, refreshExp)
	if err != nil {
		return Issued{}, err
	}

	accessToken, accessExp, err := s.tokens.Issue(userID, tokenID, now)
	if err != nil {
		return Issued{}, err
	}

	sessionsIssuedTotal.Inc()

	return s.issued(tokenID, userID, accessToken, accessExp, refreshPlain, refreshExp, persistent), nil
}

// Rotate exchanges a presented refresh credential for a new (access, refresh)
// pair, invalidating the old one. This is the security-critical path.
//
// Security model:
//   - An unknown or expired credential is denied without further effect.
//   - A known-but-revoked credential is evidence of capture: it was already
//     rotated (or logged out) by someone else. Every active session for the
//     owning user is revoked before the denial is returned.
//   - The consume step is a single conditional update, so concurrent replay
//     of the same credential yields exactly one winner.
//   - Persistence is carried over from the consumed record: rotation never
//     upgrades a session-scoped login to persistent, or the reverse.
//
// If issuing the successor fails after a successful consume, the lineage is
// lost and the user must log in again. That is deliberate: a half-applied
// rotation must never leave two live credentials, and we accept the lesser
// failure mode.
func (s *Service) Rotate(ctx context.Context, now time.Time, refreshTokenPlain string, prov Provenance) (Issued, error) {
	refreshTokenPlain = strings.TrimSpace(refreshTokenPlain)
	// Basic sanity bounds to avoid pathological inputs.
	if refreshTokenPlain == "" || len(refreshTokenPlain) > 4096 {
		rotationsTotal.WithLabelValues("denied").Inc()
		return Issued{}, ErrSessionNotFound
	}

	// Hash in-memory (never persist or log the plain credential).
	refreshHash := hashRefreshTokenHex(refreshTokenPlain)

	row, err := s.store.GetByTokenHash(ctx, refreshHash)
	if err != nil {
		if IsDenial(err) {
			rotationsTotal.WithLabelValues("denied").Inc()
		} else {
			rotationsTotal.WithLabelValues("error").Inc()
		}
		return Issued{}, err
	}

	// Expiry is authoritative; storage-level TTL cleanup is only advisory.
	if !row.ExpiresAt.After(now) {
		rotationsTotal.WithLabelValues("denied").Inc()
		return Issued{}, ErrSessionExpired
	}

	// Reuse detection: a consumed credential presented again.
	if row.RevokedAt != nil {
		if err := s.store.RevokeAllForUser(ctx, now, row.UserID, "reuse_detected"); err != nil {
			rotationsTotal.WithLabelValues("error").Inc()
			return Issued{}, err
		}
		massRevocationsTotal.WithLabelValues("reuse_detected").Inc()
		rotationsTotal.WithLabelValues("reuse").Inc()
		return Issued{}, ErrReuseDetected
	}

	// Atomic consume. Zero rows means a concurrent rotation won the race
	// (or the row expired in between): fail, do not proceed.
	consumed, err := s.store.Consume(ctx, now, row.ID)
	if err != nil {
		rotationsTotal.WithLabelValues("error").Inc()
		return Issued{}, err
	}
	if !consumed {
		rotationsTotal.WithLabelValues("denied").Inc()
		return Issued{}, ErrSessionNotFound
	}

	next, err := s.Issue(ctx, now, row.UserID, row.Persistent, prov)
	if err != nil {
		rotationsTotal.WithLabelValues("error").Inc()
		return Issued{}, err
	}

	// Audit back-link only; its failure must not fail the rotation.
	if err := s.store.SetReplacedBy(ctx, row.ID, next.TokenID); err != nil {
		s.log.Error("session.rotate.link.fail", "err", err, "token_id", row.ID)
	}

	rotationsTotal.WithLabelValues("ok").Inc()
	return next, nil
}

// Revoke revokes the session matching a raw refresh credential. Idempotent:
// unknown and already-revoked credentials are no-ops.
func (s *Service) Revoke(ctx context.Context, now time.Time, refreshTokenPlain string) error {
	refreshTokenPlain = strings.TrimSpace(refreshTokenPlain)
	if refreshTokenPlain == "" {
		return nil
	}

	row, err := s.store.GetByTokenHash(ctx, hashRefreshTokenHex(refreshTokenPlain))
	if err != nil {
		if IsDenial(err) {
			return nil
		}
		return err
	}
	if row.RevokedAt != nil {
		return nil
	}

	return s.store.Revoke(ctx, now, row.ID, "logout")
}

// RevokeAllForUser revokes all sessions for a user (logout everywhere).
func (s *Service) RevokeAllForUser(ctx context.Context, now time.Time, userID string) error {
	if err := s.store.RevokeAllForUser(ctx, now, userID, "logout"); err != nil {
		return err
	}
	massRevocationsTotal.WithLabelValues("logout").Inc()
	return nil
}

// IssueAccessToken issues a short-lived access credential for an existing session.
func (s *Service) IssueAccessToken(userID, tokenID string, now time.Time) (string, time.Time, error) {
	return s.tokens.Issue(userID, tokenID, now)
}

// ValidateAccessToken verifies an access credential and ensures the backing
// session is still active. Revocation is server-authoritative: a signed,
// unexpired token for a revoked session is rejected.
func (s *Service) ValidateAccessToken(ctx context.Context, token string, now time.Time) (AccessClaims, error) {
	claims, err := s.tokens.Verify(token, now)
	if err != nil {
		return AccessClaims{}, err
	}

	row, err := s.store.GetByID(ctx, claims.SessionID)
	if err != nil {
		return AccessClaims{}, err
	}

	if row.UserID != claims.UserID {
		return AccessClaims{}, ErrInvalidToken
	}
	if row.RevokedAt != nil {
		return AccessClaims{}, ErrSessionRevoked
	}
	if !row.ExpiresAt.After(now) {
		return AccessClaims{}, ErrSessionExpired
	}

	return claims, nil
}

// RefreshTTL exposes the configured refresh lifetime (cookie policy needs it).
func (s *Service) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// AccessTTL exposes the configured access lifetime (cookie policy needs it).
func (s *Service) AccessTTL() time.Duration { return s.cfg.AccessTokenTTL }

func (s *Service) issued(tokenID, userID, accessToken string, accessExp time.Time, refreshPlain string, refreshExp time.Time, persistent bool) Issued {
	out := Issued{
		TokenID:      tokenID,
		UserID:       userID,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshPlain,
		RefreshExp:   refreshExp,
		Persistent:   persistent,
	}
	if persistent {
		ttl := s.cfg.RefreshTTL
		out.MaxAge = &ttl
	}
	return out
}
