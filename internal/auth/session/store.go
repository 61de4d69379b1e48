package session

import (
	"context"
	"net"
	"time"
)

// Provenance records where a credential was minted from. Write-once.
type Provenance struct {
	IP        net.IP
	UserAgent string
}

// Row mirrors the mew.sessions row used by the session subsystem.
// One row per issued refresh credential.
type Row struct {
	ID                string
	UserID            string
	TokenHash         string
	Persistent        bool
	CreatedAt         time.Time
	LastUsedAt        *time.Time
	ExpiresAt         time.Time
	RevokedAt         *time.Time
	ReplacedByTokenID *string
	UserAgent         *string
}

// Store abstracts persistence for session state.
//
// Correctness is pushed entirely to the store's atomic primitives: Consume
// must be a single conditional state transition, and the revoke operations
// must be idempotent. No in-process locking is layered on top.
type Store interface {
	// Create inserts a new active session row and returns its ID.
	Create(ctx context.Context, now time.Time, userID string, persistent bool, prov Provenance, tokenHash string, expiresAt time.Time) (string, error)

	// GetByID loads a session row by ID.
	GetByID(ctx context.Context, id string) (Row, error)

	// GetByTokenHash loads a session row by refresh-credential hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (Row, error)

	// Consume atomically transitions the row from active to revoked, guarded
	// on (id, revoked_at IS NULL, expires_at > now). Returns false when the
	// guard did not hold, i.e. a concurrent rotation won or the row expired
	// between read and consume.
	Consume(ctx context.Context, now time.Time, id string) (bool, error)

	// SetReplacedBy links a consumed row to its successor. Audit-only:
	// failures here must not fail the rotation.
	SetReplacedBy(ctx context.Context, id string, replacedBy string) error

	// Revoke revokes a single session (idempotent; revoked_at is write-once).
	Revoke(ctx context.Context, now time.Time, id string, reason string) error

	// RevokeAllForUser revokes every active session for a user (idempotent).
	RevokeAllForUser(ctx context.Context, now time.Time, userID string, reason string) error

	// Touch updates last_used_at for a session (best-effort).
	Touch(ctx context.Context, now time.Time, id string) error
}
