package bot

import (
	"context"
	"time"
)

// Row mirrors the mew.bots row used by the credential subsystem.
type Row struct {
	ID          string
	Name        string
	BotUserID   string
	ServiceType string
	DMEnabled   bool
	Config      string
	TokenHash   string
	TokenEnc    *string // nil for legacy rows created before reversible storage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store abstracts persistence for bot credentials.
type Store interface {
	// GetByTokenHash resolves a presented bot access token (already hashed)
	// to the owning bot. ErrNotFound when no row matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (Row, error)

	// RegenerateToken atomically replaces both the hash and the ciphertext of
	// a bot's credential. The two columns must never refer to different
	// secrets, so the write is a single statement. ErrNotFound when the bot
	// does not exist.
	RegenerateToken(ctx context.Context, now time.Time, botID string, tokenHash string, tokenEnc string) error

	// ListByServiceType returns all bots for a service type, including their
	// stored ciphertexts, for trusted bootstrap recovery.
	ListByServiceType(ctx context.Context, serviceType string) ([]Row, error)
}
