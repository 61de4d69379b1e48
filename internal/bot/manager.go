package bot

import (
	"context"
	"log/slog"
	"time"
)

// Manager ties the credential codec to the bot store.
type Manager struct {
	log   *slog.Logger
	codec *Codec
	store Store
}

// Recovered is a bot row with its plaintext access token, produced only by
// the trusted bootstrap recovery path.
type Recovered struct {
	Bot      Row
	RawToken string
}

// NewManager constructs a Manager.
func NewManager(log *slog.Logger, codec *Codec, store Store) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{log: log, codec: codec, store: store}
}

// Authenticate resolves a presented raw bot access token. The raw token is
// hashed in-memory and never logged.
func (m *Manager) Authenticate(ctx context.Context, rawToken string) (Row, error) {
	if rawToken == "" {
		return Row{}, ErrNotFound
	}
	return m.store.GetByTokenHash(ctx, HashAccessToken(rawToken))
}

// Regenerate mints a fresh access token for a bot, stores its hash and
// ciphertext atomically, and returns the raw token exactly once.
func (m *Manager) Regenerate(ctx context.Context, now time.Time, botID string) (string, error) {
	raw, err := NewAccessToken()
	if err != nil {
		return "", err
	}
	enc, err := m.codec.Encrypt(raw)
	if err != nil {
		return "", err
	}
	if err := m.store.RegenerateToken(ctx, now, botID, HashAccessToken(raw), enc); err != nil {
		return "", err
	}
	m.log.Info("bot.token.regenerated", "bot_id", botID)
	return raw, nil
}

// RecoverTokens decrypts the stored credentials for every bot of a service
// type. Rows without a ciphertext (legacy, hash-only) are skipped; a failed
// decrypt is an integrity problem and aborts the whole recovery.
func (m *Manager) RecoverTokens(ctx context.Context, serviceType string) ([]Recovered, error) {
	rows, err := m.store.ListByServiceType(ctx, serviceType)
	if err != nil {
		return nil, err
	}

	var out []Recovered
	for _, row := range rows {
		if row.TokenEnc == nil {
			m.log.Warn("bot.token.unrecoverable", "bot_id", row.ID)
			continue
		}
		raw, err := m.codec.Decrypt(*row.TokenEnc)
		if err != nil {
			return nil, err
		}
		out = append(out, Recovered{Bot: row, RawToken: raw})
	}
	return out, nil
}
