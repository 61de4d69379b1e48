package bot

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (mew.bots).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed bot store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const botColumns = `
	id, name, bot_user_id, service_type, dm_enabled, config,
	token_hash, token_enc, created_at, updated_at
`

// GetByTokenHash resolves a hashed bot access token to the owning bot.
func (s *PostgresStore) GetByTokenHash(ctx context.Context, tokenHash string) (Row, error) {
	var row Row

	err := s.pool.QueryRow(ctx, `
		SELECT `+botColumns+`
		FROM mew.bots
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&row.ID,
		&row.Name,
		&row.BotUserID,
		&row.ServiceType,
		&row.DMEnabled,
		&row.Config,
		&row.TokenHash,
		&row.TokenEnc,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, err
	}

	return row, nil
}

// RegenerateToken replaces hash and ciphertext in one UPDATE so the two
// columns can never describe different secrets.
func (s *PostgresStore) RegenerateToken(ctx context.Context, now time.Time, botID string, tokenHash string, tokenEnc string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE mew.bots
		SET token_hash = $2,
		    token_enc = $3,
		    updated_at = $4
		WHERE id = $1
	`, botID, tokenHash, tokenEnc, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByServiceType returns all bots of a service type with their stored
// ciphertexts (trusted bootstrap recovery path).
func (s *PostgresStore) ListByServiceType(ctx context.Context, serviceType string) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+botColumns+`
		FROM mew.bots
		WHERE service_type = $1
		ORDER BY created_at
	`, serviceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(
			&row.ID,
			&row.Name,
			&row.BotUserID,
			&row.ServiceType,
			&row.DMEnabled,
			&row.Config,
			&row.TokenHash,
			&row.TokenEnc,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
