package session

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store using PostgreSQL (mew.sessions).
//
// Expired rows are additionally garbage-collected by an external retention
// job; that cleanup is advisory and never a correctness mechanism — every
// query here re-checks expires_at explicitly.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const rowColumns = `
	id, user_id, token_hash, is_persistent,
	created_at, last_used_at, expires_at, revoked_at,
	replaced_by_token_id, user_agent
`

// Create inserts a new session row and returns its ULID.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, userID string, persistent bool, prov Provenance, tokenHash string, expiresAt time.Time) (string, error) {
	id := ulid.Make().String()

	var ip net.IP
	if prov.IP != nil {
		ip = prov.IP
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO mew.sessions (
			id, user_id, token_hash, is_persistent,
			created_at, last_used_at, expires_at, revoked_at,
			replaced_by_token_id, created_by_ip, user_agent, revocation_reason
		) VALUES (
			$1, $2, $3, $4,
			$5, $5, $6, NULL,
			NULL, $7, $8, NULL
		)
	`, id, userID, tokenHash, persistent, now, expiresAt, ip, nullIfEmpty(prov.UserAgent))
	if err != nil {
		return "", err
	}

	return id, nil
}

// GetByID loads a session row by ID.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Row, error) {
	return s.scanOne(ctx, `SELECT `+rowColumns+` FROM mew.sessions WHERE id = $1`, id)
}

// GetByTokenHash loads a session row by refresh-credential hash.
func (s *PostgresStore) GetByTokenHash(ctx context.Context, tokenHash string) (Row, error) {
	return s.scanOne(ctx, `SELECT `+rowColumns+` FROM mew.sessions WHERE token_hash = $1`, tokenHash)
}

func (s *PostgresStore) scanOne(ctx context.Context, sql string, arg any) (Row, error) {
	var row Row

	err := s.pool.QueryRow(ctx, sql, arg).Scan(
		&row.ID,
		&row.UserID,
		&row.TokenHash,
		&row.Persistent,
		&row.CreatedAt,
		&row.LastUsedAt,
		&row.ExpiresAt,
		&row.RevokedAt,
		&row.ReplacedByTokenID,
		&row.UserAgent,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}

	return row, nil
}

// Consume flips the row from active to revoked in a single guarded update.
// The guard makes rotation at-most-once under concurrent replay: whichever
// request lands the update first wins, every other sees zero rows.
func (s *PostgresStore) Consume(ctx context.Context, now time.Time, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE mew.sessions
		SET
			last_used_at = $2,
			revoked_at = $2,
			revocation_reason = 'rotation'
		WHERE id = $1
		  AND revoked_at IS NULL
		  AND expires_at > $2
	`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetReplacedBy links a consumed row to its successor.
func (s *PostgresStore) SetReplacedBy(ctx context.Context, id string, replacedBy string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE mew.sessions
		SET replaced_by_token_id = $2
		WHERE id = $1
	`, id, replacedBy)
	return err
}

// Revoke revokes a single session (idempotent; COALESCE keeps the first
// revocation timestamp and reason).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, id string, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE mew.sessions
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, $3)
		WHERE id = $1
	`, id, now, reason)
	return err
}

// RevokeAllForUser revokes all sessions for a user (idempotent).
func (s *PostgresStore) RevokeAllForUser(ctx context.Context, now time.Time, userID string, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE mew.sessions
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, $3)
		WHERE user_id = $1
	`, userID, now, reason)
	return err
}

// Touch updates last_used_at for a session.
func (s *PostgresStore) Touch(ctx context.Context, now time.Time, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE mew.sessions
		SET last_used_at = $2
		WHERE id = $1
	`, id, now)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
