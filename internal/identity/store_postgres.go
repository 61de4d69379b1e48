package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore persists users in the mew.users table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const userColumns = `id, username, COALESCE(email, ''), COALESCE(avatar_url, ''), is_bot, password_hash, created_at`

func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	id := ulid.Make().String()

	var email any
	if in.Email != "" {
		email = in.Email
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO mew.users (
			id, username, username_norm, email, email_norm,
			password_hash, is_bot, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, false, $7, $7)
		RETURNING `+userColumns,
		id, in.Username, NormalizeIdentifier(in.Username),
		email, nullableNorm(in.Email),
		in.PasswordHash, in.Now,
	)

	u, err := scanUser(row)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("identity: create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM mew.users WHERE id = $1`, id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM mew.users WHERE username_norm = $1`, NormalizeIdentifier(username))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM mew.users WHERE email_norm = $1`, NormalizeIdentifier(email))
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg any) (User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("identity: get user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.AvatarURL, &u.IsBot, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func nullableNorm(s string) any {
	if s == "" {
		return nil
	}
	return NormalizeIdentifier(s)
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}
