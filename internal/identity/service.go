package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	authapi "mew/internal/auth/api"
)

// Service verifies logins and registers users. It implements
// authapi.IdentityVerifier and authapi.UserDirectory.
type Service struct {
	log   *slog.Logger
	store Store

	// dummyHash is verified against when the user does not exist, so a
	// missing account costs the same time as a wrong password.
	dummyHash string
}

func NewService(log *slog.Logger, store Store) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("identity: nil store")
	}

	dummy, err := HashPassword("dummy-password-for-timing-only", DefaultArgon2idParams())
	if err != nil {
		return nil, fmt.Errorf("identity: dummy hash: %w", err)
	}

	return &Service{log: log, store: store, dummyHash: dummy}, nil
}

func (s *Service) VerifyLogin(ctx context.Context, creds authapi.Credentials) (authapi.User, error) {
	u, err := s.lookup(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_, _ = VerifyPassword(creds.Password, s.dummyHash)
			return authapi.User{}, authapi.ErrInvalidCredentials
		}
		return authapi.User{}, err
	}

	ok, err := VerifyPassword(creds.Password, u.PasswordHash)
	if err != nil || !ok {
		return authapi.User{}, authapi.ErrInvalidCredentials
	}
	return toAPIUser(u), nil
}

func (s *Service) Register(ctx context.Context, creds authapi.Credentials) (authapi.User, error) {
	hash, err := HashPassword(creds.Password, DefaultArgon2idParams())
	if err != nil {
		return authapi.User{}, err
	}

	u, err := s.store.CreateUser(ctx, CreateUserInput{
		Username:     creds.Username,
		Email:        creds.Email,
		PasswordHash: hash,
		Now:          time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			return authapi.User{}, authapi.ErrUserExists
		}
		return authapi.User{}, err
	}
	return toAPIUser(u), nil
}

func (s *Service) GetUser(ctx context.Context, id string) (authapi.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return authapi.User{}, authapi.ErrUserNotFound
		}
		return authapi.User{}, err
	}
	return toAPIUser(u), nil
}

func (s *Service) lookup(ctx context.Context, creds authapi.Credentials) (User, error) {
	if creds.Username != "" {
		return s.store.GetUserByUsername(ctx, creds.Username)
	}
	if creds.Email != "" {
		return s.store.GetUserByEmail(ctx, creds.Email)
	}
	return User{}, ErrNotFound
}

func toAPIUser(u User) authapi.User {
	return authapi.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		IsBot:     u.IsBot,
		CreatedAt: u.CreatedAt,
	}
}
