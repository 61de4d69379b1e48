package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	authapi "mew/internal/auth/api"
)

func seedUser(t *testing.T, store *MemoryStore, username, email, password string) User {
	t.Helper()
	hash, err := HashPassword(password, fastParams())
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u, err := store.CreateUser(context.Background(), CreateUserInput{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Now:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestService_VerifyLogin(t *testing.T) {
	store := NewMemoryStore()
	seeded := seedUser(t, store, "alice", "alice@example.com", "correct horse")

	svc, err := NewService(nil, store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	u, err := svc.VerifyLogin(ctx, authapi.Credentials{Username: "alice", Password: "correct horse"})
	if err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}
	if u.ID != seeded.ID {
		t.Fatalf("user = %q, want %q", u.ID, seeded.ID)
	}

	// Email works as an alternative identifier, case-insensitively.
	if _, err := svc.VerifyLogin(ctx, authapi.Credentials{Email: "Alice@Example.COM", Password: "correct horse"}); err != nil {
		t.Fatalf("VerifyLogin by email: %v", err)
	}

	// Wrong password and unknown user collapse into one error.
	if _, err := svc.VerifyLogin(ctx, authapi.Credentials{Username: "alice", Password: "wrong"}); !errors.Is(err, authapi.ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := svc.VerifyLogin(ctx, authapi.Credentials{Username: "nobody", Password: "whatever8"}); !errors.Is(err, authapi.ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}
}

func TestService_RegisterAndGetUser(t *testing.T) {
	store := NewMemoryStore()
	svc, err := NewService(nil, store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	u, err := svc.Register(ctx, authapi.Credentials{Username: "bob", Password: "hunter22hunter22"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := svc.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "bob" {
		t.Fatalf("username = %q, want bob", got.Username)
	}

	if _, err := svc.Register(ctx, authapi.Credentials{Username: "BOB", Password: "hunter22hunter22"}); !errors.Is(err, authapi.ErrUserExists) {
		t.Fatalf("duplicate register err = %v", err)
	}
	if _, err := svc.Register(ctx, authapi.Credentials{Username: "carol", Password: "short"}); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("short password err = %v", err)
	}

	if _, err := svc.GetUser(ctx, "no-such-id"); !errors.Is(err, authapi.ErrUserNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}
