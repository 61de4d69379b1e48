package identity

import (
	"context"
	"strings"
	"time"
)

// User is the canonical user record.
type User struct {
	ID           string
	Username     string
	Email        string
	AvatarURL    string
	IsBot        bool
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUserInput describes a registration. Username is required; Email is
// optional. PasswordHash must already be encoded (the store never sees a
// plaintext password).
type CreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
	Now          time.Time
}

// Store is the user persistence boundary. Lookups by username/email operate
// on the normalized form.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// NormalizeIdentifier lowercases and trims a username or email for lookup.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
