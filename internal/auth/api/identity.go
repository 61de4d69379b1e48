package authapi

import (
	"context"
	"errors"
	"time"
)

// The identity layer (password hashing, user records) lives outside this
// package. The handler only needs two narrow views of it: "did these
// credentials verify" and "load this user for the response body".

var (
	// ErrInvalidCredentials means the identifier/password pair did not verify.
	ErrInvalidCredentials = errors.New("authapi: invalid credentials")
	// ErrUserNotFound means the referenced user no longer exists.
	ErrUserNotFound = errors.New("authapi: user not found")
	// ErrUserExists means registration collided with an existing identifier.
	ErrUserExists = errors.New("authapi: user already exists")
)

// User is the identity shape surfaced in auth responses.
type User struct {
	ID        string
	Username  string
	Email     string
	AvatarURL string
	IsBot     bool
	CreatedAt time.Time
}

// Credentials carries a login or registration attempt. Username and Email
// are alternatives; at least one must be set.
type Credentials struct {
	Username string
	Email    string
	Password string
}

// IdentityVerifier verifies passwords and creates users. Implemented by the
// identity service; this package never sees a password hash.
type IdentityVerifier interface {
	// VerifyLogin returns the user when the credentials verify, or
	// ErrInvalidCredentials. Other errors are infrastructure failures.
	VerifyLogin(ctx context.Context, creds Credentials) (User, error)
	// Register creates a new user, or returns ErrUserExists.
	Register(ctx context.Context, creds Credentials) (User, error)
}

// UserDirectory resolves user IDs to users for response bodies.
type UserDirectory interface {
	// GetUser returns ErrUserNotFound when the ID resolves to nothing.
	GetUser(ctx context.Context, id string) (User, error)
}
