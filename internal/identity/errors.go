package identity

import "errors"

var (
	ErrNotFound         = errors.New("identity: user not found")
	ErrInvalidPassword  = errors.New("identity: invalid password")
	ErrUserExists       = errors.New("identity: user already exists")
	ErrPasswordTooShort = errors.New("identity: password too short")
	ErrPasswordTooLong  = errors.New("identity: password too long")
	ErrInvalidHash      = errors.New("identity: invalid password hash")
)
