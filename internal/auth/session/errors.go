package session

import "errors"

var (
	// ErrInvalidToken is returned when an access credential fails verification or validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionNotFound is returned when a refresh credential does not match any
	// record, and also when a concurrent rotation consumed the record first.
	// The two cases are deliberately indistinguishable to callers.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when the session is past expires_at.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionRevoked is returned when the session has been revoked.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrReuseDetected is returned when an already-consumed refresh credential is
	// presented again. By the time the caller sees it, every active session for
	// the owning user has been revoked.
	ErrReuseDetected = errors.New("refresh token reuse detected")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// IsDenial reports whether err is an expected authentication denial rather
// than an internal failure. The rotation path uses this to keep audit logs
// honest: internal errors must never be recorded as "token invalid".
func IsDenial(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrSessionRevoked) ||
		errors.Is(err, ErrReuseDetected) ||
		errors.Is(err, ErrInvalidToken)
}
