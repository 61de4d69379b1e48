// Package session implements Mew's credential lifecycle.
//
// It provides a multi-session model with refresh-credential rotation,
// reuse detection, and per-session/per-user revocation.
//
// Access credentials are issued as PASETO v4.public and are short-lived.
// Refresh credentials are opaque random strings and are stored hashed
// (HMAC-SHA256 when MEW_TOKEN_HMAC_KEY is set; otherwise SHA-256 for
// dev/back-compat). The raw secret is never persisted.
//
// Rotation is at-most-once: the consume step is a single conditional
// update keyed on (id, not revoked, not expired), so two concurrent
// presentations of the same refresh credential resolve to exactly one
// success. Presenting an already-consumed credential is treated as theft
// and revokes every active session for the owning user.
//
// Transport (cookies, CSRF) is intentionally out of scope here.
package session
