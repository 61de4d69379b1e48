// Package token provides opaque-token primitives for Mew.
//
// It is the single source of truth for credential hashing behavior.
//
// Design goals:
// - Opaque secrets are CSPRNG-generated and base64url-encoded (no padding).
// - Default dev/back-compat mode: SHA-256(token) when no HMAC key is configured.
// - Production-enforced mode: HMAC-SHA256(token, key) when policy requires it.
// - Stable 64-char hex output for storage and constant-time comparison.
//
// The hash is a storage lookup key, not a MAC: collision resistance is what
// matters, so the unkeyed SHA-256 mode is acceptable wherever the raw secret
// itself carries the entropy.
//
// Environment:
// - MEW_TOKEN_HMAC_KEY: when set, enables HMAC mode.
// Policy:
//   - If RequireTokenHMAC=true, callers MUST enforce a minimum key size (>= 32 bytes)
//     and MUST use HMAC (no SHA fallback).
package token
