package app

import (
	"errors"

	"mew/security/token"
)

// ValidateSecurityConfig enforces the startup security policy. Failing fast
// beats silently running with weaker crypto in production.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// 32 bytes minimum for an HMAC-SHA256 secret; measured in bytes, not
	// runes, because the key is used as raw bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: MEW_REQUIRE_TOKEN_HMAC=true but MEW_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: MEW_REQUIRE_TOKEN_HMAC=true but MEW_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	// Guard against future changes that reintroduce a plain-SHA fallback
	// under policy.
	if !token.HMACEnabled() {
		return errors.New("security policy: MEW_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
