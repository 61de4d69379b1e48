package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAccessTTL is the fallback access-credential lifetime used when the
// configured TTL cannot be parsed. A bounded default is safer than refusing
// to start or issuing unbounded cookies.
const DefaultAccessTTL = 30 * time.Minute

// Config defines all runtime configuration for the session subsystem.
//
// It controls access-credential TTL, the refresh-credential lifetime,
// clock skew tolerance, refresh entropy size, and PASETO v4 signing keys.
//
// This struct is intentionally explicit and environment-driven so that
// production deployments can tune security parameters without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim of access credentials.
	Issuer string

	// AccessTokenTTL defines the lifetime of PASETO access credentials.
	AccessTokenTTL time.Duration

	// RefreshTTL defines the server-side lifetime of refresh credentials.
	// Persistence ("remember me") affects only cookie max-age, never this.
	RefreshTTL time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// RefreshTokenBytes defines the number of random bytes used
	// to generate opaque refresh credentials.
	RefreshTokenBytes int

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key
	// used to sign PASETO v4.public access credentials.
	PasetoV4SecretKeyHex string
}

// DefaultConfig returns a secure default configuration suitable for development.
//
// Production environments should override values via environment variables.
func DefaultConfig() Config {
	return Config{
		Issuer:            "mew",
		AccessTokenTTL:    DefaultAccessTTL,
		RefreshTTL:        30 * 24 * time.Hour,
		ClockSkew:         30 * time.Second,
		RefreshTokenBytes: 48,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - MEW_PASETO_V4_SECRET_KEY_HEX
//
// Optional:
//   - MEW_AUTH_ISSUER
//   - MEW_AUTH_ACCESS_TTL (TTL string, see ParseTTLSeconds)
//   - MEW_AUTH_REFRESH_TTL (TTL string)
//   - MEW_AUTH_CLOCK_SKEW (Go duration)
//   - MEW_AUTH_REFRESH_TOKEN_BYTES
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("MEW_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	cfg.AccessTokenTTL = ParseTTLSeconds(os.Getenv("MEW_AUTH_ACCESS_TTL"), cfg.AccessTokenTTL)
	cfg.RefreshTTL = ParseTTLSeconds(os.Getenv("MEW_AUTH_REFRESH_TTL"), cfg.RefreshTTL)

	if v := os.Getenv("MEW_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("MEW_AUTH_REFRESH_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenBytes = n
	}

	cfg.PasetoV4SecretKeyHex = os.Getenv("MEW_PASETO_V4_SECRET_KEY_HEX")
	if cfg.PasetoV4SecretKeyHex == "" {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

// ParseTTLSeconds parses a credential-TTL setting. Accepted forms:
//
//   - bare integer: seconds ("60" -> 60s)
//   - integer with unit suffix: "90s", "15m", "2h", "7d", "2w"
//
// Anything else (empty, zero, negative, unknown unit, garbage) returns
// fallback. This is a closed parser, not a duration DSL: "d" and "w" exist
// because deployment configs use them, and time.ParseDuration does not.
func ParseTTLSeconds(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	unit := time.Second
	num := raw
	switch raw[len(raw)-1] {
	case 's':
		num = raw[:len(raw)-1]
	case 'm':
		unit = time.Minute
		num = raw[:len(raw)-1]
	case 'h':
		unit = time.Hour
		num = raw[:len(raw)-1]
	case 'd':
		unit = 24 * time.Hour
		num = raw[:len(raw)-1]
	case 'w':
		unit = 7 * 24 * time.Hour
		num = raw[:len(raw)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}

	return time.Duration(n) * unit
}
