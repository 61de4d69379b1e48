package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Cookie and header names are part of the external contract and must not
// change across versions; clients and reverse proxies depend on them.
const (
	DefaultAccessCookieName  = "mew_token"
	DefaultRefreshCookieName = "mew_refresh_token"
	DefaultCSRFCookieName    = "mew_csrf"
	DefaultCSRFHeaderName    = "X-Mew-Csrf"

	// AuthRoutePrefix scopes the refresh cookie to the refresh/logout
	// endpoints only, so it never rides along on ordinary API calls.
	AuthRoutePrefix = "/api/auth"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy        bool
	MaxBodyBytes      int64
	AllowRegistration bool

	AccessCookieName  string
	RefreshCookieName string
	CSRFCookieName    string
	CSRFHeaderName    string

	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
//
// CookieSecure defaults to true when MEW_ENV is production-like; all three
// cookie classes share the one flag so they cannot diverge.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:        envBool("MEW_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:      envInt64("MEW_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		AllowRegistration: envBool("MEW_ALLOW_USER_REGISTRATION", true),

		AccessCookieName:  envString("MEW_AUTH_ACCESS_COOKIE_NAME", DefaultAccessCookieName),
		RefreshCookieName: envString("MEW_AUTH_REFRESH_COOKIE_NAME", DefaultRefreshCookieName),
		CSRFCookieName:    envString("MEW_AUTH_CSRF_COOKIE_NAME", DefaultCSRFCookieName),
		CSRFHeaderName:    envString("MEW_AUTH_CSRF_HEADER_NAME", DefaultCSRFHeaderName),

		CookieDomain:   envString("MEW_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:   envBool("MEW_AUTH_COOKIE_SECURE", isProductionEnv()),
		CookieSameSite: parseSameSite(envString("MEW_AUTH_COOKIE_SAMESITE", "lax")),
	}

	// Guardrails. The CSRF cookie is JS-readable; it must never collide with
	// an httpOnly credential cookie name.
	if cfg.CSRFCookieName == cfg.RefreshCookieName || cfg.CSRFCookieName == cfg.AccessCookieName {
		cfg.CSRFCookieName = DefaultCSRFCookieName + "_x"
	}
	// SameSite=None is only valid on secure cookies.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return cfg
}

func isProductionEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("MEW_ENV"))) {
	case "production", "prod", "staging":
		return true
	default:
		return false
	}
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
