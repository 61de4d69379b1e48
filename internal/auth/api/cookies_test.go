package authapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mew/internal/auth/session"
)

func findCookie(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestCookiePolicy_SetSessionScoped(t *testing.T) {
	pol := NewCookiePolicy(csrfTestConfig(), 15*time.Minute)

	w := httptest.NewRecorder()
	csrf, err := pol.Set(w, session.Issued{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if csrf == "" {
		t.Fatalf("expected a generated csrf token")
	}

	cookies := w.Result().Cookies()
	access := findCookie(t, cookies, DefaultAccessCookieName)
	refresh := findCookie(t, cookies, DefaultRefreshCookieName)
	csrfCookie := findCookie(t, cookies, DefaultCSRFCookieName)

	if !access.HttpOnly || !refresh.HttpOnly {
		t.Fatalf("credential cookies must be httpOnly")
	}
	if csrfCookie.HttpOnly {
		t.Fatalf("csrf cookie must be readable by scripts")
	}
	if access.Path != "/" {
		t.Fatalf("access path = %q, want /", access.Path)
	}
	if refresh.Path != AuthRoutePrefix {
		t.Fatalf("refresh path = %q, want %q", refresh.Path, AuthRoutePrefix)
	}
	if csrfCookie.Value != csrf {
		t.Fatalf("csrf cookie value does not match returned token")
	}

	// Session-scoped login: no Max-Age anywhere.
	for _, c := range []*http.Cookie{access, refresh, csrfCookie} {
		if c.MaxAge != 0 {
			t.Fatalf("cookie %s has max-age %d, want none", c.Name, c.MaxAge)
		}
	}
}

func TestCookiePolicy_SetPersistent(t *testing.T) {
	accessTTL := 15 * time.Minute
	refreshTTL := 720 * time.Hour
	pol := NewCookiePolicy(csrfTestConfig(), accessTTL)

	w := httptest.NewRecorder()
	if _, err := pol.Set(w, session.Issued{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		Persistent:   true,
		MaxAge:       &refreshTTL,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	cookies := w.Result().Cookies()
	access := findCookie(t, cookies, DefaultAccessCookieName)
	refresh := findCookie(t, cookies, DefaultRefreshCookieName)
	csrfCookie := findCookie(t, cookies, DefaultCSRFCookieName)

	if access.MaxAge != int(accessTTL.Seconds()) {
		t.Fatalf("access max-age = %d, want %d", access.MaxAge, int(accessTTL.Seconds()))
	}
	if refresh.MaxAge != int(refreshTTL.Seconds()) {
		t.Fatalf("refresh max-age = %d, want %d", refresh.MaxAge, int(refreshTTL.Seconds()))
	}
	// The csrf cookie stays session-scoped regardless of persistence.
	if csrfCookie.MaxAge != 0 {
		t.Fatalf("csrf max-age = %d, want none", csrfCookie.MaxAge)
	}
}

func TestCookiePolicy_ClearExpiresAllThree(t *testing.T) {
	pol := NewCookiePolicy(csrfTestConfig(), 15*time.Minute)

	w := httptest.NewRecorder()
	pol.Clear(w)

	cookies := w.Result().Cookies()
	for _, name := range []string{DefaultAccessCookieName, DefaultRefreshCookieName, DefaultCSRFCookieName} {
		c := findCookie(t, cookies, name)
		if c.MaxAge != -1 {
			t.Fatalf("cookie %s max-age = %d, want -1", name, c.MaxAge)
		}
		if c.Value != "" {
			t.Fatalf("cookie %s should be cleared, got value %q", name, c.Value)
		}
	}
}

func TestLoadConfigFromEnv_SameSiteNoneForcesSecure(t *testing.T) {
	t.Setenv("MEW_AUTH_COOKIE_SAMESITE", "none")
	t.Setenv("MEW_AUTH_COOKIE_SECURE", "false")

	cfg := LoadConfigFromEnv()
	if cfg.CookieSameSite != http.SameSiteNoneMode {
		t.Fatalf("samesite = %v, want none", cfg.CookieSameSite)
	}
	if !cfg.CookieSecure {
		t.Fatalf("SameSite=None must force the secure flag")
	}
}

func TestLoadConfigFromEnv_ProductionDefaultsSecure(t *testing.T) {
	t.Setenv("MEW_ENV", "production")

	cfg := LoadConfigFromEnv()
	if !cfg.CookieSecure {
		t.Fatalf("production deployments must default to secure cookies")
	}
}

func TestLoadConfigFromEnv_CSRFNameCollisionRenamed(t *testing.T) {
	t.Setenv("MEW_AUTH_CSRF_COOKIE_NAME", DefaultRefreshCookieName)

	cfg := LoadConfigFromEnv()
	if cfg.CSRFCookieName == cfg.RefreshCookieName {
		t.Fatalf("csrf cookie must never share a name with a credential cookie")
	}
}
