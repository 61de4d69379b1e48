package authapi

import (
	"net/http"
	"time"

	"mew/internal/auth/session"
	"mew/security/token"
)

// CookiePolicy is the single writer of auth cookies. Three cookie classes
// exist:
//
//   - access cookie: httpOnly, path "/", carries the access token
//   - refresh cookie: httpOnly, path "/api/auth", carries the opaque
//     refresh token so it is only ever sent to the session endpoints
//   - CSRF cookie: JS-readable session cookie for the double-submit check
//
// Max-Age is set only on persistent ("remember me") sessions; session-scoped
// logins get browser-session cookies that evaporate on close.
type CookiePolicy struct {
	cfg       Config
	accessTTL time.Duration
}

func NewCookiePolicy(cfg Config, accessTTL time.Duration) CookiePolicy {
	if accessTTL <= 0 {
		accessTTL = session.DefaultAccessTTL
	}
	return CookiePolicy{cfg: cfg, accessTTL: accessTTL}
}

// csrfTokenBytes sizes the double-submit token. It gates request forgery,
// not session theft, so it is smaller than a refresh token.
const csrfTokenBytes = 32

// Set writes the full cookie triple for a freshly issued session and returns
// the CSRF token so callers can surface it in the response body if needed.
func (p CookiePolicy) Set(w http.ResponseWriter, iss session.Issued) (string, error) {
	csrf, err := token.NewOpaque(csrfTokenBytes)
	if err != nil {
		return "", err
	}

	access := p.base(p.cfg.AccessCookieName, iss.AccessToken, "/")
	access.HttpOnly = true
	refresh := p.base(p.cfg.RefreshCookieName, iss.RefreshToken, AuthRoutePrefix)
	refresh.HttpOnly = true
	csrfCookie := p.base(p.cfg.CSRFCookieName, csrf, "/")
	csrfCookie.HttpOnly = false

	// Persistent sessions get durable cookies. The access cookie lives as
	// long as the access token it carries; the refresh cookie lives as long
	// as the session itself.
	if iss.MaxAge != nil {
		access.MaxAge = int(p.accessTTL.Seconds())
		refresh.MaxAge = int(iss.MaxAge.Seconds())
	}

	http.SetCookie(w, access)
	http.SetCookie(w, refresh)
	http.SetCookie(w, csrfCookie)
	return csrf, nil
}

// Clear expires all three cookies. Called on logout and on any refresh
// failure so the client never retains credentials the server rejected.
func (p CookiePolicy) Clear(w http.ResponseWriter) {
	for _, c := range []*http.Cookie{
		p.base(p.cfg.AccessCookieName, "", "/"),
		p.base(p.cfg.RefreshCookieName, "", AuthRoutePrefix),
		p.base(p.cfg.CSRFCookieName, "", "/"),
	} {
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

// AccessToken extracts the access token from the request cookie.
func (p CookiePolicy) AccessToken(r *http.Request) (string, bool) {
	return cookieValue(r, p.cfg.AccessCookieName)
}

// RefreshToken extracts the refresh token from the request cookie.
func (p CookiePolicy) RefreshToken(r *http.Request) (string, bool) {
	return cookieValue(r, p.cfg.RefreshCookieName)
}

func (p CookiePolicy) base(name, value, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   p.cfg.CookieDomain,
		Secure:   p.cfg.CookieSecure,
		SameSite: p.cfg.CookieSameSite,
	}
}

func cookieValue(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
