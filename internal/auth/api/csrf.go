package authapi

import (
	"net/http"
	"strings"

	"mew/security/token"
)

// CsrfGuard enforces a double-submit check on mutating requests that look
// browser-originated. Non-browser clients (bots, CLI tools) authenticate
// with bearer tokens, send no cookies and no Origin header, and pass
// through untouched.
type CsrfGuard struct {
	cfg Config
}

func NewCsrfGuard(cfg Config) CsrfGuard {
	return CsrfGuard{cfg: cfg}
}

// Middleware wraps next with the CSRF check.
//
// A request is checked when it is a mutating method AND at least one
// browser signal is present: it targets a session-mutation path, carries an
// Origin header, or carries one of the auth cookies. Checked requests must
// present matching CSRF header and cookie values or they are rejected.
func (g CsrfGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if safeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		if !g.browserSignal(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !g.doubleSubmitValid(r) {
			writeError(w, http.StatusForbidden, "csrf_mismatch", "CSRF token missing or invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g CsrfGuard) browserSignal(r *http.Request) bool {
	if sessionMutationPath(r.URL.Path) {
		return true
	}
	if r.Header.Get("Origin") != "" {
		return true
	}
	if _, err := r.Cookie(g.cfg.AccessCookieName); err == nil {
		return true
	}
	if _, err := r.Cookie(g.cfg.RefreshCookieName); err == nil {
		return true
	}
	return false
}

func (g CsrfGuard) doubleSubmitValid(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get(g.cfg.CSRFHeaderName))
	if header == "" {
		return false
	}
	c, err := r.Cookie(g.cfg.CSRFCookieName)
	if err != nil || c.Value == "" {
		return false
	}
	return token.Equal(header, c.Value)
}

// sessionMutationPath marks the endpoints that change session state; these
// are always checked even when the browser withheld cookies from the path.
func sessionMutationPath(p string) bool {
	switch p {
	case AuthRoutePrefix + "/refresh",
		AuthRoutePrefix + "/logout",
		AuthRoutePrefix + "/logout_all":
		return true
	}
	return false
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
