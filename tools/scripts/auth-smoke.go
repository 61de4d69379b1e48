// Package main provides a CI-friendly smoke test for the Mew auth server.
//
// It validates, against a running server:
//   - register (or login when the user already exists)
//   - authenticated /api/users/me via bearer token
//   - refresh-token rotation through the cookie path
//   - reuse detection: replaying the pre-rotation refresh token is rejected
//   - logout clears the session
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	refreshCookieName = "mew_refresh_token"
	csrfCookieName    = "mew_csrf"
	csrfHeaderName    = "X-Mew-Csrf"
)

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		username = flag.String("user", "smoke-user", "Username to register/login with")
		password = flag.String("pass", "smoke-password-1", "Password")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-request timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := url.Parse(strings.TrimRight(*baseURL, "/"))
	if err != nil || base.Scheme == "" {
		fatalf("invalid -url: %q", *baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		fatalf("cookiejar: %v", err)
	}
	c := &smokeClient{
		base:    base,
		http:    &http.Client{Jar: jar, Timeout: *timeout},
		verbose: *verbose,
	}

	token := c.mustAuthenticate(*username, *password)
	c.mustMe(token)

	// Capture the refresh token before rotation so we can replay it.
	stale := c.refreshCookieValue()
	if stale == "" {
		fatalf("no refresh cookie after login")
	}

	c.mustRefresh()
	if c.refreshCookieValue() == stale {
		fatalf("refresh did not rotate the refresh token")
	}
	step(*verbose, "refresh rotated")

	// Replaying the consumed token must be rejected; the jar now holds the
	// rotated cookie, so send the stale one by hand.
	status := c.rawRefreshWith(stale)
	if status != http.StatusUnauthorized {
		fatalf("stale refresh: status=%d want=401", status)
	}
	step(*verbose, "reuse rejected")

	// Reuse detection revoked everything; log in again so logout has a
	// session to tear down.
	c.mustAuthenticate(*username, *password)
	c.mustLogout()
	step(*verbose, "logout ok")

	fmt.Println("auth smoke: OK")
}

type smokeClient struct {
	base    *url.URL
	http    *http.Client
	verbose bool
}

func (c *smokeClient) mustAuthenticate(username, password string) string {
	body := map[string]any{"username": username, "password": password}

	// Try register first; fall back to login when the user already exists.
	status, resp := c.postJSON("/api/auth/register", body)
	if status == http.StatusConflict || status == http.StatusForbidden {
		status, resp = c.postJSON("/api/auth/login", body)
	}
	if status != http.StatusOK {
		fatalf("authenticate: status=%d body=%s", status, resp)
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp, &parsed); err != nil || parsed.Token == "" {
		fatalf("authenticate: no token in response: %s", resp)
	}
	step(c.verbose, "authenticated")
	return parsed.Token
}

func (c *smokeClient) mustMe(token string) {
	req, err := http.NewRequest(http.MethodGet, c.base.String()+"/api/users/me", nil)
	if err != nil {
		fatalf("me: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		fatalf("me: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		fatalf("me: status=%d", res.StatusCode)
	}
	step(c.verbose, "me ok")
}

func (c *smokeClient) mustRefresh() {
	status, resp := c.postJSON("/api/auth/refresh", nil)
	if status != http.StatusOK {
		fatalf("refresh: status=%d body=%s", status, resp)
	}
}

func (c *smokeClient) mustLogout() {
	status, resp := c.postJSON("/api/auth/logout", nil)
	if status != http.StatusNoContent {
		fatalf("logout: status=%d body=%s", status, resp)
	}
}

// postJSON sends a cookie-bearing POST with the double-submit header set
// from the jar's csrf cookie.
func (c *smokeClient) postJSON(path string, body map[string]any) (int, []byte) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequest(http.MethodPost, c.base.String()+path, rd)
	if err != nil {
		fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if csrf := c.cookieValue(csrfCookieName); csrf != "" {
		req.Header.Set(csrfHeaderName, csrf)
	}

	res, err := c.http.Do(req)
	if err != nil {
		fatalf("POST %s: %v", path, err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	return res.StatusCode, data
}

// rawRefreshWith bypasses the jar and presents an explicit refresh token.
func (c *smokeClient) rawRefreshWith(refreshToken string) int {
	req, err := http.NewRequest(http.MethodPost, c.base.String()+"/api/auth/refresh", nil)
	if err != nil {
		fatalf("request: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: refreshToken})
	if csrf := c.cookieValue(csrfCookieName); csrf != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: csrf})
		req.Header.Set(csrfHeaderName, csrf)
	}

	res, err := c.http.Do(req)
	if err != nil {
		fatalf("stale refresh: %v", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	return res.StatusCode
}

func (c *smokeClient) refreshCookieValue() string {
	return c.cookieValue(refreshCookieName)
}

func (c *smokeClient) cookieValue(name string) string {
	// The refresh cookie is path-scoped; resolve against the auth prefix.
	u := *c.base
	u.Path = "/api/auth/refresh"
	for _, ck := range c.http.Jar.Cookies(&u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func step(verbose bool, msg string) {
	if verbose {
		fmt.Println("step:", msg)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "auth smoke: "+format+"\n", args...)
	os.Exit(1)
}
