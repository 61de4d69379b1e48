// Package authapi exposes the session lifecycle over HTTP: login, register,
// bot login, refresh-token rotation, logout, and the CSRF double-submit
// guard. Cookie handling is centralized in CookiePolicy so transport
// attributes cannot drift between endpoints.
package authapi
