package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"mew/internal/auth/session"
	"mew/internal/bot"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler wires the HTTP auth endpoints to the session, identity and bot
// services. It is the only writer of auth cookies (via CookiePolicy).
type Handler struct {
	log *slog.Logger
	cfg Config
	pol CookiePolicy

	pool *pgxpool.Pool

	sessions *session.Service
	identity IdentityVerifier
	users    UserDirectory
	bots     *bot.Manager
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithBotManager enables the bot-login endpoint.
func WithBotManager(m *bot.Manager) HandlerOption {
	return func(h *Handler) {
		if h == nil || m == nil {
			return
		}
		h.bots = m
	}
}

// WithAuditPool enables audit-log writes. Without it the handler still
// works; audit events are simply dropped (useful in tests and dev mode).
func WithAuditPool(pool *pgxpool.Pool) HandlerOption {
	return func(h *Handler) {
		if h == nil || pool == nil {
			return
		}
		h.pool = pool
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, identity IdentityVerifier, users UserDirectory, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}
	if identity == nil {
		return nil, errors.New("authapi: nil identity verifier")
	}
	if users == nil {
		return nil, errors.New("authapi: nil user directory")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		pol:      NewCookiePolicy(cfg, sessions.AccessTTL()),
		sessions: sessions,
		identity: identity,
		users:    users,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc(AuthRoutePrefix+"/login", h.handleLogin)
	mux.HandleFunc(AuthRoutePrefix+"/register", h.handleRegister)
	mux.HandleFunc(AuthRoutePrefix+"/bot/login", h.handleBotLogin)
	mux.HandleFunc(AuthRoutePrefix+"/refresh", h.handleRefresh)
	mux.HandleFunc(AuthRoutePrefix+"/logout", h.handleLogout)
	mux.HandleFunc(AuthRoutePrefix+"/logout_all", h.handleLogoutAll)
	mux.HandleFunc("/api/users/me", h.handleMe)
}

// CookiePolicyRef exposes the cookie policy for middleware construction.
func (h *Handler) CookiePolicyRef() CookiePolicy {
	return h.pol
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	creds := Credentials{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: req.Password,
	}
	if (creds.Username == "" && creds.Email == "") || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username/email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())
	identifier := loginIdentifier(creds)

	u, err := h.identity.VerifyLogin(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrUserNotFound) {
			h.auditLoginFailed(ctx, nil, ip, ua, identifier, "invalid_credentials")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("auth.login.verify.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.issueAndRespond(w, r, now, u, req.RememberMe, func(iss session.Issued) {
		h.auditLoginSuccess(ctx, u.ID, iss.TokenID, ip, ua, identifier)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.cfg.AllowRegistration {
		writeError(w, http.StatusForbidden, "registration_disabled", "registration is disabled")
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	creds := Credentials{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: req.Password,
	}
	if creds.Username == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	u, err := h.identity.Register(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			writeError(w, http.StatusConflict, "user_exists", "username or email already taken")
			return
		}
		h.log.Error("auth.register.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.issueAndRespond(w, r, now, u, req.RememberMe, func(iss session.Issued) {
		h.auditRegister(ctx, u.ID, iss.TokenID, ip, ua)
	})
}

func (h *Handler) handleBotLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.bots == nil {
		writeError(w, http.StatusServiceUnavailable, "bots_disabled", "bot login not configured")
		return
	}

	var req botLoginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "access_token is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	b, err := h.bots.Authenticate(ctx, req.AccessToken)
	if err != nil {
		if errors.Is(err, bot.ErrNotFound) {
			h.auditBotLoginFailed(ctx, ip, ua)
			writeError(w, http.StatusUnauthorized, "invalid_bot_token", "invalid bot token")
			return
		}
		h.log.Error("auth.bot.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	u, err := h.users.GetUser(ctx, b.BotUserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			h.auditBotLoginFailed(ctx, ip, ua)
			writeError(w, http.StatusUnauthorized, "invalid_bot_token", "invalid bot token")
			return
		}
		h.log.Error("auth.bot.login.user.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	// Bot sessions are never persistent.
	h.issueAndRespond(w, r, now, u, false, func(iss session.Issued) {
		h.auditBotLoginSuccess(ctx, u.ID, iss.TokenID, ip, ua)
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	refreshToken, ok := h.pol.RefreshToken(r)
	if !ok {
		// Non-cookie clients may carry the token in the body instead.
		var req refreshRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
				return
			}
		}
		refreshToken = strings.TrimSpace(req.RefreshToken)
	}
	if refreshToken == "" {
		h.auditRefreshDenied(ctx, ip, ua, "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized", "refresh token required")
		return
	}

	iss, err := h.sessions.Rotate(ctx, now, refreshToken, session.Provenance{IP: ip, UserAgent: ua})
	if err != nil {
		// Every failure clears the cookies so the client does not keep
		// replaying credentials the server already rejected.
		h.pol.Clear(w)
		switch {
		case errors.Is(err, session.ErrReuseDetected):
			h.auditRefreshReuse(ctx, ip, ua)
			writeError(w, http.StatusUnauthorized, "refresh_reuse_detected", "refresh token reuse detected")
		case session.IsDenial(err):
			h.auditRefreshDenied(ctx, ip, ua, "session_not_active")
			writeError(w, http.StatusUnauthorized, "session_not_active", "session not active")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			h.auditRefreshError(ctx, ip, ua)
			writeError(w, http.StatusUnauthorized, "unauthorized", "could not refresh session")
		}
		return
	}

	u, err := h.users.GetUser(ctx, iss.UserID)
	if err != nil {
		// Identity vanished between rotation and response. Kill the freshly
		// issued session so it does not dangle.
		if revErr := h.sessions.Revoke(ctx, now, iss.RefreshToken); revErr != nil {
			h.log.Error("auth.refresh.orphan_revoke.fail", "err", revErr)
		}
		h.pol.Clear(w)
		if errors.Is(err, ErrUserNotFound) {
			h.auditRefreshDenied(ctx, ip, ua, "user_not_found")
			writeError(w, http.StatusUnauthorized, "unauthorized", "unknown user")
			return
		}
		h.log.Error("auth.refresh.user.fail", "err", err)
		h.auditRefreshError(ctx, ip, ua)
		writeError(w, http.StatusUnauthorized, "unauthorized", "could not refresh session")
		return
	}

	if _, err := h.pol.Set(w, iss); err != nil {
		h.log.Error("auth.refresh.cookie.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditRefreshSuccess(ctx, iss.TokenID, ip, ua)
	writeJSON(w, http.StatusOK, authResponse{Token: iss.AccessToken, User: toUserResponse(u)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	// Logout is always successful from the caller's point of view, even
	// when the server-side record is already gone.
	if tok, ok := h.pol.RefreshToken(r); ok {
		if err := h.sessions.Revoke(ctx, now, tok); err != nil {
			h.log.Error("auth.logout.revoke.fail", "err", err)
		}
	}

	h.auditLogout(ctx, nil, ip, ua)
	h.pol.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	if err := h.sessions.RevokeAllForUser(ctx, now, claims.UserID); err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLogoutAll(ctx, claims.UserID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	h.pol.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	u, err := h.users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "user not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

// ---- shared flow ----

// issueAndRespond issues a session for u, attaches the cookie triple and
// writes the standard auth response. audit runs only on success.
func (h *Handler) issueAndRespond(w http.ResponseWriter, r *http.Request, now time.Time, u User, persistent bool, audit func(session.Issued)) {
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	iss, err := h.sessions.Issue(r.Context(), now, u.ID, persistent, session.Provenance{IP: ip, UserAgent: ua})
	if err != nil {
		h.log.Error("auth.issue.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	if _, err := h.pol.Set(w, iss); err != nil {
		h.log.Error("auth.cookie.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	if audit != nil {
		audit(iss)
	}
	writeJSON(w, http.StatusOK, authResponse{Token: iss.AccessToken, User: toUserResponse(u)})
}

// requireAuth validates the access credential from the Authorization header,
// falling back to the access cookie for browser clients.
func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.AccessClaims, bool) {
	tok := bearerToken(r)
	if tok == "" {
		if v, ok := h.pol.AccessToken(r); ok {
			tok = v
		}
	}
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing access token")
		return session.AccessClaims{}, false
	}
	claims, err := h.sessions.ValidateAccessToken(r.Context(), tok, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return session.AccessClaims{}, false
	}
	return claims, true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func loginIdentifier(c Credentials) string {
	if c.Username != "" {
		return c.Username
	}
	return c.Email
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
