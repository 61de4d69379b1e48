package authapi

import (
	"context"
	"encoding/json"
	"net"
	"strings"
)

func (h *Handler) auditLoginFailed(ctx context.Context, userID *string, ip net.IP, ua string, identifier string, reason string) {
	h.insertAudit(ctx, "auth.login.failed", userID, nil, ip, ua, map[string]any{
		"identifier": identifier,
		"reason":     reason,
	})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID string, sessionID string, ip net.IP, ua string, identifier string) {
	h.insertAudit(ctx, "auth.login.success", &userID, &sessionID, ip, ua, map[string]any{
		"identifier": identifier,
	})
}

func (h *Handler) auditRegister(ctx context.Context, userID string, sessionID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.register", &userID, &sessionID, ip, ua, nil)
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, sessionID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.success", nil, &sessionID, ip, ua, nil)
}

func (h *Handler) auditRefreshDenied(ctx context.Context, ip net.IP, ua string, reason string) {
	h.insertAudit(ctx, "auth.refresh.denied", nil, nil, ip, ua, map[string]any{
		"reason": reason,
	})
}

func (h *Handler) auditRefreshReuse(ctx context.Context, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.reuse_detected", nil, nil, ip, ua, nil)
}

// auditRefreshError records an internal failure during rotation. Kept
// distinct from denials so a storage outage never reads as an attack in the
// audit trail, even though the client sees the same 401.
func (h *Handler) auditRefreshError(ctx context.Context, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.error", nil, nil, ip, ua, nil)
}

func (h *Handler) auditLogout(ctx context.Context, sessionID *string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.logout", nil, sessionID, ip, ua, nil)
}

func (h *Handler) auditLogoutAll(ctx context.Context, userID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.logout_all", &userID, nil, ip, ua, nil)
}

func (h *Handler) auditBotLoginSuccess(ctx context.Context, botUserID string, sessionID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.bot.login.success", &botUserID, &sessionID, ip, ua, nil)
}

func (h *Handler) auditBotLoginFailed(ctx context.Context, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.bot.login.failed", nil, nil, ip, ua, nil)
}

func (h *Handler) insertAudit(ctx context.Context, action string, userID *string, sessionID *string, ip net.IP, ua string, meta map[string]any) {
	if h == nil || h.pool == nil {
		return
	}

	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	var ipVal any
	if ip != nil {
		ipVal = ip.String()
	}

	var metaVal *string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := h.pool.Exec(ctx, `
		INSERT INTO mew.audit_log (
			user_id, session_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, now(), $4, $5, $6::jsonb)
	`, userID, sessionID, action, ipVal, trimOrNil(ua), metaVal)
	if err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
