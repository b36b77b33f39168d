package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
)

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "list_sessions")
		return
	}
	items, err := h.service.ListSessions(r.Context(), claims)
	if err != nil {
		writeMappedError(r.Context(), w, "list_sessions", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"sessions": items})
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "revoke_session")
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "revoke_session", err)
		return
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeValidationError(r.Context(), w, "revoke_session", errors.New("invalid session_id"))
		return
	}

	if err := h.service.RevokeSession(r.Context(), claims, sessionID); err != nil {
		writeMappedError(r.Context(), w, "revoke_session", err)
		return
	}
	writeMessage(w, http.StatusOK, "Session revoked successfully")
}

func (h *Handler) loginHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "login_history")
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	items, err := h.service.LoginHistory(r.Context(), claims, limit)
	if err != nil {
		writeMappedError(r.Context(), w, "login_history", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"attempts": items})
}
