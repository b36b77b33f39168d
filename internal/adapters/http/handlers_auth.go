package http

import (
	"net/http"
	"strings"

	"github.com/opswork/platform/services/auth-service/internal/application"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register", err)
		return
	}

	res, err := h.service.Register(r.Context(), req, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		writeMappedError(r.Context(), w, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	req.IPAddress = readIP(r)
	req.UserAgent = r.UserAgent()

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req application.RefreshRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "refresh", err)
		return
	}

	res, err := h.service.Refresh(r.Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		writeMappedError(r.Context(), w, "refresh", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) magicLinkRequest(w http.ResponseWriter, r *http.Request) {
	var req application.MagicLinkRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "magic_link_request", err)
		return
	}

	if err := h.service.RequestMagicLink(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "magic_link_request", err)
		return
	}
	writeMessage(w, http.StatusOK, "If the address is registered, a login link has been sent")
}

func (h *Handler) magicLinkVerify(w http.ResponseWriter, r *http.Request) {
	var req application.MagicLinkLoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "magic_link_verify", err)
		return
	}
	req.IPAddress = readIP(r)
	req.UserAgent = r.UserAgent()

	res, err := h.service.LoginWithMagicLink(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "magic_link_verify", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "logout")
		return
	}
	if err := h.service.Logout(r.Context(), claims); err != nil {
		writeMappedError(r.Context(), w, "logout", err)
		return
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "logout_all")
		return
	}
	if err := h.service.LogoutAll(r.Context(), claims); err != nil {
		writeMappedError(r.Context(), w, "logout_all", err)
		return
	}
	writeMessage(w, http.StatusOK, "All sessions revoked successfully")
}
