package http

import (
	"net/http"

	"github.com/opswork/platform/services/auth-service/internal/application"
)

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "me")
		return
	}
	profile, err := h.service.Me(r.Context(), claims)
	if err != nil {
		writeMappedError(r.Context(), w, "me", err)
		return
	}
	writeSuccess(w, http.StatusOK, profile)
}

func (h *Handler) adminUnlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "admin_unlock", err)
		return
	}

	if err := h.service.AdminUnlockAccount(r.Context(), req.Email); err != nil {
		writeMappedError(r.Context(), w, "admin_unlock", err)
		return
	}
	writeMessage(w, http.StatusOK, "Account unlocked")
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "update_profile")
		return
	}
	var req application.UpdateProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "update_profile", err)
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), claims, req)
	if err != nil {
		writeMappedError(r.Context(), w, "update_profile", err)
		return
	}
	writeSuccess(w, http.StatusOK, profile)
}
