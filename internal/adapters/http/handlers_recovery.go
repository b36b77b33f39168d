package http

import (
	"net/http"

	"github.com/opswork/platform/services/auth-service/internal/application"
)

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "verify_email", err)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		writeMappedError(r.Context(), w, "verify_email", err)
		return
	}
	writeMessage(w, http.StatusOK, "Email verified successfully")
}

func (h *Handler) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "resend_verification", err)
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		writeMappedError(r.Context(), w, "resend_verification", err)
		return
	}
	writeMessage(w, http.StatusOK, "If the address needs verification, a new link has been sent")
}

func (h *Handler) passwordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "password_reset_request", err)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeMappedError(r.Context(), w, "password_reset_request", err)
		return
	}
	writeMessage(w, http.StatusOK, "If the address is registered, a reset link has been sent")
}

func (h *Handler) passwordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req application.PasswordResetRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "password_reset_confirm", err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "password_reset_confirm", err)
		return
	}
	writeMessage(w, http.StatusOK, "Password has been reset")
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "change_password")
		return
	}
	var req application.ChangePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "change_password", err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), claims, req); err != nil {
		writeMappedError(r.Context(), w, "change_password", err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed successfully")
}
