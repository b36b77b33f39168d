package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opswork/platform/services/auth-service/internal/application"
	"github.com/opswork/platform/services/auth-service/internal/domain"
)

// Handler is the HTTP adapter entrypoint for auth use-cases.
// Keeping only the application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers the auth HTTP routes and middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
		r.Post("/refresh", handler.refresh)
		r.Post("/magic-link/request", handler.magicLinkRequest)
		r.Post("/magic-link/verify", handler.magicLinkVerify)
		r.Post("/verify-email", handler.verifyEmail)
		r.Post("/resend-verification", handler.resendVerification)
		r.Post("/password-reset/request", handler.passwordResetRequest)
		r.Post("/password-reset/confirm", handler.passwordResetConfirm)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/change-password", handler.changePassword)
			r.Post("/logout", handler.logout)
			r.Post("/logout-all", handler.logoutAll)
			r.Get("/me", handler.me)
			r.Patch("/profile", handler.updateProfile)
			r.Get("/sessions", handler.listSessions)
			r.Post("/sessions/revoke", handler.revokeSession)
			r.Get("/login-history", handler.loginHistory)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(domain.RoleAdmin))
				r.Post("/admin/unlock", handler.adminUnlock)
			})
		})
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}
