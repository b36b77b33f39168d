package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

// VerifyEmail consumes an email-verification token and flips the flag.
// Verifying an already-verified address through a fresh token is a no-op
// success.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}
	now := s.nowFn()
	userID, err := s.tokens.Consume(ctx, hashToken(token), domain.TokenEmailVerification, now, "")
	if err != nil {
		return err
	}
	return s.credentials.SetEmailVerified(ctx, userID, true, now)
}

// ResendVerification issues a fresh verification token. Silent when the
// address is unknown or already verified.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return nil
	}
	if user.EmailVerified || !user.IsActive {
		return nil
	}

	rawToken, err := s.issueVerificationToken(ctx, user.UserID, domain.TokenEmailVerification, s.cfg.EmailVerificationTTL)
	if err != nil {
		return err
	}
	s.enqueueEmail(ctx, "auth.email.verification_requested", user.UserID, map[string]any{
		"email": user.Email,
		"token": rawToken,
	})
	return nil
}

// RequestPasswordReset queues a reset link. The response never reveals
// whether the address has an account.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return nil
	}
	if !user.IsActive {
		return nil
	}

	rawToken, err := s.issueVerificationToken(ctx, user.UserID, domain.TokenPasswordReset, s.cfg.PasswordResetTTL)
	if err != nil {
		return err
	}
	s.enqueueEmail(ctx, "auth.email.password_reset_requested", user.UserID, map[string]any{
		"email": user.Email,
		"token": rawToken,
	})
	return nil
}

// ResetPassword consumes a reset token, replaces the credential, clears any
// lockout and revokes every session. A reset proves mailbox control, so it
// also ends whatever sessions an attacker might hold.
func (s *Service) ResetPassword(ctx context.Context, req PasswordResetRequest) error {
	if strings.TrimSpace(req.Token) == "" {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	now := s.nowFn()
	userID, err := s.tokens.Consume(ctx, hashToken(req.Token), domain.TokenPasswordReset, now, "")
	if err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.credentials.UpdatePassword(ctx, userID, passwordHash, now); err != nil {
		return err
	}
	if err := s.users.Unlock(ctx, userID, now); err != nil {
		return err
	}
	if err := s.revokeSessions(ctx, userID, nil); err != nil {
		return err
	}
	s.enqueueEmail(ctx, "auth.password.changed", userID, map[string]any{
		"via": "reset",
	})
	return nil
}

// ChangePassword replaces the credential for an authenticated user after
// re-verifying the current password. Wrong guesses increment the failed-login
// counter and a locked account is rejected outright, so an access-token holder
// cannot guess the password here without consequence. Every other session is
// revoked; the caller's own session survives.
func (s *Service) ChangePassword(ctx context.Context, claims ports.TokenClaims, req ChangePasswordRequest) error {
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return domain.ErrUnauthorized
	}

	// Same rule as Login: the lock gate runs before the password check, and a
	// wrong current password counts toward the lockout threshold.
	now := s.nowFn()
	if user.IsLocked(now) {
		return domain.ErrAccountLocked
	}
	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		attempts, lockedUntil, recErr := s.users.RecordLoginFailure(ctx, user.UserID, now, s.cfg.FailedLoginThreshold, s.cfg.LockoutWindow)
		if recErr == nil && lockedUntil != nil && lockedUntil.After(now) {
			s.enqueueEmail(ctx, "auth.account.locked", user.UserID, map[string]any{
				"email":           user.Email,
				"failed_attempts": attempts,
				"locked_until":    lockedUntil,
			})
		}
		return domain.ErrInvalidCredentials
	}

	passwordHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.credentials.UpdatePassword(ctx, user.UserID, passwordHash, now); err != nil {
		return err
	}
	current := claims.SessionID
	if err := s.revokeSessions(ctx, user.UserID, &current); err != nil {
		return err
	}
	s.enqueueEmail(ctx, "auth.password.changed", user.UserID, map[string]any{
		"via": "change",
	})
	return nil
}
