package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

// Login authenticates a credential pair. The order is fixed: lock check
// before password comparison, so a locked account fails the same way whether
// or not the password is right. Exactly one audit row is written per call.
func (s *Service) Login(ctx context.Context, req LoginRequest) (TokenPair, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return TokenPair{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.recordAttempt(ctx, nil, domain.LoginMethodPassword, req.IPAddress, req.UserAgent, false, "USER_NOT_FOUND")
		return TokenPair{}, domain.ErrInvalidCredentials
	}

	now := s.nowFn()
	if user.IsLocked(now) {
		s.recordAttempt(ctx, &user.UserID, domain.LoginMethodPassword, req.IPAddress, req.UserAgent, false, "ACCOUNT_LOCKED")
		return TokenPair{}, domain.ErrAccountLocked
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		attempts, lockedUntil, recErr := s.users.RecordLoginFailure(ctx, user.UserID, now, s.cfg.FailedLoginThreshold, s.cfg.LockoutWindow)
		if recErr != nil {
			s.recordAttempt(ctx, &user.UserID, domain.LoginMethodPassword, req.IPAddress, req.UserAgent, false, "INVALID_PASSWORD")
			return TokenPair{}, domain.ErrInvalidCredentials
		}
		reason := "INVALID_PASSWORD"
		if lockedUntil != nil && lockedUntil.After(now) {
			reason = "ACCOUNT_LOCKED"
			s.enqueueEmail(ctx, "auth.account.locked", user.UserID, map[string]any{
				"email":           user.Email,
				"failed_attempts": attempts,
				"locked_until":    lockedUntil,
			})
		}
		s.recordAttempt(ctx, &user.UserID, domain.LoginMethodPassword, req.IPAddress, req.UserAgent, false, reason)
		return TokenPair{}, domain.ErrInvalidCredentials
	}

	if !user.IsActive {
		s.recordAttempt(ctx, &user.UserID, domain.LoginMethodPassword, req.IPAddress, req.UserAgent, false, "ACCOUNT_INACTIVE")
		return TokenPair{}, domain.ErrAccountInactive
	}

	if err := s.users.RecordLoginSuccess(ctx, user.UserID, now, req.IPAddress); err != nil {
		return TokenPair{}, fmt.Errorf("record login success: %w", err)
	}
	s.recordAttempt(ctx, &user.UserID, domain.LoginMethodPassword, req.IPAddress, req.UserAgent, true, "")

	return s.issueTokenPair(ctx, user, req.DeviceInfo, req.IPAddress, req.UserAgent, now)
}

// Refresh rotates a refresh token in place. The presented token must decode
// as kind refresh and its hash must still be the one the session stores;
// after rotation the old token can never validate again.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (TokenPair, error) {
	claims, err := s.codec.Decode(rawRefreshToken, ports.TokenKindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	if revoked, _ := s.revocations.IsRevoked(ctx, claims.SessionID); revoked {
		return TokenPair{}, domain.ErrSessionRevoked
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, domain.ErrUnauthorized
	}
	if !user.IsActive {
		return TokenPair{}, domain.ErrAccountInactive
	}

	now := s.nowFn()
	newRefreshToken, err := s.codec.Encode(ports.TokenClaims{
		UserID:    user.UserID,
		SessionID: claims.SessionID,
		Role:      user.Role,
		Kind:      ports.TokenKindRefresh,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("encode refresh token: %w", err)
	}

	session, err := s.sessions.Rotate(ctx, hashToken(rawRefreshToken), hashToken(newRefreshToken), now)
	if err != nil {
		return TokenPair{}, err
	}

	accessToken, err := s.codec.Encode(ports.TokenClaims{
		UserID:    user.UserID,
		SessionID: session.SessionID,
		Role:      user.Role,
		Kind:      ports.TokenKindAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("encode access token: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
		SessionID:    session.SessionID,
	}, nil
}

// RequestMagicLink queues a passwordless login link. The response is
// identical whether or not the address has an account.
func (s *Service) RequestMagicLink(ctx context.Context, req MagicLinkRequest) error {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// Do not leak whether the address is registered.
		return nil
	}
	if user.IsLocked(s.nowFn()) {
		return domain.ErrAccountLocked
	}
	if !user.IsActive {
		return nil
	}

	rawToken, err := s.issueVerificationToken(ctx, user.UserID, domain.TokenMagicLink, s.cfg.MagicLinkTTL)
	if err != nil {
		return err
	}
	s.enqueueEmail(ctx, "auth.email.magic_link_requested", user.UserID, map[string]any{
		"email": user.Email,
		"token": rawToken,
	})
	return nil
}

// LoginWithMagicLink consumes a magic-link token and opens a session. Token
// failures are indistinguishable from each other by design.
func (s *Service) LoginWithMagicLink(ctx context.Context, req MagicLinkLoginRequest) (TokenPair, error) {
	if strings.TrimSpace(req.Token) == "" {
		return TokenPair{}, fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}

	now := s.nowFn()
	userID, err := s.tokens.Consume(ctx, hashToken(req.Token), domain.TokenMagicLink, now, req.IPAddress)
	if err != nil {
		s.recordAttempt(ctx, nil, domain.LoginMethodMagicLink, req.IPAddress, req.UserAgent, false, "INVALID_TOKEN")
		return TokenPair{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return TokenPair{}, domain.ErrUnauthorized
	}
	if user.IsLocked(now) {
		s.recordAttempt(ctx, &user.UserID, domain.LoginMethodMagicLink, req.IPAddress, req.UserAgent, false, "ACCOUNT_LOCKED")
		return TokenPair{}, domain.ErrAccountLocked
	}
	if !user.IsActive {
		s.recordAttempt(ctx, &user.UserID, domain.LoginMethodMagicLink, req.IPAddress, req.UserAgent, false, "ACCOUNT_INACTIVE")
		return TokenPair{}, domain.ErrAccountInactive
	}

	// A magic-link login proves control of the mailbox.
	if !user.EmailVerified {
		if err := s.credentials.SetEmailVerified(ctx, user.UserID, true, now); err != nil {
			return TokenPair{}, err
		}
		user.EmailVerified = true
	}

	if err := s.users.RecordLoginSuccess(ctx, user.UserID, now, req.IPAddress); err != nil {
		return TokenPair{}, fmt.Errorf("record login success: %w", err)
	}
	s.recordAttempt(ctx, &user.UserID, domain.LoginMethodMagicLink, req.IPAddress, req.UserAgent, true, "")

	return s.issueTokenPair(ctx, user, req.DeviceInfo, req.IPAddress, req.UserAgent, now)
}
