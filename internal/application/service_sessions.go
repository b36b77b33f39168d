package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

// Logout revokes the caller's current session. Idempotent: logging out an
// already-revoked session still succeeds.
func (s *Service) Logout(ctx context.Context, claims ports.TokenClaims) error {
	now := s.nowFn()
	if err := s.sessions.Revoke(ctx, claims.SessionID, now); err != nil {
		return err
	}
	_ = s.revocations.MarkRevoked(ctx, claims.SessionID, now.Add(s.cfg.AccessTokenTTL))
	return nil
}

// LogoutAll revokes every session of the caller, the current one included.
func (s *Service) LogoutAll(ctx context.Context, claims ports.TokenClaims) error {
	return s.revokeSessions(ctx, claims.UserID, nil)
}

// RevokeSession revokes one named session. Callers may only touch their own
// sessions; a foreign session ID reads as not found rather than forbidden so
// session IDs cannot be probed.
func (s *Service) RevokeSession(ctx context.Context, claims ports.TokenClaims, sessionID uuid.UUID) error {
	target, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if target.UserID != claims.UserID {
		return domain.ErrSessionNotFound
	}

	now := s.nowFn()
	if err := s.sessions.Revoke(ctx, sessionID, now); err != nil {
		return err
	}
	_ = s.revocations.MarkRevoked(ctx, sessionID, now.Add(s.cfg.AccessTokenTTL))
	return nil
}

// ListSessions returns the caller's usable sessions, most recent first, with
// the current one flagged.
func (s *Service) ListSessions(ctx context.Context, claims ports.TokenClaims) ([]SessionItem, error) {
	sessions, err := s.sessions.ListActiveByUser(ctx, claims.UserID, s.nowFn())
	if err != nil {
		return nil, err
	}
	result := make([]SessionItem, 0, len(sessions))
	for _, it := range sessions {
		result = append(result, toSessionItem(it, claims.SessionID))
	}
	return result, nil
}

// LoginHistory returns the caller's recent login attempts, newest first.
func (s *Service) LoginHistory(ctx context.Context, claims ports.TokenClaims, limit int) ([]LoginHistoryItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	attempts, err := s.loginAttempts.ListByUser(ctx, claims.UserID, limit)
	if err != nil {
		return nil, err
	}
	result := make([]LoginHistoryItem, 0, len(attempts))
	for _, attempt := range attempts {
		result = append(result, toLoginHistoryItem(attempt))
	}
	return result, nil
}
