package application

import (
	"context"

	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

// AdminUnlockAccount clears a lockout ahead of the window. Restricted to
// the admin surface by the HTTP role guard.
func (s *Service) AdminUnlockAccount(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return err
	}
	return s.users.Unlock(ctx, user.UserID, s.nowFn())
}

// Me returns the caller's profile.
func (s *Service) Me(ctx context.Context, claims ports.TokenClaims) (UserProfile, error) {
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return UserProfile{}, domain.ErrUnauthorized
	}
	return toUserProfile(user), nil
}

// UpdateProfile applies partial profile changes. Email, username and role are
// immutable through this surface.
func (s *Service) UpdateProfile(ctx context.Context, claims ports.TokenClaims, req UpdateProfileRequest) (UserProfile, error) {
	if req.FirstName == nil && req.LastName == nil && req.Phone == nil {
		return UserProfile{}, domain.ErrInvalidInput
	}
	user, err := s.users.UpdateProfile(ctx, claims.UserID, ports.UpdateProfileParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}, s.nowFn())
	if err != nil {
		return UserProfile{}, err
	}
	return toUserProfile(user), nil
}
