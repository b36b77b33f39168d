package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

type userRepository struct {
	store *store
}

func (r *userRepository) Create(_ context.Context, params ports.CreateUserParams) (domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := normalizeKey(params.Email)
	if _, ok := s.usersByEmail[emailKey]; ok {
		return domain.User{}, domain.ErrDuplicateEmail
	}
	nameKey := normalizeKey(params.Username)
	if _, ok := s.usersByName[nameKey]; ok {
		return domain.User{}, domain.ErrDuplicateUsername
	}

	u := domain.User{
		UserID:       uuid.New(),
		Email:        params.Email,
		Username:     params.Username,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Phone:        params.Phone,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		IsActive:     true,
		CreatedAt:    params.RegisteredAt,
		UpdatedAt:    params.RegisteredAt,
	}
	s.users[u.UserID] = u
	s.usersByEmail[emailKey] = u.UserID
	s.usersByName[nameKey] = u.UserID
	return u, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByEmail[normalizeKey(email)]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return s.users[id], nil
}

func (r *userRepository) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *userRepository) UsernameExists(_ context.Context, username string) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.usersByName[normalizeKey(username)]
	return ok, nil
}

func (r *userRepository) UpdateProfile(_ context.Context, userID uuid.UUID, params ports.UpdateProfileParams, updatedAt time.Time) (domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	if params.FirstName != nil {
		u.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		u.LastName = *params.LastName
	}
	if params.Phone != nil {
		u.Phone = *params.Phone
	}
	u.UpdatedAt = updatedAt
	s.users[userID] = u
	return u, nil
}

func (r *userRepository) RecordLoginFailure(_ context.Context, userID uuid.UUID, now time.Time, threshold int, lockWindow time.Duration) (int, *time.Time, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, nil, domain.ErrNotFound
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= threshold {
		until := now.Add(lockWindow)
		u.AccountLockedUntil = &until
	}
	u.UpdatedAt = now
	s.users[userID] = u
	return u.FailedLoginAttempts, u.AccountLockedUntil, nil
}

func (r *userRepository) RecordLoginSuccess(_ context.Context, userID uuid.UUID, now time.Time, ip string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.LastLoginAt = &now
	if ip != "" {
		u.LastLoginIP = ip
	}
	u.UpdatedAt = now
	s.users[userID] = u
	return nil
}

func (r *userRepository) Unlock(_ context.Context, userID uuid.UUID, now time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.AccountLockedUntil = nil
	u.UpdatedAt = now
	s.users[userID] = u
	return nil
}

type credentialRepository struct {
	store *store
}

func (r *credentialRepository) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string, updatedAt time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = updatedAt
	s.users[userID] = u
	return nil
}

func (r *credentialRepository) SetEmailVerified(_ context.Context, userID uuid.UUID, verified bool, updatedAt time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.EmailVerified = verified
	u.UpdatedAt = updatedAt
	s.users[userID] = u
	return nil
}
