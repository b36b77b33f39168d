package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, params ports.CreateUserParams) (domain.User, error) {
	rec := userModel{
		Email:        params.Email,
		Username:     params.Username,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Phone:        params.Phone,
		PasswordHash: params.PasswordHash,
		Role:         string(params.Role),
		IsActive:     true,
		CreatedAt:    params.RegisteredAt,
		UpdatedAt:    params.RegisteredAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			// Unique violation on either email or username; disambiguate so
			// the boundary can name the conflicting field.
			var count int64
			if probeErr := r.db.WithContext(ctx).Model(&userModel{}).Where("email = ?", params.Email).Count(&count).Error; probeErr == nil && count > 0 {
				return domain.User{}, domain.ErrDuplicateEmail
			}
			return domain.User{}, domain.ErrDuplicateUsername
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, params ports.UpdateProfileParams, updatedAt time.Time) (domain.User, error) {
	updates := map[string]any{"updated_at": updatedAt}
	if params.FirstName != nil {
		updates["first_name"] = *params.FirstName
	}
	if params.LastName != nil {
		updates["last_name"] = *params.LastName
	}
	if params.Phone != nil {
		updates["phone"] = *params.Phone
	}

	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return domain.User{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.User{}, domain.ErrNotFound
	}
	return r.GetByID(ctx, userID)
}

// RecordLoginFailure serializes concurrent failures against the same user
// behind a row lock so the threshold comparison always sees the freshly
// incremented counter.
func (r *userRepository) RecordLoginFailure(ctx context.Context, userID uuid.UUID, now time.Time, threshold int, lockWindow time.Duration) (int, *time.Time, error) {
	var (
		attempts    int
		lockedUntil *time.Time
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec userModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		attempts = rec.FailedLoginAttempts + 1
		updates := map[string]any{
			"failed_login_attempts": attempts,
			"updated_at":            now,
		}
		if attempts >= threshold {
			until := now.Add(lockWindow)
			lockedUntil = &until
			updates["account_locked_until"] = until
		}
		return tx.Model(&userModel{}).
			Where("user_id = ?", userID).
			Updates(updates).Error
	})
	if err != nil {
		return 0, nil, err
	}
	return attempts, lockedUntil, nil
}

func (r *userRepository) RecordLoginSuccess(ctx context.Context, userID uuid.UUID, now time.Time, ip string) error {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"last_login_at":         now,
			"last_login_ip":         nullableString(ip),
			"updated_at":            now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepository) Unlock(ctx context.Context, userID uuid.UUID, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"account_locked_until":  nil,
			"updated_at":            now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
