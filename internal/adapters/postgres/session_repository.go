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

type sessionRepository struct {
	db *gorm.DB
}

func (r *sessionRepository) Create(ctx context.Context, params ports.CreateSessionParams) (domain.Session, error) {
	rec := sessionModel{
		SessionID:        params.SessionID,
		UserID:           params.UserID,
		RefreshTokenHash: params.RefreshTokenHash,
		DeviceInfo:       params.DeviceInfo,
		IPAddress:        nullableString(params.IPAddress),
		UserAgent:        params.UserAgent,
		IsActive:         true,
		CreatedAt:        params.CreatedAt,
		LastUsedAt:       params.CreatedAt,
		ExpiresAt:        params.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Session{}, err
	}
	return toDomainSession(rec), nil
}

func (r *sessionRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (domain.Session, error) {
	var rec sessionModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, err
	}
	return toDomainSession(rec), nil
}

// Rotate overwrites the same row's token hash rather than inserting a new
// row: per-device session identity survives refreshes and the previous
// refresh-token string can never validate again. The row lock guarantees
// exactly one winner among concurrent rotations of the same stale hash.
func (r *sessionRepository) Rotate(ctx context.Context, oldTokenHash, newTokenHash string, now time.Time) (domain.Session, error) {
	var rec sessionModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("refresh_token_hash = ?", oldTokenHash).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrSessionNotFound
			}
			return err
		}
		if !rec.IsActive {
			return domain.ErrSessionRevoked
		}
		if !rec.ExpiresAt.After(now) {
			return domain.ErrSessionExpired
		}
		rec.RefreshTokenHash = newTokenHash
		rec.LastUsedAt = now
		return tx.Model(&sessionModel{}).
			Where("session_id = ?", rec.SessionID).
			Updates(map[string]any{
				"refresh_token_hash": newTokenHash,
				"last_used_at":       now,
			}).Error
	})
	if err != nil {
		return domain.Session{}, err
	}
	return toDomainSession(rec), nil
}

func (r *sessionRepository) Revoke(ctx context.Context, sessionID uuid.UUID, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_id = ?", sessionID).
		Where("is_active = TRUE").
		Updates(map[string]any{
			"is_active":    false,
			"last_used_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Already revoked is a no-op; only a missing row is an error.
		var exists int64
		if err := r.db.WithContext(ctx).Model(&sessionModel{}).Where("session_id = ?", sessionID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrSessionNotFound
		}
	}
	return nil
}

func (r *sessionRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID, except *uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	var revoked []uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&sessionModel{}).
			Where("user_id = ?", userID).
			Where("is_active = TRUE")
		if except != nil {
			query = query.Where("session_id <> ?", *except)
		}
		if err := query.Pluck("session_id", &revoked).Error; err != nil {
			return err
		}
		if len(revoked) == 0 {
			return nil
		}
		return tx.Model(&sessionModel{}).
			Where("session_id IN ?", revoked).
			Updates(map[string]any{
				"is_active":    false,
				"last_used_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

func (r *sessionRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.Session, error) {
	var rows []sessionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("is_active = TRUE").
		Where("expires_at > ?", now).
		Order("last_used_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Session, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainSession(row))
	}
	return result, nil
}
