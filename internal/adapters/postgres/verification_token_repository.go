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

type verificationTokenRepository struct {
	db *gorm.DB
}

func (r *verificationTokenRepository) Create(ctx context.Context, params ports.CreateVerificationTokenParams) error {
	rec := verificationTokenModel{
		UserID:    params.UserID,
		TokenType: string(params.Type),
		TokenHash: params.TokenHash,
		CreatedAt: params.CreatedAt,
		ExpiresAt: params.ExpiresAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

// Consume locks the candidate row so concurrent consumers serialize; only
// the first marks it used. All failure cases collapse into one error.
func (r *verificationTokenRepository) Consume(ctx context.Context, tokenHash string, tokenType domain.VerificationTokenType, now time.Time, ip string) (uuid.UUID, error) {
	var rec verificationTokenModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ?", tokenHash).
			Where("token_type = ?", string(tokenType)).
			Where("is_used = FALSE").
			Where("expires_at > ?", now).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrInvalidOrExpiredToken
			}
			return err
		}
		return tx.Model(&verificationTokenModel{}).
			Where("token_id = ?", rec.TokenID).
			Updates(map[string]any{
				"is_used":    true,
				"used_at":    now,
				"ip_address": nullableString(ip),
			}).Error
	})
	if err != nil {
		return uuid.Nil, err
	}
	return rec.UserID, nil
}

func (r *verificationTokenRepository) InvalidatePending(ctx context.Context, userID uuid.UUID, tokenType domain.VerificationTokenType, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&verificationTokenModel{}).
		Where("user_id = ?", userID).
		Where("token_type = ?", string(tokenType)).
		Where("is_used = FALSE").
		Updates(map[string]any{
			"is_used": true,
			"used_at": now,
		}).Error
}
