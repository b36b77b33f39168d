package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
	"gorm.io/gorm"
)

const (
	idempotencyStatusPending   = "pending"
	idempotencyStatusCompleted = "completed"
)

type idempotencyRepository struct {
	db *gorm.DB
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	var rec authIdempotencyModel
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	record := ports.IdempotencyRecord{
		Key:         rec.IdempotencyKey,
		RequestHash: rec.RequestHash,
		Status:      rec.Status,
		ExpiresAt:   rec.ExpiresAt,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.ResponseBody != nil {
		record.ResponseBody = []byte(*rec.ResponseBody)
	}
	return &record, nil
}

func (r *idempotencyRepository) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error {
	now := time.Now().UTC()
	rec := authIdempotencyModel{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Status:         idempotencyStatusPending,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

func (r *idempotencyRepository) Release(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Where("idempotency_key = ? AND status = ?", key, idempotencyStatusPending).
		Delete(&authIdempotencyModel{}).Error
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, responseBody []byte, at time.Time) error {
	body := string(responseBody)
	res := r.db.WithContext(ctx).
		Model(&authIdempotencyModel{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]any{
			"status":        idempotencyStatusCompleted,
			"response_body": &body,
			"updated_at":    at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
