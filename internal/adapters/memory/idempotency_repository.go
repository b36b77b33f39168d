package memory

import (
	"context"
	"time"

	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

type idempotencyRepository struct {
	store *store
}

func (r *idempotencyRepository) Get(_ context.Context, key string) (*ports.IdempotencyRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.idempotency[key]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

func (r *idempotencyRepository) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.idempotency[key]; ok {
		return domain.ErrIdempotencyConflict
	}
	now := time.Now().UTC()
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      "pending",
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return nil
}

func (r *idempotencyRepository) Release(_ context.Context, key string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.idempotency[key]; ok && rec.Status == "pending" {
		delete(s.idempotency, key)
	}
	return nil
}

func (r *idempotencyRepository) Complete(_ context.Context, key string, responseBody []byte, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.idempotency[key]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = "completed"
	rec.ResponseBody = responseBody
	rec.UpdatedAt = at
	s.idempotency[key] = rec
	return nil
}
