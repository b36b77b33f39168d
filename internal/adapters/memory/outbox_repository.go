package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

type outboxRepository struct {
	store *store
}

func (r *outboxRepository) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbox[event.EventID] = ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      event.Payload,
		CreatedAt:    event.OccurredAt,
	}
	s.outboxOrder = append(s.outboxOrder, event.EventID)
	return nil
}

func (r *outboxRepository) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var claimed []ports.OutboxRecord
	for _, id := range s.outboxOrder {
		if len(claimed) >= limit {
			break
		}
		rec := s.outbox[id]
		if rec.PublishedAt != nil || rec.DeadLetteredAt != nil {
			continue
		}
		if rec.ClaimUntil != nil && rec.ClaimUntil.After(now) {
			continue
		}
		token := claimToken
		until := claimUntil
		rec.ClaimToken = &token
		rec.ClaimUntil = &until
		s.outbox[id] = rec
		claimed = append(claimed, rec)
	}
	return claimed, nil
}

func (r *outboxRepository) MarkPublished(_ context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.outbox[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return domain.ErrNotFound
	}
	rec.PublishedAt = &at
	rec.ClaimToken = nil
	rec.ClaimUntil = nil
	s.outbox[outboxID] = rec
	return nil
}

func (r *outboxRepository) MarkFailed(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.outbox[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return domain.ErrNotFound
	}
	rec.RetryCount++
	rec.LastError = &errMsg
	rec.LastErrorAt = &at
	rec.ClaimToken = nil
	rec.ClaimUntil = nil
	s.outbox[outboxID] = rec
	return nil
}

func (r *outboxRepository) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.outbox[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return domain.ErrNotFound
	}
	rec.RetryCount++
	rec.LastError = &errMsg
	rec.LastErrorAt = &at
	rec.DeadLetteredAt = &at
	rec.ClaimToken = nil
	rec.ClaimUntil = nil
	s.outbox[outboxID] = rec
	return nil
}
