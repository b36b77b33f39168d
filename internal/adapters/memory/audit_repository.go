package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
)

type loginAttemptRepository struct {
	store *store
}

func (r *loginAttemptRepository) Insert(_ context.Context, attempt domain.LoginAttempt) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attemptSeq++
	attempt.ID = s.attemptSeq
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (r *loginAttemptRepository) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]domain.LoginAttempt, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.LoginAttempt
	for i := len(s.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		a := s.attempts[i]
		if a.UserID != nil && *a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}
