package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

type verificationTokenRepository struct {
	store *store
}

func (r *verificationTokenRepository) Create(_ context.Context, params ports.CreateVerificationTokenParams) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[params.TokenHash] = tokenRow{token: domain.VerificationToken{
		TokenID:   uuid.New(),
		UserID:    params.UserID,
		Type:      params.Type,
		CreatedAt: params.CreatedAt,
		ExpiresAt: params.ExpiresAt,
	}}
	return nil
}

func (r *verificationTokenRepository) Consume(_ context.Context, tokenHash string, tokenType domain.VerificationTokenType, now time.Time, ip string) (uuid.UUID, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.tokens[tokenHash]
	if !ok || row.token.Type != tokenType || !row.token.Valid(now) {
		return uuid.Nil, domain.ErrInvalidOrExpiredToken
	}
	row.token.IsUsed = true
	row.token.UsedAt = &now
	row.token.IPAddress = ip
	s.tokens[tokenHash] = row
	return row.token.UserID, nil
}

func (r *verificationTokenRepository) InvalidatePending(_ context.Context, userID uuid.UUID, tokenType domain.VerificationTokenType, now time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, row := range s.tokens {
		if row.token.UserID == userID && row.token.Type == tokenType && !row.token.IsUsed {
			row.token.IsUsed = true
			row.token.UsedAt = &now
			s.tokens[hash] = row
		}
	}
	return nil
}
