package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

type sessionRepository struct {
	store *store
}

func (r *sessionRepository) Create(_ context.Context, params ports.CreateSessionParams) (domain.Session, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := domain.Session{
		SessionID:  params.SessionID,
		UserID:     params.UserID,
		DeviceInfo: params.DeviceInfo,
		IPAddress:  params.IPAddress,
		UserAgent:  params.UserAgent,
		IsActive:   true,
		CreatedAt:  params.CreatedAt,
		LastUsedAt: params.CreatedAt,
		ExpiresAt:  params.ExpiresAt,
	}
	s.sessions[sess.SessionID] = sess
	s.sessionsByHash[params.RefreshTokenHash] = sess.SessionID
	return sess, nil
}

func (r *sessionRepository) GetByID(_ context.Context, sessionID uuid.UUID) (domain.Session, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (r *sessionRepository) Rotate(_ context.Context, oldTokenHash, newTokenHash string, now time.Time) (domain.Session, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.sessionsByHash[oldTokenHash]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	sess := s.sessions[id]
	if !sess.IsActive {
		return domain.Session{}, domain.ErrSessionRevoked
	}
	if !sess.ExpiresAt.After(now) {
		return domain.Session{}, domain.ErrSessionExpired
	}
	delete(s.sessionsByHash, oldTokenHash)
	s.sessionsByHash[newTokenHash] = id
	sess.LastUsedAt = now
	s.sessions[id] = sess
	return sess, nil
}

func (r *sessionRepository) Revoke(_ context.Context, sessionID uuid.UUID, now time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if sess.IsActive {
		sess.IsActive = false
		sess.LastUsedAt = now
		s.sessions[sessionID] = sess
	}
	return nil
}

func (r *sessionRepository) RevokeAllByUser(_ context.Context, userID uuid.UUID, except *uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var revoked []uuid.UUID
	for id, sess := range s.sessions {
		if sess.UserID != userID || !sess.IsActive {
			continue
		}
		if except != nil && id == *except {
			continue
		}
		sess.IsActive = false
		sess.LastUsedAt = now
		s.sessions[id] = sess
		revoked = append(revoked, id)
	}
	return revoked, nil
}

func (r *sessionRepository) ListActiveByUser(_ context.Context, userID uuid.UUID, now time.Time) ([]domain.Session, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Usable(now) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUsedAt.After(out[j].LastUsedAt)
	})
	return out, nil
}
