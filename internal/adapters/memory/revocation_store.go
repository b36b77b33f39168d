package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RevocationStore is the in-process counterpart of the Redis marker cache.
// Markers expire lazily on read.
type RevocationStore struct {
	mu      sync.Mutex
	revoked map[uuid.UUID]time.Time
}

func NewRevocationStore() *RevocationStore {
	return &RevocationStore{revoked: make(map[uuid.UUID]time.Time)}
}

func (s *RevocationStore) MarkRevoked(_ context.Context, sessionID uuid.UUID, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[sessionID] = expiresAt
	return nil
}

func (s *RevocationStore) IsRevoked(_ context.Context, sessionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.revoked[sessionID]
	if !ok {
		return false, nil
	}
	if !until.After(time.Now().UTC()) {
		delete(s.revoked, sessionID)
		return false, nil
	}
	return true, nil
}
