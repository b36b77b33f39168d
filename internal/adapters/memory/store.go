package memory

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

// store holds all tables behind a single mutex. Operations that Postgres
// makes atomic with row locks become atomic here by holding the lock for
// the whole read-modify-write.
type store struct {
	mu sync.Mutex

	users          map[uuid.UUID]domain.User
	usersByEmail   map[string]uuid.UUID
	usersByName    map[string]uuid.UUID
	tokens         map[string]tokenRow // keyed by token hash
	sessions       map[uuid.UUID]domain.Session
	sessionsByHash map[string]uuid.UUID
	attempts       []domain.LoginAttempt
	attemptSeq     int64
	outbox         map[uuid.UUID]ports.OutboxRecord
	outboxOrder    []uuid.UUID
	idempotency    map[string]ports.IdempotencyRecord
}

type tokenRow struct {
	token domain.VerificationToken
}

func newStore() *store {
	return &store{
		users:          make(map[uuid.UUID]domain.User),
		usersByEmail:   make(map[string]uuid.UUID),
		usersByName:    make(map[string]uuid.UUID),
		tokens:         make(map[string]tokenRow),
		sessions:       make(map[uuid.UUID]domain.Session),
		sessionsByHash: make(map[string]uuid.UUID),
		outbox:         make(map[uuid.UUID]ports.OutboxRecord),
		idempotency:    make(map[string]ports.IdempotencyRecord),
	}
}

func normalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
