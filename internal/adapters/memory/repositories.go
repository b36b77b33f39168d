// Package memory provides a process-local implementation of every storage
// port. It backs the "memory" storage driver for local development and is
// reused by unit tests so flows exercise the same semantics the Postgres
// adapters implement, minus durability.
package memory

import (
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

// Repositories bundles the in-memory port implementations over one shared
// store, mirroring the Postgres aggregate so composition swaps freely.
type Repositories struct {
	Users         ports.UserRepository
	Credentials   ports.CredentialRepository
	Tokens        ports.VerificationTokenRepository
	Sessions      ports.SessionRepository
	LoginAttempts ports.LoginAttemptRepository
	Outbox        ports.OutboxRepository
	Idempotency   ports.IdempotencyRepository
}

func NewRepositories() Repositories {
	s := newStore()
	return Repositories{
		Users:         &userRepository{store: s},
		Credentials:   &credentialRepository{store: s},
		Tokens:        &verificationTokenRepository{store: s},
		Sessions:      &sessionRepository{store: s},
		LoginAttempts: &loginAttemptRepository{store: s},
		Outbox:        &outboxRepository{store: s},
		Idempotency:   &idempotencyRepository{store: s},
	}
}
