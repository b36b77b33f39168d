package postgres

import (
	"github.com/opswork/platform/services/auth-service/internal/ports"
	"gorm.io/gorm"
)

// Repositories bundles every Postgres-backed port implementation behind a
// single constructor so composition wires one value instead of nine.
type Repositories struct {
	Users         ports.UserRepository
	Credentials   ports.CredentialRepository
	Tokens        ports.VerificationTokenRepository
	Sessions      ports.SessionRepository
	LoginAttempts ports.LoginAttemptRepository
	Outbox        ports.OutboxRepository
	Idempotency   ports.IdempotencyRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:         &userRepository{db: db},
		Credentials:   &credentialRepository{db: db},
		Tokens:        &verificationTokenRepository{db: db},
		Sessions:      &sessionRepository{db: db},
		LoginAttempts: &loginAttemptRepository{db: db},
		Outbox:        &outboxRepository{db: db},
		Idempotency:   &idempotencyRepository{db: db},
	}
}
