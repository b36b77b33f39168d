package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
)

// CreateUserParams captures registration inputs after boundary validation.
type CreateUserParams struct {
	Email        string
	Username     string
	FirstName    string
	LastName     string
	Phone        string
	PasswordHash string
	Role         domain.Role
	RegisteredAt time.Time
}

// UpdateProfileParams carries the mutable profile fields. Nil means "leave
// unchanged" so PATCH semantics survive the port boundary.
type UpdateProfileParams struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

// UserRepository defines persistence operations for user identities.
//
// RecordLoginFailure and RecordLoginSuccess exist as storage operations
// (rather than read-then-write in the orchestrator) because the lockout
// counter must be atomic under concurrent failed logins against one user.
type UserRepository interface {
	Create(ctx context.Context, params CreateUserParams) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams, updatedAt time.Time) (domain.User, error)

	// RecordLoginFailure atomically increments failed_login_attempts and,
	// when the count reaches threshold, stamps account_locked_until =
	// now + lockWindow. The counter is not reset by locking. Returns the
	// post-increment state.
	RecordLoginFailure(ctx context.Context, userID uuid.UUID, now time.Time, threshold int, lockWindow time.Duration) (attempts int, lockedUntil *time.Time, err error)
	// RecordLoginSuccess resets the failure counter and stamps
	// last_login/last_login_ip. account_locked_until is left as-is.
	RecordLoginSuccess(ctx context.Context, userID uuid.UUID, now time.Time, ip string) error
	// Unlock clears both the lock timestamp and the failure counter. It is
	// triggered by a completed password reset.
	Unlock(ctx context.Context, userID uuid.UUID, now time.Time) error
}

// CredentialRepository manages mutable credential state.
type CredentialRepository interface {
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string, updatedAt time.Time) error
	SetEmailVerified(ctx context.Context, userID uuid.UUID, verified bool, updatedAt time.Time) error
}

// CreateVerificationTokenParams captures single-use token issuance inputs.
type CreateVerificationTokenParams struct {
	UserID    uuid.UUID
	Type      domain.VerificationTokenType
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// VerificationTokenRepository owns the single-use token lifecycle.
// Consume is atomic: of any number of concurrent consumers exactly one
// succeeds, and a consumed token can never be consumed again.
type VerificationTokenRepository interface {
	Create(ctx context.Context, params CreateVerificationTokenParams) error
	// Consume validates and irreversibly marks the token used, stamping
	// used_at and the consumer's IP. Not-found, expired, already-used, and
	// wrong-type all fail domain.ErrInvalidOrExpiredToken.
	Consume(ctx context.Context, tokenHash string, tokenType domain.VerificationTokenType, now time.Time, ip string) (uuid.UUID, error)
	// InvalidatePending marks every unused (user, type) token used so only
	// the most recently issued link of a given type is ever valid.
	InvalidatePending(ctx context.Context, userID uuid.UUID, tokenType domain.VerificationTokenType, now time.Time) error
}

// CreateSessionParams captures metadata required to create a session record.
// SessionID is assigned by the caller so the refresh token, which embeds the
// session ID, can be minted before the row exists.
type CreateSessionParams struct {
	SessionID        uuid.UUID
	UserID           uuid.UUID
	RefreshTokenHash string
	DeviceInfo       string
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// SessionRepository manages persistent refresh-token session lifecycle.
type SessionRepository interface {
	Create(ctx context.Context, params CreateSessionParams) (domain.Session, error)
	GetByID(ctx context.Context, sessionID uuid.UUID) (domain.Session, error)
	// Rotate atomically swaps the stored refresh-token hash in place and
	// stamps last_used_at, keeping the session row (and so per-device
	// identity) stable. Concurrent rotations of the same stale hash result
	// in exactly one success; losers see the session errors.
	Rotate(ctx context.Context, oldTokenHash, newTokenHash string, now time.Time) (domain.Session, error)
	// Revoke sets is_active=false; revoking an inactive session is a no-op.
	Revoke(ctx context.Context, sessionID uuid.UUID, now time.Time) error
	// RevokeAllByUser revokes every active session of a user, optionally
	// sparing one session, and returns the revoked session IDs so callers
	// can invalidate outstanding access tokens.
	RevokeAllByUser(ctx context.Context, userID uuid.UUID, except *uuid.UUID, now time.Time) ([]uuid.UUID, error)
	// ListActiveByUser returns usable sessions (active and unexpired),
	// most recently used first.
	ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.Session, error)
}

// LoginAttemptRepository stores login outcomes used by audit endpoints.
type LoginAttemptRepository interface {
	Insert(ctx context.Context, attempt domain.LoginAttempt) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LoginAttempt, error)
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for mail events.
// Flows commit the event durably and report success; delivery happens later,
// so a delivery failure never rolls back already-committed auth state.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}

// IdempotencyRecord tracks a previously accepted mutating request.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       string
	ResponseBody []byte
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdempotencyRepository enforces idempotent registration semantics.
// Release drops a still-pending reservation; completed records are kept.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseBody []byte, at time.Time) error
	Release(ctx context.Context, key string) error
}
