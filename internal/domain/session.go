package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session models a per-device refresh-token session.
// The refresh token itself is stored only as a hash; the session row is the
// source of truth for revocation and rotation.
type Session struct {
	SessionID  uuid.UUID
	UserID     uuid.UUID
	DeviceInfo string
	IPAddress  string
	UserAgent  string
	IsActive   bool
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

// Usable requires both conditions independently: a revoked-but-unexpired
// session and an expired-but-still-active session are both invalid.
func (s Session) Usable(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

// VerificationTokenType tags the single-use token flows.
type VerificationTokenType string

const (
	TokenEmailVerification VerificationTokenType = "EMAIL_VERIFICATION"
	TokenPasswordReset     VerificationTokenType = "PASSWORD_RESET"
	TokenMagicLink         VerificationTokenType = "MAGIC_LINK"
)

// VerificationToken is a single-use, typed, expiring token. Only the hash of
// the emailed token is persisted.
type VerificationToken struct {
	TokenID   uuid.UUID
	UserID    uuid.UUID
	Type      VerificationTokenType
	IsUsed    bool
	UsedAt    *time.Time
	IPAddress string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Valid is the token-validity predicate: unused and unexpired.
func (t VerificationToken) Valid(now time.Time) bool {
	return !t.IsUsed && t.ExpiresAt.After(now)
}

// LoginAttempt records authentication outcomes for audit and lockout controls.
// Rows are append-only and never mutated after insert.
type LoginAttempt struct {
	ID            int64
	UserID        *uuid.UUID
	AttemptAt     time.Time
	IPAddress     string
	UserAgent     string
	Method        string
	Success       bool
	FailureReason string
}

// Login methods recorded on audit rows.
const (
	LoginMethodPassword  = "password"
	LoginMethodMagicLink = "magic_link"
)
