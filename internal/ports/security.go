package ports

import (
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenKind discriminates the two signed-token families. The kind is
// embedded in the payload and checked on decode: an access token must never
// validate where a refresh token is expected, and vice versa.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenClaims is the adapter-neutral signed-token payload.
type TokenClaims struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Role      domain.Role
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec is the stateless signed-token primitive. One process-wide
// secret/algorithm pair, injected at composition time.
type TokenCodec interface {
	Encode(claims TokenClaims) (string, error)
	// Decode verifies signature and expiry and enforces the expected kind,
	// failing domain.ErrTokenInvalid, domain.ErrTokenExpired, or
	// domain.ErrTokenTypeMismatch.
	Decode(raw string, expected TokenKind) (TokenClaims, error)
}
