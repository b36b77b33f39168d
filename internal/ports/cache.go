package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionRevocationStore keeps revocation markers with access-token-aligned
// TTL. Access tokens are stateless, so without these markers a revoked
// session's outstanding access tokens would stay valid until they expire.
type SessionRevocationStore interface {
	MarkRevoked(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) error
	IsRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error)
}
