package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

// HS256Codec implements stateless HMAC token signing/parsing.
// The secret is held at adapter level so the application layer stays
// crypto-library agnostic.
type HS256Codec struct {
	secret []byte
}

// NewHS256Codec builds a codec from the configured signing secret.
func NewHS256Codec(secret string) (*HS256Codec, error) {
	if len(secret) < 32 {
		return nil, errors.New("token signing secret must be at least 32 bytes")
	}
	return &HS256Codec{secret: []byte(secret)}, nil
}

// NewEphemeralHS256Codec creates a random in-memory secret for local/dev use.
// Tokens do not survive process restarts with an ephemeral secret.
func NewEphemeralHS256Codec() (*HS256Codec, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	return &HS256Codec{secret: []byte(hex.EncodeToString(raw))}, nil
}

type signedClaims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func (c *HS256Codec) Encode(claims ports.TokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, signedClaims{
		SessionID: claims.SessionID.String(),
		Role:      string(claims.Role),
		TokenType: string(claims.Kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	return token.SignedString(c.secret)
}

func (c *HS256Codec) Decode(raw string, expected ports.TokenKind) (ports.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &signedClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ports.TokenClaims{}, domain.ErrTokenExpired
		}
		return ports.TokenClaims{}, domain.ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*signedClaims)
	if !ok || !parsed.Valid {
		return ports.TokenClaims{}, domain.ErrTokenInvalid
	}

	if ports.TokenKind(claims.TokenType) != expected {
		return ports.TokenClaims{}, domain.ErrTokenTypeMismatch
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ports.TokenClaims{}, domain.ErrTokenInvalid
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return ports.TokenClaims{}, domain.ErrTokenInvalid
	}

	return ports.TokenClaims{
		UserID:    userID,
		SessionID: sessionID,
		Role:      domain.Role(claims.Role),
		Kind:      expected,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
