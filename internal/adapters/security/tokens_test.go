package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

func testClaims(kind ports.TokenKind) ports.TokenClaims {
	now := time.Now().UTC().Truncate(time.Second)
	return ports.TokenClaims{
		UserID:    uuid.New(),
		SessionID: uuid.New(),
		Role:      domain.RoleContractor,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	codec, err := NewEphemeralHS256Codec()
	if err != nil {
		t.Fatalf("init codec: %v", err)
	}

	want := testClaims(ports.TokenKindAccess)
	raw, err := codec.Encode(want)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := codec.Decode(raw, ports.TokenKindAccess)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.UserID != want.UserID || got.SessionID != want.SessionID {
		t.Fatalf("identity claims mismatch: got %+v want %+v", got, want)
	}
	if got.Role != want.Role || got.Kind != want.Kind {
		t.Fatalf("role/kind mismatch: got %+v want %+v", got, want)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("expiry mismatch: got %s want %s", got.ExpiresAt, want.ExpiresAt)
	}
}

func TestDecodeRejectsWrongKind(t *testing.T) {
	t.Parallel()

	codec, err := NewEphemeralHS256Codec()
	if err != nil {
		t.Fatalf("init codec: %v", err)
	}

	raw, err := codec.Encode(testClaims(ports.TokenKindRefresh))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := codec.Decode(raw, ports.TokenKindAccess); !errors.Is(err, domain.ErrTokenTypeMismatch) {
		t.Fatalf("expected token type mismatch, got %v", err)
	}
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	codec, err := NewEphemeralHS256Codec()
	if err != nil {
		t.Fatalf("init codec: %v", err)
	}

	claims := testClaims(ports.TokenKindAccess)
	claims.IssuedAt = time.Now().UTC().Add(-time.Hour)
	claims.ExpiresAt = time.Now().UTC().Add(-30 * time.Minute)
	raw, err := codec.Encode(claims)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := codec.Decode(raw, ports.TokenKindAccess); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected token expired, got %v", err)
	}
}

func TestDecodeRejectsTamperedToken(t *testing.T) {
	t.Parallel()

	codec, err := NewEphemeralHS256Codec()
	if err != nil {
		t.Fatalf("init codec: %v", err)
	}

	raw, err := codec.Encode(testClaims(ports.TokenKindAccess))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected jwt shape: %q", raw)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := codec.Decode(tampered, ports.TokenKindAccess); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestDecodeRejectsForeignSecret(t *testing.T) {
	t.Parallel()

	codecA, err := NewEphemeralHS256Codec()
	if err != nil {
		t.Fatalf("init codec: %v", err)
	}
	codecB, err := NewEphemeralHS256Codec()
	if err != nil {
		t.Fatalf("init codec: %v", err)
	}

	raw, err := codecA.Encode(testClaims(ports.TokenKindAccess))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := codecB.Decode(raw, ports.TokenKindAccess); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected invalid token under a different secret, got %v", err)
	}
}

func TestNewHS256CodecRejectsShortSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewHS256Codec("too-short"); err == nil {
		t.Fatalf("expected error for short signing secret")
	}
}
