package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

// recordAttempt writes the single audit row for a login attempt. Audit
// failures are logged, never surfaced; auth outcomes must not depend on the
// audit trail being writable.
func (s *Service) recordAttempt(ctx context.Context, userID *uuid.UUID, method, ip, userAgent string, success bool, reason string) {
	if err := s.loginAttempts.Insert(ctx, domain.LoginAttempt{
		UserID:        userID,
		AttemptAt:     s.nowFn(),
		IPAddress:     ip,
		UserAgent:     userAgent,
		Method:        method,
		Success:       success,
		FailureReason: reason,
	}); err != nil {
		slog.Default().WarnContext(ctx, "failed to persist login attempt",
			"module", "application",
			"layer", "application",
			"operation", "record_login_attempt",
			"outcome", "failure",
			"reason", reason,
			"error", err,
		)
	}
}

// enqueueEmail commits a mail event to the outbox. Enqueue failure is logged
// and swallowed: mail is fire-and-forget relative to the auth flow.
func (s *Service) enqueueEmail(ctx context.Context, eventType string, userID uuid.UUID, fields map[string]any) {
	now := s.nowFn()
	fields["user_id"] = userID.String()
	fields["occurred_at"] = now
	payload, _ := json.Marshal(fields)
	if err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: userID.String(),
		Payload:      payload,
		OccurredAt:   now,
	}); err != nil {
		slog.Default().WarnContext(ctx, "failed to enqueue mail event",
			"module", "application",
			"layer", "application",
			"operation", "enqueue_email",
			"outcome", "failure",
			"event_type", eventType,
			"error", err,
		)
	}
}

// issueVerificationToken invalidates outstanding tokens of the same type and
// stores the hash of a fresh one, returning the raw value for the email.
func (s *Service) issueVerificationToken(ctx context.Context, userID uuid.UUID, tokenType domain.VerificationTokenType, ttl time.Duration) (string, error) {
	now := s.nowFn()
	if err := s.tokens.InvalidatePending(ctx, userID, tokenType, now); err != nil {
		return "", fmt.Errorf("invalidate pending tokens: %w", err)
	}
	raw := randomToken()
	if err := s.tokens.Create(ctx, ports.CreateVerificationTokenParams{
		UserID:    userID,
		Type:      tokenType,
		TokenHash: hashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}); err != nil {
		return "", fmt.Errorf("create verification token: %w", err)
	}
	return raw, nil
}

// revokeSessions marks sessions inactive and plants revocation markers so
// outstanding access tokens die with them.
func (s *Service) revokeSessions(ctx context.Context, userID uuid.UUID, except *uuid.UUID) error {
	now := s.nowFn()
	revoked, err := s.sessions.RevokeAllByUser(ctx, userID, except, now)
	if err != nil {
		return err
	}
	markerTTL := now.Add(s.cfg.AccessTokenTTL)
	for _, sessionID := range revoked {
		_ = s.revocations.MarkRevoked(ctx, sessionID, markerTTL)
	}
	return nil
}

// normalizeEmail canonicalizes and validates email format before persistence/comparison.
func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

// hashRequest computes deterministic request fingerprint for idempotency conflict detection.
func hashRequest(req any) string {
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// hashToken stores one-way token fingerprints instead of raw secrets.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

// randomToken returns a URL-safe random token with 256 bits of entropy.
func randomToken() string {
	raw := make([]byte, 32)
	_, _ = rand.Read(raw)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func validUsername(name string) bool {
	if len(name) < 3 || len(name) > 30 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
		default:
			return false
		}
	}
	return true
}

// usernameFromEmail derives a username candidate from the email local part,
// dropping characters the username alphabet rejects.
func usernameFromEmail(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	var b strings.Builder
	for _, r := range local {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	out := b.String()
	if len(out) < 3 {
		out = out + "user"
	}
	if len(out) > 30 {
		out = out[:30]
	}
	return out
}
