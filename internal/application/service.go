package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

// Service is the auth orchestrator. Flows coordinate the storage ports and
// security primitives; policy thresholds and TTLs arrive through Config and
// never change after construction.
type Service struct {
	cfg           Config
	users         ports.UserRepository
	credentials   ports.CredentialRepository
	tokens        ports.VerificationTokenRepository
	sessions      ports.SessionRepository
	loginAttempts ports.LoginAttemptRepository
	outbox        ports.OutboxRepository
	idempotency   ports.IdempotencyRepository
	revocations   ports.SessionRevocationStore
	hasher        ports.PasswordHasher
	codec         ports.TokenCodec
	nowFn         func() time.Time
}

type Dependencies struct {
	Config        Config
	Users         ports.UserRepository
	Credentials   ports.CredentialRepository
	Tokens        ports.VerificationTokenRepository
	Sessions      ports.SessionRepository
	LoginAttempts ports.LoginAttemptRepository
	Outbox        ports.OutboxRepository
	Idempotency   ports.IdempotencyRepository
	Revocations   ports.SessionRevocationStore
	Hasher        ports.PasswordHasher
	TokenCodec    ports.TokenCodec
}

func NewService(deps Dependencies) *Service {
	return &Service{
		cfg:           deps.Config,
		users:         deps.Users,
		credentials:   deps.Credentials,
		tokens:        deps.Tokens,
		sessions:      deps.Sessions,
		loginAttempts: deps.LoginAttempts,
		outbox:        deps.Outbox,
		idempotency:   deps.Idempotency,
		revocations:   deps.Revocations,
		hasher:        deps.Hasher,
		codec:         deps.TokenCodec,
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a user and queues the verification email. With an
// idempotency key, an identical replay returns the first response instead of
// failing on the email unique index; a failed attempt releases the key so the
// client can retry it.
func (s *Service) Register(ctx context.Context, req RegisterRequest, idempotencyKey string) (RegisterResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return RegisterResponse{}, err
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return RegisterResponse{}, err
	}

	role := domain.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if role == "" {
		role = s.cfg.DefaultRole
	}
	if !domain.ValidRole(role) {
		return RegisterResponse{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	if role == domain.RoleAdmin {
		// Admin accounts are provisioned out of band, never self-registered.
		return RegisterResponse{}, fmt.Errorf("%w: role %q cannot self-register", domain.ErrInvalidInput, role)
	}

	if idempotencyKey != "" {
		requestHash := hashRequest(req)
		if replay, err := s.replayIdempotent(ctx, idempotencyKey, requestHash); err != nil {
			return RegisterResponse{}, err
		} else if replay != nil {
			return *replay, nil
		}
		if err := s.idempotency.Reserve(ctx, idempotencyKey, requestHash, s.nowFn().Add(7*24*time.Hour)); err != nil {
			return RegisterResponse{}, err
		}
		resp, err := s.createAccount(ctx, req, email, role)
		if err != nil {
			// The reservation must not outlive a failed attempt, or every
			// retry on the key would read as an in-flight conflict.
			_ = s.idempotency.Release(ctx, idempotencyKey)
			return RegisterResponse{}, err
		}
		body, _ := json.Marshal(resp)
		_ = s.idempotency.Complete(ctx, idempotencyKey, body, s.nowFn())
		return resp, nil
	}

	return s.createAccount(ctx, req, email, role)
}

// createAccount runs the registration body once validation and idempotency
// bookkeeping are out of the way.
func (s *Service) createAccount(ctx context.Context, req RegisterRequest, email string, role domain.Role) (RegisterResponse, error) {
	username, err := s.resolveUsername(ctx, req.Username, email)
	if err != nil {
		return RegisterResponse{}, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	user, err := s.users.Create(ctx, ports.CreateUserParams{
		Email:        email,
		Username:     username,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: passwordHash,
		Role:         role,
		RegisteredAt: now,
	})
	if err != nil {
		return RegisterResponse{}, err
	}

	rawToken, err := s.issueVerificationToken(ctx, user.UserID, domain.TokenEmailVerification, s.cfg.EmailVerificationTTL)
	if err != nil {
		return RegisterResponse{}, err
	}
	s.enqueueEmail(ctx, "auth.email.verification_requested", user.UserID, map[string]any{
		"email": user.Email,
		"token": rawToken,
	})

	return RegisterResponse{
		UserID:        user.UserID,
		Email:         user.Email,
		Username:      user.Username,
		Role:          string(user.Role),
		EmailVerified: user.EmailVerified,
	}, nil
}

// replayIdempotent returns the stored response for a completed key, nil when
// the key is unknown, and a conflict error when the key was used with a
// different request body.
func (s *Service) replayIdempotent(ctx context.Context, key, requestHash string) (*RegisterResponse, error) {
	rec, err := s.idempotency.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if rec.RequestHash != requestHash {
		return nil, fmt.Errorf("%w: idempotency key reused with different request", domain.ErrIdempotencyConflict)
	}
	if rec.Status != "completed" || len(rec.ResponseBody) == 0 {
		return nil, fmt.Errorf("%w: request with this key is still in flight", domain.ErrIdempotencyConflict)
	}
	var resp RegisterResponse
	if err := json.Unmarshal(rec.ResponseBody, &resp); err != nil {
		return nil, fmt.Errorf("decode stored idempotent response: %w", err)
	}
	return &resp, nil
}

// resolveUsername validates an explicit username or derives one from the
// email local part, probing numeric suffixes until free.
func (s *Service) resolveUsername(ctx context.Context, requested, email string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		if !validUsername(requested) {
			return "", fmt.Errorf("%w: username must be 3-30 chars of letters, digits, dot or underscore", domain.ErrInvalidInput)
		}
		taken, err := s.users.UsernameExists(ctx, requested)
		if err != nil {
			return "", err
		}
		if taken {
			return "", domain.ErrDuplicateUsername
		}
		return requested, nil
	}

	base := usernameFromEmail(email)
	candidate := base
	for i := 0; i < 50; i++ {
		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i+1)
	}
	return "", fmt.Errorf("%w: could not derive a free username", domain.ErrConflict)
}

// ValidateAccess parses an access token and rejects tokens whose session has
// a revocation marker. It is the single entry point the HTTP auth guard uses.
func (s *Service) ValidateAccess(ctx context.Context, raw string) (ports.TokenClaims, error) {
	claims, err := s.codec.Decode(raw, ports.TokenKindAccess)
	if err != nil {
		return ports.TokenClaims{}, err
	}
	if revoked, _ := s.revocations.IsRevoked(ctx, claims.SessionID); revoked {
		return ports.TokenClaims{}, domain.ErrSessionRevoked
	}
	return claims, nil
}

// issueTokenPair mints a session plus matching access/refresh tokens. The
// session ID is chosen here so the refresh token can embed it before the row
// exists; only the refresh token's hash is ever stored.
func (s *Service) issueTokenPair(ctx context.Context, user domain.User, deviceInfo, ip, userAgent string, now time.Time) (TokenPair, error) {
	sessionID := uuid.New()

	refreshToken, err := s.codec.Encode(ports.TokenClaims{
		UserID:    user.UserID,
		SessionID: sessionID,
		Role:      user.Role,
		Kind:      ports.TokenKindRefresh,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("encode refresh token: %w", err)
	}
	accessToken, err := s.codec.Encode(ports.TokenClaims{
		UserID:    user.UserID,
		SessionID: sessionID,
		Role:      user.Role,
		Kind:      ports.TokenKindAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("encode access token: %w", err)
	}

	if _, err := s.sessions.Create(ctx, ports.CreateSessionParams{
		SessionID:        sessionID,
		UserID:           user.UserID,
		RefreshTokenHash: hashToken(refreshToken),
		DeviceInfo:       deviceInfo,
		IPAddress:        ip,
		UserAgent:        userAgent,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cfg.RefreshTokenTTL),
	}); err != nil {
		return TokenPair{}, fmt.Errorf("create session: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
		SessionID:    sessionID,
	}, nil
}
