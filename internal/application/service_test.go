package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/adapters/memory"
	"github.com/opswork/platform/services/auth-service/internal/adapters/security"
	"github.com/opswork/platform/services/auth-service/internal/domain"
)

const testPassword = "SecurePass123"

type fixture struct {
	svc   *Service
	repos memory.Repositories
	now   time.Time
}

func testConfig() Config {
	return Config{
		DefaultRole:          domain.RoleCustomer,
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      30 * 24 * time.Hour,
		EmailVerificationTTL: 48 * time.Hour,
		PasswordResetTTL:     2 * time.Hour,
		MagicLinkTTL:         time.Hour,
		FailedLoginThreshold: 5,
		LockoutWindow:        30 * time.Minute,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := security.NewEphemeralHS256Codec()
	if err != nil {
		t.Fatalf("init codec: %v", err)
	}
	repos := memory.NewRepositories()
	f := &fixture{
		repos: repos,
		now:   time.Now().UTC(),
	}
	f.svc = NewService(Dependencies{
		Config:        testConfig(),
		Users:         repos.Users,
		Credentials:   repos.Credentials,
		Tokens:        repos.Tokens,
		Sessions:      repos.Sessions,
		LoginAttempts: repos.LoginAttempts,
		Outbox:        repos.Outbox,
		Idempotency:   repos.Idempotency,
		Revocations:   memory.NewRevocationStore(),
		Hasher:        security.NewBcryptHasher(4),
		TokenCodec:    codec,
	})
	f.svc.nowFn = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) register(t *testing.T, email string) RegisterResponse {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterRequest{
		Email:    email,
		Password: testPassword,
	}, "")
	if err != nil {
		t.Fatalf("register %s failed: %v", email, err)
	}
	return res
}

func (f *fixture) login(t *testing.T, email string) TokenPair {
	t.Helper()
	pair, err := f.svc.Login(context.Background(), LoginRequest{
		Email:     email,
		Password:  testPassword,
		IPAddress: "127.0.0.1",
		UserAgent: "unit-test",
	})
	if err != nil {
		t.Fatalf("login %s failed: %v", email, err)
	}
	return pair
}

// lastEmailToken pulls the most recently enqueued mail event of the given
// type from the outbox and returns its raw token.
func (f *fixture) lastEmailToken(t *testing.T, eventType string) string {
	t.Helper()
	records, err := f.repos.Outbox.ClaimUnpublished(context.Background(), 100, uuid.NewString(), f.now.Add(time.Second))
	if err != nil {
		t.Fatalf("claim outbox: %v", err)
	}
	token := ""
	for _, rec := range records {
		if rec.EventType != eventType {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			t.Fatalf("decode outbox payload: %v", err)
		}
		if raw, ok := payload["token"].(string); ok {
			token = raw
		}
	}
	if token == "" {
		t.Fatalf("no %s event with a token in the outbox", eventType)
	}
	return token
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerRes := f.register(t, "user@example.com")
	if registerRes.UserID == uuid.Nil {
		t.Fatalf("register returned empty user id")
	}
	if registerRes.EmailVerified {
		t.Fatalf("fresh registration must start unverified")
	}

	pair := f.login(t, "user@example.com")
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("login returned empty tokens")
	}
	if pair.TokenType != "Bearer" {
		t.Fatalf("unexpected token type %q", pair.TokenType)
	}

	claims, err := f.svc.ValidateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate access failed: %v", err)
	}
	if claims.UserID != registerRes.UserID || claims.SessionID != pair.SessionID {
		t.Fatalf("access claims do not match the issued session")
	}

	rotated, err := f.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if rotated.SessionID != pair.SessionID {
		t.Fatalf("rotation must keep the session id stable, got %s want %s", rotated.SessionID, pair.SessionID)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("rotation must mint a new refresh token")
	}

	// The superseded refresh token must never validate again.
	if _, err := f.svc.Refresh(ctx, pair.RefreshToken); !domain.IsSessionError(err) {
		t.Fatalf("expected session error for stale refresh token, got %v", err)
	}

	if err := f.svc.Logout(ctx, claims); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := f.svc.ValidateAccess(ctx, pair.AccessToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("expected revoked session after logout, got %v", err)
	}
	if _, err := f.svc.Refresh(ctx, rotated.RefreshToken); !domain.IsSessionError(err) {
		t.Fatalf("expected session error refreshing a logged-out session, got %v", err)
	}
}

func TestRegisterDerivesUsernameFromEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	first := f.register(t, "jordan@example.com")
	if first.Username != "jordan" {
		t.Fatalf("expected username jordan, got %q", first.Username)
	}
	second := f.register(t, "jordan@other.example.com")
	if second.Username != "jordan1" {
		t.Fatalf("expected suffixed username jordan1, got %q", second.Username)
	}
}

func TestRegisterRejectsDuplicateEmailAndAdminRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "taken@example.com")
	if _, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "taken@example.com",
		Password: testPassword,
	}, ""); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}

	if _, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "root@example.com",
		Password: testPassword,
		Role:     "ADMIN",
	}, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for admin self-register, got %v", err)
	}
}

func TestRegisterIdempotencyReplay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	req := RegisterRequest{Email: "idem@example.com", Password: testPassword}
	first, err := f.svc.Register(ctx, req, "key-1")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	replay, err := f.svc.Register(ctx, req, "key-1")
	if err != nil {
		t.Fatalf("idempotent replay failed: %v", err)
	}
	if replay.UserID != first.UserID {
		t.Fatalf("replay returned a different user: %s vs %s", replay.UserID, first.UserID)
	}

	// Same key with a different body is a conflict, not a replay.
	other := RegisterRequest{Email: "someone-else@example.com", Password: testPassword}
	if _, err := f.svc.Register(ctx, other, "key-1"); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestRegisterIdempotencyKeyFreedAfterFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "taken@example.com")

	dup := RegisterRequest{Email: "taken@example.com", Password: testPassword}
	if _, err := f.svc.Register(ctx, dup, "key-retry"); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}

	// The identical retry must see the real failure again, not an in-flight
	// conflict left over from the first attempt's reservation.
	if _, err := f.svc.Register(ctx, dup, "key-retry"); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("retry after failure: expected duplicate email, got %v", err)
	}

	// The freed key can carry a corrected request to completion.
	fixed := RegisterRequest{Email: "free@example.com", Password: testPassword}
	res, err := f.svc.Register(ctx, fixed, "key-retry")
	if err != nil {
		t.Fatalf("register with corrected request failed: %v", err)
	}
	if res.UserID == uuid.Nil {
		t.Fatalf("register returned empty user id")
	}
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	res := f.register(t, "locked@example.com")

	wrong := LoginRequest{
		Email:     "locked@example.com",
		Password:  "WrongPass999",
		IPAddress: "10.0.0.1",
		UserAgent: "unit-test",
	}
	for i := 0; i < 5; i++ {
		if _, err := f.svc.Login(ctx, wrong); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	// The correct password fails the same way while locked.
	if _, err := f.svc.Login(ctx, LoginRequest{
		Email:    "locked@example.com",
		Password: testPassword,
	}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected account locked on correct password, got %v", err)
	}

	attempts, err := f.repos.LoginAttempts.ListByUser(ctx, res.UserID, 100)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 6 {
		t.Fatalf("expected exactly one audit row per attempt (6), got %d", len(attempts))
	}
	if attempts[0].FailureReason != "ACCOUNT_LOCKED" {
		t.Fatalf("latest attempt should be ACCOUNT_LOCKED, got %q", attempts[0].FailureReason)
	}

	// After the lock window the correct password works and resets the counter.
	f.advance(31 * time.Minute)
	f.login(t, "locked@example.com")
}

func TestLockoutCounterSurvivesLockExpiry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "relock@example.com")

	wrong := LoginRequest{Email: "relock@example.com", Password: "WrongPass999"}
	for i := 0; i < 5; i++ {
		if _, err := f.svc.Login(ctx, wrong); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	// Locking does not reset the counter, so one more failure after the
	// window re-locks immediately.
	f.advance(31 * time.Minute)
	if _, err := f.svc.Login(ctx, wrong); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := f.svc.Login(ctx, LoginRequest{
		Email:    "relock@example.com",
		Password: testPassword,
	}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected re-locked account, got %v", err)
	}
}

func TestLoginUnknownEmailDoesNotRevealExistence(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	if _, err := f.svc.Login(context.Background(), LoginRequest{
		Email:    "ghost@example.com",
		Password: testPassword,
	}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}

func TestVerifyEmailTokenIsSingleUse(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	res := f.register(t, "verify@example.com")
	token := f.lastEmailToken(t, "auth.email.verification_requested")

	if err := f.svc.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("verify email failed: %v", err)
	}
	user, err := f.repos.Users.GetByID(ctx, res.UserID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.EmailVerified {
		t.Fatalf("email should be verified")
	}

	if err := f.svc.VerifyEmail(ctx, token); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected invalid token on second use, got %v", err)
	}
}

func TestResendVerificationInvalidatesPriorToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "resend@example.com")
	firstToken := f.lastEmailToken(t, "auth.email.verification_requested")

	if err := f.svc.ResendVerification(ctx, "resend@example.com"); err != nil {
		t.Fatalf("resend verification failed: %v", err)
	}
	secondToken := f.lastEmailToken(t, "auth.email.verification_requested")
	if secondToken == firstToken {
		t.Fatalf("resend must mint a fresh token")
	}

	if err := f.svc.VerifyEmail(ctx, firstToken); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected superseded token to be rejected, got %v", err)
	}
	if err := f.svc.VerifyEmail(ctx, secondToken); err != nil {
		t.Fatalf("latest token should verify, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "reset@example.com")
	pair := f.login(t, "reset@example.com")

	// Unknown addresses get the same silent success.
	if err := f.svc.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("reset request for unknown email must be silent, got %v", err)
	}

	if err := f.svc.RequestPasswordReset(ctx, "reset@example.com"); err != nil {
		t.Fatalf("request password reset failed: %v", err)
	}
	token := f.lastEmailToken(t, "auth.email.password_reset_requested")

	if err := f.svc.ResetPassword(ctx, PasswordResetRequest{
		Token:       token,
		NewPassword: "BrandNewPass1",
	}); err != nil {
		t.Fatalf("reset password failed: %v", err)
	}

	// Old password dead, old sessions dead, new password works.
	if _, err := f.svc.Login(ctx, LoginRequest{
		Email:    "reset@example.com",
		Password: testPassword,
	}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password should be rejected, got %v", err)
	}
	if _, err := f.svc.Refresh(ctx, pair.RefreshToken); err == nil {
		t.Fatalf("sessions must be revoked by a password reset")
	}
	if _, err := f.svc.Login(ctx, LoginRequest{
		Email:    "reset@example.com",
		Password: "BrandNewPass1",
	}); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}

	if err := f.svc.ResetPassword(ctx, PasswordResetRequest{
		Token:       token,
		NewPassword: "AnotherPass22",
	}); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("reset token must be single use, got %v", err)
	}
}

func TestPasswordResetClearsLockout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "unlock@example.com")

	wrong := LoginRequest{Email: "unlock@example.com", Password: "WrongPass999"}
	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, wrong)
	}

	if err := f.svc.RequestPasswordReset(ctx, "unlock@example.com"); err != nil {
		t.Fatalf("request password reset failed: %v", err)
	}
	token := f.lastEmailToken(t, "auth.email.password_reset_requested")
	if err := f.svc.ResetPassword(ctx, PasswordResetRequest{
		Token:       token,
		NewPassword: "BrandNewPass1",
	}); err != nil {
		t.Fatalf("reset password failed: %v", err)
	}

	// No waiting out the lock window after a completed reset.
	if _, err := f.svc.Login(ctx, LoginRequest{
		Email:    "unlock@example.com",
		Password: "BrandNewPass1",
	}); err != nil {
		t.Fatalf("login after reset failed: %v", err)
	}
}

func TestChangePasswordSparesCurrentSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "change@example.com")
	current := f.login(t, "change@example.com")
	other := f.login(t, "change@example.com")

	claims, err := f.svc.ValidateAccess(ctx, current.AccessToken)
	if err != nil {
		t.Fatalf("validate access failed: %v", err)
	}

	if err := f.svc.ChangePassword(ctx, claims, ChangePasswordRequest{
		CurrentPassword: "WrongPass999",
		NewPassword:     "BrandNewPass1",
	}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for wrong current password, got %v", err)
	}

	if err := f.svc.ChangePassword(ctx, claims, ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     "BrandNewPass1",
	}); err != nil {
		t.Fatalf("change password failed: %v", err)
	}

	if _, err := f.svc.Refresh(ctx, current.RefreshToken); err != nil {
		t.Fatalf("caller's own session must survive a password change, got %v", err)
	}
	if _, err := f.svc.Refresh(ctx, other.RefreshToken); err == nil {
		t.Fatalf("other sessions must be revoked by a password change")
	}
}

func TestChangePasswordCountsTowardLockout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "guesser@example.com")
	pair := f.login(t, "guesser@example.com")

	claims, err := f.svc.ValidateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate access failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		err := f.svc.ChangePassword(ctx, claims, ChangePasswordRequest{
			CurrentPassword: "WrongPass999",
			NewPassword:     "BrandNewPass1",
		})
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("guess %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	// The counter is shared with login, so the account is now locked.
	if _, err := f.svc.Login(ctx, LoginRequest{
		Email:    "guesser@example.com",
		Password: testPassword,
	}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked account after repeated wrong guesses, got %v", err)
	}

	// While locked, even the correct current password is rejected.
	if err := f.svc.ChangePassword(ctx, claims, ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     "BrandNewPass1",
	}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected account locked on change while locked, got %v", err)
	}
}

func TestMagicLinkFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	res := f.register(t, "magic@example.com")

	// Unknown addresses are silently accepted.
	if err := f.svc.RequestMagicLink(ctx, MagicLinkRequest{Email: "ghost@example.com"}); err != nil {
		t.Fatalf("magic link for unknown email must be silent, got %v", err)
	}

	if err := f.svc.RequestMagicLink(ctx, MagicLinkRequest{Email: "magic@example.com"}); err != nil {
		t.Fatalf("request magic link failed: %v", err)
	}
	token := f.lastEmailToken(t, "auth.email.magic_link_requested")

	pair, err := f.svc.LoginWithMagicLink(ctx, MagicLinkLoginRequest{
		Token:     token,
		IPAddress: "127.0.0.1",
		UserAgent: "unit-test",
	})
	if err != nil {
		t.Fatalf("magic link login failed: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatalf("magic link login returned no access token")
	}

	// Completing a magic-link login proves mailbox control.
	user, err := f.repos.Users.GetByID(ctx, res.UserID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.EmailVerified {
		t.Fatalf("magic link login should mark the email verified")
	}

	if _, err := f.svc.LoginWithMagicLink(ctx, MagicLinkLoginRequest{Token: token}); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("magic link token must be single use, got %v", err)
	}
}

func TestMagicLinkRequestFailsForLockedAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "magiclock@example.com")

	wrong := LoginRequest{Email: "magiclock@example.com", Password: "WrongPass999"}
	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, wrong)
	}

	if err := f.svc.RequestMagicLink(ctx, MagicLinkRequest{Email: "magiclock@example.com"}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected account locked, got %v", err)
	}
}

func TestMagicLinkTokenExpires(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "expiry@example.com")

	if err := f.svc.RequestMagicLink(ctx, MagicLinkRequest{Email: "expiry@example.com"}); err != nil {
		t.Fatalf("request magic link failed: %v", err)
	}
	token := f.lastEmailToken(t, "auth.email.magic_link_requested")

	f.advance(2 * time.Hour)
	if _, err := f.svc.LoginWithMagicLink(ctx, MagicLinkLoginRequest{Token: token}); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestSessionManagement(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "multi@example.com")

	laptop := f.login(t, "multi@example.com")
	phone := f.login(t, "multi@example.com")

	claims, err := f.svc.ValidateAccess(ctx, laptop.AccessToken)
	if err != nil {
		t.Fatalf("validate access failed: %v", err)
	}

	sessions, err := f.svc.ListSessions(ctx, claims)
	if err != nil {
		t.Fatalf("list sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	currentFlags := 0
	for _, item := range sessions {
		if item.IsCurrent {
			currentFlags++
			if item.SessionID != laptop.SessionID {
				t.Fatalf("wrong session flagged as current")
			}
		}
	}
	if currentFlags != 1 {
		t.Fatalf("exactly one session should be flagged current, got %d", currentFlags)
	}

	if err := f.svc.RevokeSession(ctx, claims, phone.SessionID); err != nil {
		t.Fatalf("revoke session failed: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, phone.RefreshToken); err == nil {
		t.Fatalf("revoked session must not refresh")
	}
	// Idempotent revoke.
	if err := f.svc.RevokeSession(ctx, claims, phone.SessionID); err != nil {
		t.Fatalf("revoking an already-revoked session should succeed, got %v", err)
	}

	if err := f.svc.LogoutAll(ctx, claims); err != nil {
		t.Fatalf("logout all failed: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, laptop.RefreshToken); err == nil {
		t.Fatalf("logout-all must revoke the current session too")
	}
}

func TestRevokeForeignSessionReadsAsNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "owner@example.com")
	f.register(t, "intruder@example.com")

	ownerPair := f.login(t, "owner@example.com")
	intruderPair := f.login(t, "intruder@example.com")

	intruderClaims, err := f.svc.ValidateAccess(ctx, intruderPair.AccessToken)
	if err != nil {
		t.Fatalf("validate access failed: %v", err)
	}

	if err := f.svc.RevokeSession(ctx, intruderClaims, ownerPair.SessionID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("foreign session must read as not found, got %v", err)
	}
	if _, err := f.svc.Refresh(ctx, ownerPair.RefreshToken); err != nil {
		t.Fatalf("owner session must be untouched, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.register(t, "kinds@example.com")
	pair := f.login(t, "kinds@example.com")

	if _, err := f.svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, domain.ErrTokenTypeMismatch) {
		t.Fatalf("expected token type mismatch, got %v", err)
	}
	if _, err := f.svc.ValidateAccess(context.Background(), pair.RefreshToken); !errors.Is(err, domain.ErrTokenTypeMismatch) {
		t.Fatalf("expected token type mismatch, got %v", err)
	}
}

func TestLoginHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "history@example.com")

	_, _ = f.svc.Login(ctx, LoginRequest{Email: "history@example.com", Password: "WrongPass999"})
	pair := f.login(t, "history@example.com")

	claims, err := f.svc.ValidateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate access failed: %v", err)
	}
	history, err := f.svc.LoginHistory(ctx, claims, 0)
	if err != nil {
		t.Fatalf("login history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	if !history[0].Success || history[0].Method != domain.LoginMethodPassword {
		t.Fatalf("newest row should be the successful password login")
	}
	if history[1].Success || history[1].FailureReason != "INVALID_PASSWORD" {
		t.Fatalf("older row should be the failed attempt, got %+v", history[1])
	}
}

func TestAdminUnlockAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "stuck@example.com")

	wrong := LoginRequest{Email: "stuck@example.com", Password: "WrongPass999"}
	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, wrong)
	}
	if _, err := f.svc.Login(ctx, LoginRequest{
		Email:    "stuck@example.com",
		Password: testPassword,
	}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked account, got %v", err)
	}

	if err := f.svc.AdminUnlockAccount(ctx, "stuck@example.com"); err != nil {
		t.Fatalf("admin unlock failed: %v", err)
	}
	f.login(t, "stuck@example.com")

	if err := f.svc.AdminUnlockAccount(ctx, "ghost@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown account, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "profile@example.com")
	pair := f.login(t, "profile@example.com")

	claims, err := f.svc.ValidateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate access failed: %v", err)
	}

	if _, err := f.svc.UpdateProfile(ctx, claims, UpdateProfileRequest{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty patch, got %v", err)
	}

	first := "Alex"
	updated, err := f.svc.UpdateProfile(ctx, claims, UpdateProfileRequest{FirstName: &first})
	if err != nil {
		t.Fatalf("update profile failed: %v", err)
	}
	if updated.FirstName != "Alex" {
		t.Fatalf("first name not updated, got %q", updated.FirstName)
	}

	profile, err := f.svc.Me(ctx, claims)
	if err != nil {
		t.Fatalf("me failed: %v", err)
	}
	if profile.FirstName != "Alex" {
		t.Fatalf("profile read-back mismatch, got %q", profile.FirstName)
	}
}

func TestUsernameValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "shortname@example.com",
		Password: testPassword,
		Username: "ab",
	}, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for short username, got %v", err)
	}
	if _, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "longname@example.com",
		Password: testPassword,
		Username: strings.Repeat("a", 31),
	}, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for long username, got %v", err)
	}

	f.register(t, "taken@example.com")
	if _, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "copycat@example.com",
		Password: testPassword,
		Username: "taken",
	}, ""); !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
}
