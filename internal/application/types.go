package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/opswork/platform/services/auth-service/internal/domain"
)

type Config struct {
	DefaultRole          domain.Role
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
	MagicLinkTTL         time.Duration
	FailedLoginThreshold int
	LockoutWindow        time.Duration
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

type RegisterResponse struct {
	UserID        uuid.UUID `json:"user_id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"email_verified"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceInfo string `json:"device_info"`
	IPAddress  string `json:"-"`
	UserAgent  string `json:"-"`
}

// TokenPair is the issued credential bundle shared by login, refresh and
// magic-link flows.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	SessionID    uuid.UUID `json:"session_id"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type MagicLinkRequest struct {
	Email string `json:"email"`
}

type MagicLinkLoginRequest struct {
	Token      string `json:"token"`
	DeviceInfo string `json:"device_info"`
	IPAddress  string `json:"-"`
	UserAgent  string `json:"-"`
}

type PasswordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}

type UserProfile struct {
	UserID        uuid.UUID  `json:"user_id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Phone         string     `json:"phone,omitempty"`
	Role          string     `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type SessionItem struct {
	SessionID  uuid.UUID `json:"session_id"`
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsCurrent  bool      `json:"is_current"`
}

type LoginHistoryItem struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Method        string    `json:"method"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
}

func toUserProfile(u domain.User) UserProfile {
	return UserProfile{
		UserID:        u.UserID,
		Email:         u.Email,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		Role:          string(u.Role),
		EmailVerified: u.EmailVerified,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
}

func toSessionItem(s domain.Session, currentSessionID uuid.UUID) SessionItem {
	return SessionItem{
		SessionID:  s.SessionID,
		DeviceInfo: s.DeviceInfo,
		IPAddress:  s.IPAddress,
		UserAgent:  s.UserAgent,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsedAt,
		ExpiresAt:  s.ExpiresAt,
		IsCurrent:  s.SessionID == currentSessionID,
	}
}

func toLoginHistoryItem(a domain.LoginAttempt) LoginHistoryItem {
	return LoginHistoryItem{
		ID:            a.ID,
		Timestamp:     a.AttemptAt,
		Method:        a.Method,
		Success:       a.Success,
		FailureReason: a.FailureReason,
		IPAddress:     a.IPAddress,
		UserAgent:     a.UserAgent,
	}
}
