package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID              uuid.UUID  `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email               string     `gorm:"column:email"`
	Username            string     `gorm:"column:username"`
	FirstName           string     `gorm:"column:first_name"`
	LastName            string     `gorm:"column:last_name"`
	Phone               string     `gorm:"column:phone"`
	PasswordHash        string     `gorm:"column:password_hash"`
	Role                string     `gorm:"column:role"`
	EmailVerified       bool       `gorm:"column:email_verified"`
	IsActive            bool       `gorm:"column:is_active"`
	FailedLoginAttempts int        `gorm:"column:failed_login_attempts"`
	AccountLockedUntil  *time.Time `gorm:"column:account_locked_until"`
	LastLoginAt         *time.Time `gorm:"column:last_login_at"`
	LastLoginIP         *string    `gorm:"column:last_login_ip"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type verificationTokenModel struct {
	TokenID   uuid.UUID  `gorm:"column:token_id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id"`
	TokenType string     `gorm:"column:token_type"`
	TokenHash string     `gorm:"column:token_hash"`
	IsUsed    bool       `gorm:"column:is_used"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	IPAddress *string    `gorm:"column:ip_address"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	ExpiresAt time.Time  `gorm:"column:expires_at"`
}

func (verificationTokenModel) TableName() string { return "verification_tokens" }

type sessionModel struct {
	SessionID        uuid.UUID `gorm:"column:session_id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id"`
	RefreshTokenHash string    `gorm:"column:refresh_token_hash"`
	DeviceInfo       string    `gorm:"column:device_info"`
	IPAddress        *string   `gorm:"column:ip_address"`
	UserAgent        string    `gorm:"column:user_agent"`
	IsActive         bool      `gorm:"column:is_active"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	LastUsedAt       time.Time `gorm:"column:last_used_at"`
	ExpiresAt        time.Time `gorm:"column:expires_at"`
}

func (sessionModel) TableName() string { return "sessions" }

type loginAttemptModel struct {
	ID            int64      `gorm:"column:id;primaryKey"`
	UserID        *uuid.UUID `gorm:"column:user_id"`
	AttemptAt     time.Time  `gorm:"column:attempt_at"`
	IPAddress     *string    `gorm:"column:ip_address"`
	UserAgent     string     `gorm:"column:user_agent"`
	Method        string     `gorm:"column:method"`
	Success       bool       `gorm:"column:success"`
	FailureReason string     `gorm:"column:failure_reason"`
}

func (loginAttemptModel) TableName() string { return "login_attempts" }

type authOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (authOutboxModel) TableName() string { return "auth_outbox" }

type authIdempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseBody   *string   `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (authIdempotencyModel) TableName() string { return "auth_idempotency" }
