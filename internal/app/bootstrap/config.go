package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers selectable at composition time.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config is the resolved runtime configuration for the auth service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int

	StorageDriver string
	DatabaseURL   string
	MaxDBConns    int32
	RedisURL      string

	TokenSecret          string
	AllowEphemeralSecret bool

	BcryptCost int

	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
	MagicLinkTTL         time.Duration

	DefaultRole     string
	FailedThreshold int
	LockoutWindow   time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
	} `yaml:"service"`
	Storage struct {
		Driver      string `yaml:"driver"`
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"storage"`
	Tokens struct {
		Secret                 string `yaml:"secret"`
		AccessTTLMinutes       int    `yaml:"access_ttl_minutes"`
		RefreshTTLDays         int    `yaml:"refresh_ttl_days"`
		EmailVerificationHours int    `yaml:"email_verification_hours"`
		PasswordResetHours     int    `yaml:"password_reset_hours"`
		MagicLinkMinutes       int    `yaml:"magic_link_minutes"`
	} `yaml:"tokens"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "Auth-Service",
		HTTPPort:             8080,
		StorageDriver:        StoragePostgres,
		MaxDBConns:           20,
		AllowEphemeralSecret: true,
		BcryptCost:           12,
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      30 * 24 * time.Hour,
		EmailVerificationTTL: 48 * time.Hour,
		PasswordResetTTL:     2 * time.Hour,
		MagicLinkTTL:         time.Hour,
		DefaultRole:          "CUSTOMER",
		FailedThreshold:      5,
		LockoutWindow:        30 * time.Minute,
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      100,
		OutboxClaimTTL:       30 * time.Second,
		OutboxMaxRetries:     5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Storage.Driver != "" {
			cfg.StorageDriver = f.Storage.Driver
		}
		if f.Storage.PostgresURL != "" {
			cfg.DatabaseURL = f.Storage.PostgresURL
		}
		if f.Storage.RedisURL != "" {
			cfg.RedisURL = f.Storage.RedisURL
		}
		if f.Tokens.Secret != "" {
			cfg.TokenSecret = f.Tokens.Secret
		}
		if f.Tokens.AccessTTLMinutes > 0 {
			cfg.AccessTokenTTL = time.Duration(f.Tokens.AccessTTLMinutes) * time.Minute
		}
		if f.Tokens.RefreshTTLDays > 0 {
			cfg.RefreshTokenTTL = time.Duration(f.Tokens.RefreshTTLDays) * 24 * time.Hour
		}
		if f.Tokens.EmailVerificationHours > 0 {
			cfg.EmailVerificationTTL = time.Duration(f.Tokens.EmailVerificationHours) * time.Hour
		}
		if f.Tokens.PasswordResetHours > 0 {
			cfg.PasswordResetTTL = time.Duration(f.Tokens.PasswordResetHours) * time.Hour
		}
		if f.Tokens.MagicLinkMinutes > 0 {
			cfg.MagicLinkTTL = time.Duration(f.Tokens.MagicLinkMinutes) * time.Minute
		}
	}

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(envOrDefault("STORAGE_DRIVER", cfg.StorageDriver)))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.TokenSecret = envOrDefault("TOKEN_SECRET", cfg.TokenSecret)
	cfg.AllowEphemeralSecret = envBool("TOKEN_ALLOW_EPHEMERAL", cfg.AllowEphemeralSecret)
	cfg.DefaultRole = strings.ToUpper(strings.TrimSpace(envOrDefault("DEFAULT_ROLE", cfg.DefaultRole)))

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.FailedThreshold = envInt("FAILED_LOGIN_THRESHOLD", cfg.FailedThreshold)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.AccessTokenTTL = time.Duration(envInt("ACCESS_TOKEN_TTL_MINUTES", int(cfg.AccessTokenTTL.Minutes()))) * time.Minute
	cfg.RefreshTokenTTL = time.Duration(envInt("REFRESH_TOKEN_TTL_DAYS", int(cfg.RefreshTokenTTL.Hours()/24))) * 24 * time.Hour
	cfg.EmailVerificationTTL = time.Duration(envInt("EMAIL_VERIFICATION_TTL_HOURS", int(cfg.EmailVerificationTTL.Hours()))) * time.Hour
	cfg.PasswordResetTTL = time.Duration(envInt("PASSWORD_RESET_TTL_HOURS", int(cfg.PasswordResetTTL.Hours()))) * time.Hour
	cfg.MagicLinkTTL = time.Duration(envInt("MAGIC_LINK_TTL_MINUTES", int(cfg.MagicLinkTTL.Minutes()))) * time.Minute
	cfg.LockoutWindow = time.Duration(envInt("ACCOUNT_LOCKOUT_MINUTES", int(cfg.LockoutWindow.Minutes()))) * time.Minute

	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	switch cfg.StorageDriver {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("missing REDIS_URL")
		}
	case StorageMemory:
	default:
		return Config{}, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	if cfg.TokenSecret == "" && !cfg.AllowEphemeralSecret {
		return Config{}, fmt.Errorf("missing TOKEN_SECRET")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
