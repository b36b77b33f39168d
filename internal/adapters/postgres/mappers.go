package postgres

import (
	"errors"
	"strings"

	"github.com/opswork/platform/services/auth-service/internal/domain"
	"gorm.io/gorm"
)

func toDomainUser(row userModel) domain.User {
	return domain.User{
		UserID:              row.UserID,
		Email:               row.Email,
		Username:            row.Username,
		FirstName:           row.FirstName,
		LastName:            row.LastName,
		Phone:               row.Phone,
		PasswordHash:        row.PasswordHash,
		Role:                domain.Role(row.Role),
		EmailVerified:       row.EmailVerified,
		IsActive:            row.IsActive,
		FailedLoginAttempts: row.FailedLoginAttempts,
		AccountLockedUntil:  row.AccountLockedUntil,
		LastLoginAt:         row.LastLoginAt,
		LastLoginIP:         derefString(row.LastLoginIP),
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
}

func toDomainSession(row sessionModel) domain.Session {
	return domain.Session{
		SessionID:  row.SessionID,
		UserID:     row.UserID,
		DeviceInfo: row.DeviceInfo,
		IPAddress:  derefString(row.IPAddress),
		UserAgent:  row.UserAgent,
		IsActive:   row.IsActive,
		CreatedAt:  row.CreatedAt,
		LastUsedAt: row.LastUsedAt,
		ExpiresAt:  row.ExpiresAt,
	}
}

func toDomainLoginAttempt(row loginAttemptModel) domain.LoginAttempt {
	return domain.LoginAttempt{
		ID:            row.ID,
		UserID:        row.UserID,
		AttemptAt:     row.AttemptAt,
		IPAddress:     derefString(row.IPAddress),
		UserAgent:     row.UserAgent,
		Method:        row.Method,
		Success:       row.Success,
		FailureReason: row.FailureReason,
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
