package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionMetadata describes the device a session was opened from.
type SessionMetadata struct {
	IP         string `json:"ip" db:"ip"`
	UserAgent  string `json:"user_agent" db:"user_agent"`
	DeviceType string `json:"device_type" db:"device_type"`
	Location   string `json:"location" db:"location"`
}

// Session binds one device to one account. RefreshTokenHash always holds the
// hash of the single refresh token that may currently be redeemed.
type Session struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	AccountID        uuid.UUID       `json:"account_id" db:"account_id"`
	UserID           uuid.UUID       `json:"user_id" db:"user_id"`
	TenantID         uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	DeviceID         string          `json:"device_id" db:"device_id"`
	RefreshTokenHash string          `json:"-" db:"refresh_token_hash"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	ExpiresAt        time.Time       `json:"expires_at" db:"expires_at"`
	LastAccessedAt   time.Time       `json:"last_accessed_at" db:"last_accessed_at"`
	RefreshCount     int             `json:"refresh_count" db:"refresh_count"`
	Metadata         SessionMetadata `json:"metadata"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// IsValid reports whether the session can still authenticate at now.
// Expiry alone invalidates it, whatever the active flag says.
func (s *Session) IsValid(now time.Time) bool {
	return s != nil && s.IsActive && s.ExpiresAt.After(now)
}
