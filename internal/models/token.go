package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// DeviceInfo is collected from the inbound request at login.
type DeviceInfo struct {
	IP         string
	UserAgent  string
	DeviceType string
	Location   string
}

// LoginResult carries the issued pair together with the minimal profile.
type LoginResult struct {
	Tokens    TokenPair
	User      UserProfile
	SessionID uuid.UUID
	DeviceID  string
}
