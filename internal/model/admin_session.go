package model

import (
	"time"
)

type AdminSession struct {
	ID                 uint      `gorm:"primarykey" json:"-"`
	SessionID          string    `gorm:"uniqueIndex;size:128;not null" json:"session_id"`
	IpAddress          string    `gorm:"not null" json:"ip_address"`
	UserAgent          string    `json:"user_agent"`
	LastActivity       time.Time `gorm:"index;not null" json:"last_activity"`
	TwoFactorConfirmed bool      `gorm:"not null;default:false" json:"two_factor_confirmed"`
	TwoFactorFailures  int       `gorm:"not null;default:0" json:"two_factor_failures"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
}

// IsExpired reports whether the sliding inactivity window has elapsed.
func (s *AdminSession) IsExpired(now time.Time, lifetime time.Duration) bool {
	return now.Sub(s.LastActivity) >= lifetime
}

type CreateSessionArgs struct {
	IpAddress          string
	UserAgent          string
	TwoFactorConfirmed bool
}
