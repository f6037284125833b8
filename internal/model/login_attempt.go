package model

import (
	"time"
)

// AttemptKind separates password submissions from two-factor code
// submissions. Each kind has its own per-IP threshold.
type AttemptKind string

const (
	AttemptPassword  AttemptKind = "password"
	AttemptTwoFactor AttemptKind = "two_factor"
)

// LoginAttempt is one admin login POST. Rows are never updated, only
// deleted in bulk when the IP completes a full login or ages out.
type LoginAttempt struct {
	ID         uint        `gorm:"primarykey"`
	IpAddress  string      `gorm:"index:idx_login_attempts_ip_created;not null"`
	Kind       AttemptKind `gorm:"size:16;not null;default:password"`
	Successful bool        `gorm:"not null;default:false"`
	Username   *string
	UserAgent  *string
	CreatedAt  time.Time `gorm:"index:idx_login_attempts_ip_created;not null"`
}

type LoginAttemptArgs struct {
	IpAddress  string
	Kind       AttemptKind
	Successful bool
	UserAgent  string
	Username   string
}
