package model

import (
	"time"
)

type AdminLoginArgs struct {
	Username  string
	Password  string
	IpAddress string
	UserAgent string
}

type TwoFactorArgs struct {
	SessionID string
	Code      string
	IpAddress string
	UserAgent string
}

type LogoutArgs struct {
	SessionID string
	IpAddress string
	UserAgent string
}

// IPBlockedAlert is published when an IP crosses the failed password or
// failed two-factor threshold. Reason names which one.
type IPBlockedAlert struct {
	IpAddress        string
	UserAgent        string
	Username         string
	Reason           AttemptKind
	FailedAttempts   int
	BlockedAt        time.Time
	RemainingMinutes int
}
