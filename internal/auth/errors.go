package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid two-factor code")
	ErrSessionNotFound    = errors.New("admin session not found or expired")
	ErrTwoFactorLocked    = errors.New("too many invalid two-factor codes")
	ErrDuplicateToken     = errors.New("session token already exists")
)

// BlockedError is returned while an IP has too many recent failed logins.
type BlockedError struct {
	IP               string
	RemainingMinutes int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("ip %s is blocked for %d more minutes", e.IP, e.RemainingMinutes)
}

// IsBlocked unwraps err into a *BlockedError.
func IsBlocked(err error) (*BlockedError, bool) {
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return blocked, true
	}
	return nil, false
}
