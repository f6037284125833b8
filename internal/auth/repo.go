package auth

import (
	"context"
	"time"

	"github.com/hivemindd/admin-auth/internal/model"
)

type AggregateStoreTx interface {
	LoginAttemptStore
	Transactional
}

// Transactional defines transaction methods.
type Transactional interface {
	InTx(context.Context, TxF) error
}
type TxF func(ctx context.Context, repo AggregateStoreTx) error

// LoginAttemptStore defines methods for the login-attempt ledger. The
// LoginAttempt queries only see password attempts, the TwoFactorAttempt
// ones only two-factor attempts.
type LoginAttemptStore interface {
	CreateLoginAttempt(ctx context.Context, attempt *model.LoginAttempt) error
	CountFailedLoginAttemptsSince(ctx context.Context, ip string, since time.Time) (int64, error)
	// GetLatestFailedLoginAttemptSince returns nil, nil when there is none.
	GetLatestFailedLoginAttemptSince(ctx context.Context, ip string, since time.Time) (*model.LoginAttempt, error)
	CountFailedTwoFactorAttemptsSince(ctx context.Context, ip string, since time.Time) (int64, error)
	// GetLatestFailedTwoFactorAttemptSince returns nil, nil when there is none.
	GetLatestFailedTwoFactorAttemptSince(ctx context.Context, ip string, since time.Time) (*model.LoginAttempt, error)
	// DeleteFailedLoginAttempts removes failed attempts of every kind.
	DeleteFailedLoginAttempts(ctx context.Context, ip string) (int64, error)
	DeleteLoginAttemptsBefore(ctx context.Context, before time.Time) (int64, error)
}

// SessionRepository persists admin sessions. Implementations must reject a
// second row with the same session id with ErrDuplicateToken.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.AdminSession) error
	// GetSession returns nil, nil when the row does not exist.
	GetSession(ctx context.Context, sessionID string) (*model.AdminSession, error)
	ConfirmSessionTwoFactor(ctx context.Context, sessionID string) error
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	IncrementSessionTwoFactorFailures(ctx context.Context, sessionID string) (int, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteSessionsIdleSince(ctx context.Context, before time.Time) (int64, error)
}
