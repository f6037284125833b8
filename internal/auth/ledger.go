package auth

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hivemindd/admin-auth/internal/model"
)

// attemptRetention is how many block windows a login attempt is kept for
// before the sweeper prunes it.
const attemptRetention = 24

// Ledger is the append-only record of admin login attempts per IP. Only
// failed attempts inside the trailing block window count towards a block.
type Ledger struct {
	store       AggregateStoreTx
	maxAttempts int
	window      time.Duration
}

func NewLedger(store AggregateStoreTx, maxAttempts int, window time.Duration) *Ledger {
	return &Ledger{
		store:       store,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (l *Ledger) Record(ctx context.Context, args model.LoginAttemptArgs) error {
	return l.store.CreateLoginAttempt(ctx, newLoginAttempt(args))
}

// RecordSuccess stores a successful attempt and wipes the IP's failures,
// two-factor ones included.
func (l *Ledger) RecordSuccess(ctx context.Context, args model.LoginAttemptArgs) error {
	args.Successful = true
	return l.store.InTx(ctx, func(ctx context.Context, repo AggregateStoreTx) error {
		if err := repo.CreateLoginAttempt(ctx, newLoginAttempt(args)); err != nil {
			return err
		}
		_, err := repo.DeleteFailedLoginAttempts(ctx, args.IpAddress)
		return err
	})
}

func (l *Ledger) IsIPBlocked(ctx context.Context, ip string) (bool, error) {
	count, err := l.store.CountFailedLoginAttemptsSince(ctx, ip, timeNow().Add(-l.window))
	if err != nil {
		return false, fmt.Errorf("failed to count failed login attempts: %w", err)
	}
	return count >= int64(l.maxAttempts), nil
}

// BlockTimeRemaining returns the whole minutes, rounded up and never below
// one, until the latest failed attempt leaves the window. It returns nil
// when there is nothing left to wait for.
func (l *Ledger) BlockTimeRemaining(ctx context.Context, ip string) (*int, error) {
	now := timeNow()
	latest, err := l.store.GetLatestFailedLoginAttemptSince(ctx, ip, now.Add(-l.window))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest failed login attempt: %w", err)
	}
	return remainingMinutes(latest, l.window, now), nil
}

// remainingMinutes is the wait until latest leaves window, in whole minutes
// rounded up and never below one. It is nil once nothing is left to wait.
func remainingMinutes(latest *model.LoginAttempt, window time.Duration, now time.Time) *int {
	if latest == nil {
		return nil
	}
	remaining := latest.CreatedAt.Add(window).Sub(now)
	if remaining <= 0 {
		return nil
	}
	minutes := int(math.Ceil(remaining.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return &minutes
}

func (l *Ledger) ClearFailedAttempts(ctx context.Context, ip string) error {
	_, err := l.store.DeleteFailedLoginAttempts(ctx, ip)
	return err
}

// Prune drops attempts far older than any block window could look at.
func (l *Ledger) Prune(ctx context.Context) (int64, error) {
	return l.store.DeleteLoginAttemptsBefore(ctx, timeNow().Add(-attemptRetention*l.window))
}

func newLoginAttempt(args model.LoginAttemptArgs) *model.LoginAttempt {
	kind := args.Kind
	if kind == "" {
		kind = model.AttemptPassword
	}
	return &model.LoginAttempt{
		IpAddress:  args.IpAddress,
		Kind:       kind,
		Successful: args.Successful,
		Username:   optionalString(args.Username),
		UserAgent:  optionalString(args.UserAgent),
		CreatedAt:  timeNow(),
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
