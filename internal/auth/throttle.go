package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/hivemindd/admin-auth/internal/model"
)

// TwoFactorThrottle counts wrong two-factor codes per IP across sessions.
// The per-session limit alone would let a caller who knows the password
// open a fresh session for every few guesses.
type TwoFactorThrottle struct {
	store       AggregateStoreTx
	maxFailures int
	window      time.Duration
}

func NewTwoFactorThrottle(store AggregateStoreTx, maxFailures int, window time.Duration) *TwoFactorThrottle {
	return &TwoFactorThrottle{
		store:       store,
		maxFailures: maxFailures,
		window:      window,
	}
}

func (t *TwoFactorThrottle) RecordFailure(ctx context.Context, ip, userAgent string) error {
	return t.store.CreateLoginAttempt(ctx, newLoginAttempt(model.LoginAttemptArgs{
		IpAddress: ip,
		Kind:      model.AttemptTwoFactor,
		UserAgent: userAgent,
	}))
}

func (t *TwoFactorThrottle) IsIPBlocked(ctx context.Context, ip string) (bool, error) {
	count, err := t.store.CountFailedTwoFactorAttemptsSince(ctx, ip, timeNow().Add(-t.window))
	if err != nil {
		return false, fmt.Errorf("failed to count failed two-factor attempts: %w", err)
	}
	return count >= int64(t.maxFailures), nil
}

func (t *TwoFactorThrottle) BlockTimeRemaining(ctx context.Context, ip string) (*int, error) {
	now := timeNow()
	latest, err := t.store.GetLatestFailedTwoFactorAttemptSince(ctx, ip, now.Add(-t.window))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest failed two-factor attempt: %w", err)
	}
	return remainingMinutes(latest, t.window, now), nil
}
