package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/hivemindd/admin-auth/internal/model"
)

const (
	sessionTokenLength = 64
	tokenAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxTokenAttempts   = 3
)

// SessionManager owns the admin session lifecycle. A session is only ever
// handed out while now - LastActivity < lifetime.
type SessionManager struct {
	repo     SessionRepository
	lifetime time.Duration
	newToken func() (string, error)
}

func NewSessionManager(repo SessionRepository, lifetime time.Duration) *SessionManager {
	return &SessionManager{
		repo:     repo,
		lifetime: lifetime,
		newToken: generateSessionToken,
	}
}

func (m *SessionManager) Lifetime() time.Duration {
	return m.lifetime
}

// Create persists a new session and returns its opaque token. A token
// collision is retried with a fresh token and never reuses the other row.
func (m *SessionManager) Create(ctx context.Context, args model.CreateSessionArgs) (string, error) {
	for i := 0; i < maxTokenAttempts; i++ {
		token, err := m.newToken()
		if err != nil {
			return "", fmt.Errorf("failed to generate session token: %w", err)
		}

		now := timeNow()
		err = m.repo.CreateSession(ctx, &model.AdminSession{
			SessionID:          token,
			IpAddress:          args.IpAddress,
			UserAgent:          args.UserAgent,
			LastActivity:       now,
			TwoFactorConfirmed: args.TwoFactorConfirmed,
			CreatedAt:          now,
		})
		if errors.Is(err, ErrDuplicateToken) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create admin session: %w", err)
		}
		return token, nil
	}
	return "", fmt.Errorf("failed to create admin session after %d attempts: %w", maxTokenAttempts, ErrDuplicateToken)
}

// Get returns nil, nil for unknown and expired tokens alike. Expired rows
// are deleted on sight.
func (m *SessionManager) Get(ctx context.Context, token string) (*model.AdminSession, error) {
	if token == "" {
		return nil, nil
	}
	session, err := m.repo.GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin session: %w", err)
	}
	if session == nil {
		return nil, nil
	}
	if session.IsExpired(timeNow(), m.lifetime) {
		if err := m.repo.DeleteSession(ctx, token); err != nil {
			return nil, fmt.Errorf("failed to delete expired admin session: %w", err)
		}
		return nil, nil
	}
	return session, nil
}

// ConfirmTwoFactor flips the confirmed flag. There is no way back.
func (m *SessionManager) ConfirmTwoFactor(ctx context.Context, session *model.AdminSession) error {
	if session.TwoFactorConfirmed {
		return nil
	}
	if err := m.repo.ConfirmSessionTwoFactor(ctx, session.SessionID); err != nil {
		return fmt.Errorf("failed to confirm admin session: %w", err)
	}
	session.TwoFactorConfirmed = true
	return nil
}

func (m *SessionManager) Touch(ctx context.Context, session *model.AdminSession) error {
	now := timeNow()
	if err := m.repo.TouchSession(ctx, session.SessionID, now); err != nil {
		return fmt.Errorf("failed to touch admin session: %w", err)
	}
	session.LastActivity = now
	return nil
}

// RecordTwoFactorFailure returns the session's failed code count so far.
func (m *SessionManager) RecordTwoFactorFailure(ctx context.Context, session *model.AdminSession) (int, error) {
	n, err := m.repo.IncrementSessionTwoFactorFailures(ctx, session.SessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to count two-factor failure: %w", err)
	}
	session.TwoFactorFailures = n
	return n, nil
}

func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.repo.DeleteSession(ctx, token)
}

func (m *SessionManager) CleanupExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteSessionsIdleSince(ctx, timeNow().Add(-m.lifetime))
}

// generateSessionToken draws sessionTokenLength characters uniformly from
// tokenAlphabet using rejection sampling over crypto/rand bytes.
func generateSessionToken() (string, error) {
	const limit = 256 - 256%len(tokenAlphabet)

	token := make([]byte, 0, sessionTokenLength)
	buf := make([]byte, sessionTokenLength*2)
	for len(token) < sessionTokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			token = append(token, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(token) == sessionTokenLength {
				break
			}
		}
	}
	return string(token), nil
}
