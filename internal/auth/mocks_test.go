package auth

import (
	"context"
	"testing"
	"time"

	"github.com/hivemindd/admin-auth/internal/audit"
	"github.com/hivemindd/admin-auth/internal/model"
	"github.com/stretchr/testify/mock"
)

// --- Mock Store ---
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateLoginAttempt(ctx context.Context, attempt *model.LoginAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockStore) CountFailedLoginAttemptsSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	args := m.Called(ctx, ip, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) GetLatestFailedLoginAttemptSince(ctx context.Context, ip string, since time.Time) (*model.LoginAttempt, error) {
	args := m.Called(ctx, ip, since)
	attempt, _ := args.Get(0).(*model.LoginAttempt)
	return attempt, args.Error(1)
}

func (m *MockStore) CountFailedTwoFactorAttemptsSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	args := m.Called(ctx, ip, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) GetLatestFailedTwoFactorAttemptSince(ctx context.Context, ip string, since time.Time) (*model.LoginAttempt, error) {
	args := m.Called(ctx, ip, since)
	attempt, _ := args.Get(0).(*model.LoginAttempt)
	return attempt, args.Error(1)
}

func (m *MockStore) DeleteFailedLoginAttempts(ctx context.Context, ip string) (int64, error) {
	args := m.Called(ctx, ip)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) DeleteLoginAttemptsBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) InTx(ctx context.Context, f TxF) error {
	return f(ctx, m)
}

// --- Mock Session Repository ---
type MockSessionRepo struct {
	mock.Mock
}

func (m *MockSessionRepo) CreateSession(ctx context.Context, session *model.AdminSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepo) GetSession(ctx context.Context, sessionID string) (*model.AdminSession, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*model.AdminSession)
	return session, args.Error(1)
}

func (m *MockSessionRepo) ConfirmSessionTwoFactor(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockSessionRepo) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	args := m.Called(ctx, sessionID, at)
	return args.Error(0)
}

func (m *MockSessionRepo) IncrementSessionTwoFactorFailures(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *MockSessionRepo) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockSessionRepo) DeleteSessionsIdleSince(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock Audit Recorder ---
type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) Record(ctx context.Context, entry audit.Entry) {
	m.Called(ctx, entry)
}

// --- Mock Email Sender ---
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendIPBlockedAlert(ctx context.Context, alert *model.IPBlockedAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func auditAction(action string) interface{} {
	return mock.MatchedBy(func(e audit.Entry) bool { return e.Action == action })
}

func fixedClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = prev })
}
