package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hivemindd/admin-auth/config"
	"github.com/hivemindd/admin-auth/internal/audit"
	"github.com/hivemindd/admin-auth/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUsername = "root"
	testPassword = "correct horse battery staple"
	testSecret   = "JBSWY3DPEHPK3PXP"
	testIP       = "198.51.100.23"
	testUA       = "Mozilla/5.0"
	// throttledIP has no default two-factor history, so tests using it set
	// their own.
	throttledIP = "203.0.113.77"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testClient struct {
	client   *AuthClient
	store    *MockStore
	sessions *MockSessionRepo
	auditor  *MockAuditRecorder
	email    *MockEmailSender
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	fixedClock(t, testNow)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	tc := &testClient{
		store:    new(MockStore),
		sessions: new(MockSessionRepo),
		auditor:  new(MockAuditRecorder),
		email:    new(MockEmailSender),
	}
	tc.client = NewAuthService(
		tc.store,
		tc.sessions,
		tc.auditor,
		tc.email,
		zap.NewNop(),
		config.Admin{
			Username:        testUsername,
			PasswordHash:    string(hash),
			TwoFactorSecret: testSecret,
		},
	)
	tc.store.On("CountFailedTwoFactorAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(0), nil).Maybe()
	return tc
}

func loginArgs(password string) model.AdminLoginArgs {
	return model.AdminLoginArgs{
		Username:  testUsername,
		Password:  password,
		IpAddress: testIP,
		UserAgent: testUA,
	}
}

func pendingSession(token string) *model.AdminSession {
	return &model.AdminSession{
		SessionID:    token,
		IpAddress:    testIP,
		UserAgent:    testUA,
		LastActivity: testNow.Add(-time.Minute),
		CreatedAt:    testNow.Add(-time.Minute),
	}
}

func TestAuthClient_Login_Success(t *testing.T) {
	tc := newTestClient(t)
	ctx := context.Background()

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, testNow.Add(-time.Hour)).Return(int64(0), nil)
	tc.sessions.On("CreateSession", mock.Anything, mock.MatchedBy(func(s *model.AdminSession) bool {
		return len(s.SessionID) == sessionTokenLength &&
			!s.TwoFactorConfirmed &&
			s.IpAddress == testIP &&
			s.LastActivity.Equal(testNow)
	})).Return(nil)
	tc.auditor.On("Record", mock.MatchedBy(func(ctx context.Context) bool {
		return audit.RequestInfoFrom(ctx).IpAddress == testIP
	}), auditAction(model.ActionAdminLoginStep1)).Return()

	token, err := tc.client.Login(ctx, loginArgs(testPassword))

	require.NoError(t, err)
	assert.Len(t, token, sessionTokenLength)
	tc.store.AssertNotCalled(t, "CreateLoginAttempt", mock.Anything, mock.Anything)
	tc.store.AssertExpectations(t)
	tc.sessions.AssertExpectations(t)
	tc.auditor.AssertExpectations(t)
}

func TestAuthClient_Login_InvalidCredentials(t *testing.T) {
	tc := newTestClient(t)
	ctx := context.Background()

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(0), nil).Once()
	tc.store.On("CreateLoginAttempt", mock.Anything, mock.MatchedBy(func(a *model.LoginAttempt) bool {
		return a.IpAddress == testIP && a.Kind == model.AttemptPassword && !a.Successful &&
			*a.Username == testUsername && a.CreatedAt.Equal(testNow)
	})).Return(nil)
	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(1), nil).Once()
	tc.auditor.On("Record", mock.Anything, mock.MatchedBy(func(e audit.Entry) bool {
		return e.Action == model.ActionAdminLoginFailed &&
			e.Status == model.AuditStatusFailed &&
			e.Metadata["username"] == testUsername &&
			e.Metadata["ip"] == testIP
	})).Return()

	token, err := tc.client.Login(ctx, loginArgs("wrong"))

	assert.Empty(t, token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	tc.sessions.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	tc.email.AssertNotCalled(t, "SendIPBlockedAlert", mock.Anything, mock.Anything)
	tc.store.AssertExpectations(t)
	tc.auditor.AssertExpectations(t)
}

func TestAuthClient_Login_WrongUsername(t *testing.T) {
	tc := newTestClient(t)

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(0), nil)
	tc.store.On("CreateLoginAttempt", mock.Anything, mock.Anything).Return(nil)
	tc.auditor.On("Record", mock.Anything, auditAction(model.ActionAdminLoginFailed)).Return()

	args := loginArgs(testPassword)
	args.Username = "admin"
	_, err := tc.client.Login(context.Background(), args)

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthClient_Login_ThirdFailureBlocksIP(t *testing.T) {
	tc := newTestClient(t)
	ctx := context.Background()

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(2), nil).Once()
	tc.store.On("CreateLoginAttempt", mock.Anything, mock.Anything).Return(nil).Once()
	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(3), nil)
	tc.store.On("GetLatestFailedLoginAttemptSince", mock.Anything, testIP, mock.Anything).
		Return(&model.LoginAttempt{IpAddress: testIP, CreatedAt: testNow}, nil)
	tc.auditor.On("Record", mock.Anything, auditAction(model.ActionAdminLoginFailed)).Return().Once()
	tc.email.On("SendIPBlockedAlert", mock.Anything, mock.MatchedBy(func(a *model.IPBlockedAlert) bool {
		return a.IpAddress == testIP && a.Reason == model.AttemptPassword &&
			a.FailedAttempts == 3 && a.RemainingMinutes == 60
	})).Return(nil).Once()

	_, err := tc.client.Login(ctx, loginArgs("wrong"))

	blocked, ok := IsBlocked(err)
	require.True(t, ok)
	assert.Equal(t, 60, blocked.RemainingMinutes)

	// Correct credentials are not even checked while blocked.
	_, err = tc.client.Login(ctx, loginArgs(testPassword))

	blocked, ok = IsBlocked(err)
	require.True(t, ok)
	assert.Equal(t, 60, blocked.RemainingMinutes)
	tc.store.AssertNumberOfCalls(t, "CreateLoginAttempt", 1)
	tc.sessions.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	tc.store.AssertExpectations(t)
	tc.email.AssertExpectations(t)
	tc.auditor.AssertExpectations(t)
}

func TestAuthClient_Login_AlertFailureStillBlocks(t *testing.T) {
	tc := newTestClient(t)

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(2), nil).Once()
	tc.store.On("CreateLoginAttempt", mock.Anything, mock.Anything).Return(nil)
	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(3), nil)
	tc.store.On("GetLatestFailedLoginAttemptSince", mock.Anything, testIP, mock.Anything).
		Return(&model.LoginAttempt{IpAddress: testIP, CreatedAt: testNow.Add(-10 * time.Minute)}, nil)
	tc.auditor.On("Record", mock.Anything, mock.Anything).Return()
	tc.email.On("SendIPBlockedAlert", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	_, err := tc.client.Login(context.Background(), loginArgs("wrong"))

	blocked, ok := IsBlocked(err)
	require.True(t, ok)
	assert.Equal(t, 50, blocked.RemainingMinutes)
}

func TestAuthClient_Login_StoreFails(t *testing.T) {
	tc := newTestClient(t)

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(0), errors.New("db failure"))

	_, err := tc.client.Login(context.Background(), loginArgs(testPassword))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db failure")
	assert.False(t, IsUserError(err))
	tc.sessions.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestAuthClient_Login_Unconfigured(t *testing.T) {
	fixedClock(t, testNow)
	store := new(MockStore)
	auditor := new(MockAuditRecorder)
	client := NewAuthService(store, new(MockSessionRepo), auditor, nil, zap.NewNop(), config.Admin{})

	store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(0), nil)
	store.On("CountFailedTwoFactorAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(0), nil)
	store.On("CreateLoginAttempt", mock.Anything, mock.Anything).Return(nil)
	auditor.On("Record", mock.Anything, auditAction(model.ActionAdminLoginFailed)).Return()

	_, err := client.Login(context.Background(), model.AdminLoginArgs{IpAddress: testIP})

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, client.Configured())
}

func TestAuthClient_VerifyTwoFactor_Success(t *testing.T) {
	tc := newTestClient(t)
	token := "pending-token"
	code, err := GenerateTOTPCode(testSecret, testNow)
	require.NoError(t, err)

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(2), nil)
	tc.sessions.On("GetSession", mock.Anything, token).Return(pendingSession(token), nil)
	tc.sessions.On("ConfirmSessionTwoFactor", mock.Anything, token).Return(nil)
	tc.store.On("CreateLoginAttempt", mock.Anything, mock.MatchedBy(func(a *model.LoginAttempt) bool {
		return a.Successful && a.IpAddress == testIP
	})).Return(nil)
	tc.store.On("DeleteFailedLoginAttempts", mock.Anything, testIP).Return(int64(2), nil)
	tc.auditor.On("Record", mock.Anything, auditAction(model.ActionAdminLoginSuccess)).Return()

	err = tc.client.VerifyTwoFactor(context.Background(), model.TwoFactorArgs{
		SessionID: token,
		Code:      code,
		IpAddress: testIP,
		UserAgent: testUA,
	})

	require.NoError(t, err)
	tc.store.AssertExpectations(t)
	tc.sessions.AssertExpectations(t)
	tc.auditor.AssertExpectations(t)
}

func TestAuthClient_VerifyTwoFactor_InvalidCode(t *testing.T) {
	tc := newTestClient(t)
	token := "pending-token"

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(0), nil)
	tc.sessions.On("GetSession", mock.Anything, token).Return(pendingSession(token), nil)
	tc.sessions.On("IncrementSessionTwoFactorFailures", mock.Anything, token).Return(1, nil)
	tc.store.On("CreateLoginAttempt", mock.Anything, mock.MatchedBy(func(a *model.LoginAttempt) bool {
		return a.IpAddress == testIP && a.Kind == model.AttemptTwoFactor && !a.Successful
	})).Return(nil).Once()
	tc.auditor.On("Record", mock.Anything, mock.MatchedBy(func(e audit.Entry) bool {
		return e.Action == model.ActionAdmin2FAFailed && e.Status == model.AuditStatusFailed
	})).Return()

	err := tc.client.VerifyTwoFactor(context.Background(), model.TwoFactorArgs{
		SessionID: token,
		Code:      "000000",
		IpAddress: testIP,
	})

	assert.ErrorIs(t, err, ErrInvalidCode)
	// A wrong code is kept apart from the password ledger.
	tc.store.AssertExpectations(t)
	tc.store.AssertNotCalled(t, "DeleteFailedLoginAttempts", mock.Anything, mock.Anything)
	tc.sessions.AssertNotCalled(t, "ConfirmSessionTwoFactor", mock.Anything, mock.Anything)
	tc.sessions.AssertNotCalled(t, "DeleteSession", mock.Anything, mock.Anything)
	tc.auditor.AssertExpectations(t)
}

func TestAuthClient_VerifyTwoFactor_LocksAfterMaxAttempts(t *testing.T) {
	tc := newTestClient(t)
	token := "pending-token"

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(0), nil)
	tc.sessions.On("GetSession", mock.Anything, token).Return(pendingSession(token), nil)
	tc.sessions.On("IncrementSessionTwoFactorFailures", mock.Anything, token).Return(5, nil)
	tc.store.On("CreateLoginAttempt", mock.Anything, mock.Anything).Return(nil)
	tc.sessions.On("DeleteSession", mock.Anything, token).Return(nil)
	tc.auditor.On("Record", mock.Anything, auditAction(model.ActionAdmin2FAFailed)).Return()
	tc.auditor.On("Record", mock.Anything, mock.MatchedBy(func(e audit.Entry) bool {
		return e.Action == model.ActionAdmin2FALocked && e.Metadata["attempts"] == 5 && e.Metadata["ip_blocked"] == false
	})).Return()

	err := tc.client.VerifyTwoFactor(context.Background(), model.TwoFactorArgs{
		SessionID: token,
		Code:      "12345a",
		IpAddress: testIP,
	})

	assert.ErrorIs(t, err, ErrTwoFactorLocked)
	tc.sessions.AssertExpectations(t)
	tc.auditor.AssertExpectations(t)
}

func TestAuthClient_VerifyTwoFactor_NoPendingSession(t *testing.T) {
	tc := newTestClient(t)
	code, err := GenerateTOTPCode(testSecret, testNow)
	require.NoError(t, err)

	confirmed := pendingSession("confirmed-token")
	confirmed.TwoFactorConfirmed = true

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(0), nil)
	tc.sessions.On("GetSession", mock.Anything, "missing-token").Return(nil, nil)
	tc.sessions.On("GetSession", mock.Anything, "confirmed-token").Return(confirmed, nil)

	for _, token := range []string{"", "missing-token", "confirmed-token"} {
		err := tc.client.VerifyTwoFactor(context.Background(), model.TwoFactorArgs{
			SessionID: token,
			Code:      code,
			IpAddress: testIP,
		})
		assert.ErrorIs(t, err, ErrSessionNotFound, token)
	}
	tc.auditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestAuthClient_VerifyTwoFactor_Blocked(t *testing.T) {
	tc := newTestClient(t)

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, testIP, mock.Anything).Return(int64(3), nil)
	tc.store.On("GetLatestFailedLoginAttemptSince", mock.Anything, testIP, mock.Anything).
		Return(&model.LoginAttempt{CreatedAt: testNow.Add(-59*time.Minute - 30*time.Second)}, nil)

	err := tc.client.VerifyTwoFactor(context.Background(), model.TwoFactorArgs{
		SessionID: "pending-token",
		Code:      "123456",
		IpAddress: testIP,
	})

	blocked, ok := IsBlocked(err)
	require.True(t, ok)
	assert.Equal(t, 1, blocked.RemainingMinutes)
	tc.sessions.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
}

func TestAuthClient_VerifyTwoFactor_ThrottleBlocksIP(t *testing.T) {
	tc := newTestClient(t)
	token := "pending-token"
	session := pendingSession(token)
	session.IpAddress = throttledIP

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, throttledIP, mock.Anything).Return(int64(0), nil)
	tc.store.On("CountFailedTwoFactorAttemptsSince", mock.Anything, throttledIP, testNow.Add(-time.Hour)).Return(int64(9), nil).Once()
	tc.sessions.On("GetSession", mock.Anything, token).Return(session, nil)
	tc.sessions.On("IncrementSessionTwoFactorFailures", mock.Anything, token).Return(2, nil)
	tc.store.On("CreateLoginAttempt", mock.Anything, mock.MatchedBy(func(a *model.LoginAttempt) bool {
		return a.IpAddress == throttledIP && a.Kind == model.AttemptTwoFactor
	})).Return(nil).Once()
	tc.store.On("CountFailedTwoFactorAttemptsSince", mock.Anything, throttledIP, testNow.Add(-time.Hour)).Return(int64(10), nil)
	tc.store.On("GetLatestFailedTwoFactorAttemptSince", mock.Anything, throttledIP, mock.Anything).
		Return(&model.LoginAttempt{IpAddress: throttledIP, Kind: model.AttemptTwoFactor, CreatedAt: testNow}, nil)
	tc.sessions.On("DeleteSession", mock.Anything, token).Return(nil)
	tc.auditor.On("Record", mock.Anything, auditAction(model.ActionAdmin2FAFailed)).Return()
	tc.auditor.On("Record", mock.Anything, mock.MatchedBy(func(e audit.Entry) bool {
		return e.Action == model.ActionAdmin2FALocked && e.Metadata["ip_blocked"] == true
	})).Return()
	tc.email.On("SendIPBlockedAlert", mock.Anything, mock.MatchedBy(func(a *model.IPBlockedAlert) bool {
		return a.IpAddress == throttledIP && a.Reason == model.AttemptTwoFactor &&
			a.FailedAttempts == 10 && a.RemainingMinutes == 60 && a.BlockedAt.Equal(testNow)
	})).Return(nil).Once()

	err := tc.client.VerifyTwoFactor(context.Background(), model.TwoFactorArgs{
		SessionID: token,
		Code:      "000000",
		IpAddress: throttledIP,
	})

	blocked, ok := IsBlocked(err)
	require.True(t, ok)
	assert.Equal(t, 60, blocked.RemainingMinutes)
	tc.store.AssertExpectations(t)
	tc.sessions.AssertExpectations(t)
	tc.auditor.AssertExpectations(t)
	tc.email.AssertExpectations(t)
}

func TestAuthClient_Login_RefusedWhileTwoFactorThrottled(t *testing.T) {
	tc := newTestClient(t)

	tc.store.On("CountFailedLoginAttemptsSince", mock.Anything, throttledIP, mock.Anything).Return(int64(0), nil)
	tc.store.On("CountFailedTwoFactorAttemptsSince", mock.Anything, throttledIP, mock.Anything).Return(int64(10), nil)
	tc.store.On("GetLatestFailedTwoFactorAttemptSince", mock.Anything, throttledIP, mock.Anything).
		Return(&model.LoginAttempt{CreatedAt: testNow.Add(-15 * time.Minute)}, nil)

	args := loginArgs(testPassword)
	args.IpAddress = throttledIP
	_, err := tc.client.Login(context.Background(), args)

	blocked, ok := IsBlocked(err)
	require.True(t, ok)
	assert.Equal(t, 45, blocked.RemainingMinutes)
	tc.sessions.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	tc.store.AssertNotCalled(t, "CreateLoginAttempt", mock.Anything, mock.Anything)
	tc.auditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestAuthClient_Logout(t *testing.T) {
	tc := newTestClient(t)

	tc.auditor.On("Record", mock.Anything, auditAction(model.ActionAdminLogout)).Return()
	tc.sessions.On("DeleteSession", mock.Anything, "live-token").Return(nil)

	err := tc.client.Logout(context.Background(), model.LogoutArgs{SessionID: "live-token", IpAddress: testIP})

	require.NoError(t, err)
	tc.auditor.AssertExpectations(t)
	tc.sessions.AssertExpectations(t)
}

func TestAuthClient_Logout_NoSession(t *testing.T) {
	tc := newTestClient(t)
	tc.auditor.On("Record", mock.Anything, auditAction(model.ActionAdminLogout)).Return()

	err := tc.client.Logout(context.Background(), model.LogoutArgs{IpAddress: testIP})

	require.NoError(t, err)
	tc.sessions.AssertNotCalled(t, "DeleteSession", mock.Anything, mock.Anything)
}

func TestAuthClient_State(t *testing.T) {
	tc := newTestClient(t)

	confirmed := pendingSession("full")
	confirmed.TwoFactorConfirmed = true
	expired := pendingSession("stale")
	expired.LastActivity = testNow.Add(-30 * time.Minute)

	tc.sessions.On("GetSession", mock.Anything, "pending").Return(pendingSession("pending"), nil)
	tc.sessions.On("GetSession", mock.Anything, "full").Return(confirmed, nil)
	tc.sessions.On("GetSession", mock.Anything, "stale").Return(expired, nil)
	tc.sessions.On("GetSession", mock.Anything, "unknown").Return(nil, nil)
	tc.sessions.On("DeleteSession", mock.Anything, "stale").Return(nil)

	cases := map[string]State{
		"":        StateAnonymous,
		"unknown": StateAnonymous,
		"stale":   StateAnonymous,
		"pending": StatePasswordConfirmed,
		"full":    StateFullyAuthenticated,
	}
	for token, want := range cases {
		state, session, err := tc.client.State(context.Background(), token)
		require.NoError(t, err, token)
		assert.Equal(t, want, state, token)
		assert.Equal(t, want != StateAnonymous, session != nil, token)
	}
	tc.sessions.AssertCalled(t, "DeleteSession", mock.Anything, "stale")
}

func TestAuthClient_CleanupExpiredSessions(t *testing.T) {
	tc := newTestClient(t)
	tc.sessions.On("DeleteSessionsIdleSince", mock.Anything, testNow.Add(-30*time.Minute)).Return(int64(4), nil)

	n, err := tc.client.CleanupExpiredSessions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestAuthClient_PruneLoginAttempts(t *testing.T) {
	tc := newTestClient(t)
	tc.store.On("DeleteLoginAttemptsBefore", mock.Anything, testNow.Add(-24*time.Hour)).Return(int64(9), nil)

	n, err := tc.client.PruneLoginAttempts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(&BlockedError{IP: testIP, RemainingMinutes: 3}))
	assert.True(t, IsUserError(ErrInvalidCode))
	assert.True(t, IsUserError(ErrTwoFactorLocked))
	assert.False(t, IsUserError(errors.New("db failure")))
	assert.False(t, IsUserError(nil))
}
