package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/hivemindd/admin-auth/config"
	"github.com/hivemindd/admin-auth/internal/audit"
	"github.com/hivemindd/admin-auth/internal/metrics"
	"github.com/hivemindd/admin-auth/internal/model"

	"go.uber.org/zap"
)

// State is the authentication state of a session token, derived from the
// session store on every call.
type State int

const (
	StateAnonymous State = iota
	StatePasswordConfirmed
	StateFullyAuthenticated
)

func (s State) String() string {
	switch s {
	case StatePasswordConfirmed:
		return "password_confirmed"
	case StateFullyAuthenticated:
		return "fully_authenticated"
	}
	return "anonymous"
}

// AuditRecorder writes audit entries. It must not fail the caller.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type EmailSender interface {
	SendIPBlockedAlert(ctx context.Context, alert *model.IPBlockedAlert) error
}

type AuthClient struct {
	ledger               *Ledger
	throttle             *TwoFactorThrottle
	sessions             *SessionManager
	credentials          *CredentialValidator
	totp                 *TOTPVerifier
	auditor              AuditRecorder
	emailSender          EmailSender
	logger               *zap.Logger
	maxLoginAttempts     int
	maxTwoFactorAttempts int
	maxTwoFactorIPFails  int
}

// NewAuthService wires the admin login flow. emailSender may be nil, in
// which case no IP block alert is sent.
func NewAuthService(
	store AggregateStoreTx,
	sessions SessionRepository,
	auditor AuditRecorder,
	emailSender EmailSender,
	logger *zap.Logger,
	admin config.Admin,
) *AuthClient {
	admin = admin.Defaults()
	return &AuthClient{
		ledger:               NewLedger(store, admin.MaxLoginAttempts, admin.BlockWindow()),
		throttle:             NewTwoFactorThrottle(store, admin.MaxTwoFactorIPFails, admin.BlockWindow()),
		sessions:             NewSessionManager(sessions, admin.Lifetime()),
		credentials:          NewCredentialValidator(admin),
		totp:                 NewTOTPVerifier(admin.TwoFactorSecret),
		auditor:              auditor,
		emailSender:          emailSender,
		logger:               logger,
		maxLoginAttempts:     admin.MaxLoginAttempts,
		maxTwoFactorAttempts: admin.MaxTwoFactorAttempts,
		maxTwoFactorIPFails:  admin.MaxTwoFactorIPFails,
	}
}

// SessionMaxAge is the cookie Max-Age in seconds.
func (a *AuthClient) SessionMaxAge() int {
	return int(a.sessions.Lifetime().Seconds())
}

// Configured reports whether both login factors are set up.
func (a *AuthClient) Configured() bool {
	return a.credentials.Configured() && a.totp.Configured()
}

// CheckIP returns a *BlockedError while ip has too many recent failed
// logins or too many recent wrong two-factor codes.
func (a *AuthClient) CheckIP(ctx context.Context, ip string) error {
	blocked, err := a.ledger.IsIPBlocked(ctx, ip)
	if err != nil {
		a.logger.Error("failed to check ip block: ", zap.Error(err))
		return err
	}
	if blocked {
		remaining, err := a.ledger.BlockTimeRemaining(ctx, ip)
		if err != nil {
			a.logger.Error("failed to get block time remaining: ", zap.Error(err))
			return err
		}
		return newBlockedError(ip, remaining)
	}

	throttled, err := a.twoFactorBlock(ctx, ip)
	if err != nil {
		return err
	}
	if throttled != nil {
		return throttled
	}
	return nil
}

func (a *AuthClient) twoFactorBlock(ctx context.Context, ip string) (*BlockedError, error) {
	blocked, err := a.throttle.IsIPBlocked(ctx, ip)
	if err != nil {
		a.logger.Error("failed to check two-factor throttle: ", zap.Error(err))
		return nil, err
	}
	if !blocked {
		return nil, nil
	}

	remaining, err := a.throttle.BlockTimeRemaining(ctx, ip)
	if err != nil {
		a.logger.Error("failed to get two-factor block time remaining: ", zap.Error(err))
		return nil, err
	}
	return newBlockedError(ip, remaining), nil
}

func newBlockedError(ip string, remaining *int) *BlockedError {
	minutes := 1
	if remaining != nil {
		minutes = *remaining
	}
	return &BlockedError{IP: ip, RemainingMinutes: minutes}
}

// Login checks the password step and returns the token of a session that
// still awaits its two-factor code.
func (a *AuthClient) Login(ctx context.Context, args model.AdminLoginArgs) (string, error) {
	ctx = withRequest(ctx, args.IpAddress, args.UserAgent)

	if err := a.CheckIP(ctx, args.IpAddress); err != nil {
		if _, ok := IsBlocked(err); ok {
			metrics.LoginAttempts.WithLabelValues(metrics.OutcomeBlocked).Inc()
		}
		return "", err
	}

	if !a.credentials.Validate(args.Username, args.Password) {
		return "", a.loginFailed(ctx, args)
	}

	token, err := a.sessions.Create(ctx, model.CreateSessionArgs{
		IpAddress: args.IpAddress,
		UserAgent: args.UserAgent,
	})
	if err != nil {
		a.logger.Error("failed to create admin session: ", zap.Error(err))
		return "", err
	}

	metrics.LoginAttempts.WithLabelValues(metrics.OutcomeStep1).Inc()
	a.auditor.Record(ctx, audit.Entry{
		Action:   model.ActionAdminLoginStep1,
		Metadata: map[string]any{"ip": args.IpAddress},
	})
	return token, nil
}

func (a *AuthClient) loginFailed(ctx context.Context, args model.AdminLoginArgs) error {
	err := a.ledger.Record(ctx, model.LoginAttemptArgs{
		IpAddress: args.IpAddress,
		UserAgent: args.UserAgent,
		Username:  args.Username,
	})
	if err != nil {
		a.logger.Error("failed to record login attempt: ", zap.Error(err))
		return err
	}

	metrics.LoginAttempts.WithLabelValues(metrics.OutcomeFailed).Inc()
	a.auditor.Record(ctx, audit.Entry{
		Action: model.ActionAdminLoginFailed,
		Status: model.AuditStatusFailed,
		Metadata: map[string]any{
			"username": args.Username,
			"ip":       args.IpAddress,
		},
	})

	err = a.CheckIP(ctx, args.IpAddress)
	blocked, ok := IsBlocked(err)
	if !ok {
		if err != nil {
			return err
		}
		return ErrInvalidCredentials
	}

	metrics.IPBlocks.Inc()
	a.logger.Warn("admin ip blocked after failed logins",
		zap.String("ip", args.IpAddress),
		zap.Int("remaining_minutes", blocked.RemainingMinutes))
	a.sendBlockedAlert(ctx, &model.IPBlockedAlert{
		IpAddress:        args.IpAddress,
		UserAgent:        args.UserAgent,
		Username:         args.Username,
		Reason:           model.AttemptPassword,
		FailedAttempts:   a.maxLoginAttempts,
		RemainingMinutes: blocked.RemainingMinutes,
	})
	return blocked
}

func (a *AuthClient) sendBlockedAlert(ctx context.Context, alert *model.IPBlockedAlert) {
	if a.emailSender == nil {
		return
	}
	alert.BlockedAt = timeNow()
	err := a.emailSender.SendIPBlockedAlert(ctx, alert)
	if err != nil {
		a.logger.Warn("failed to send ip blocked alert: ", zap.Error(err))
	}
}

// VerifyTwoFactor completes the login of a pending session.
func (a *AuthClient) VerifyTwoFactor(ctx context.Context, args model.TwoFactorArgs) error {
	ctx = withRequest(ctx, args.IpAddress, args.UserAgent)

	if err := a.CheckIP(ctx, args.IpAddress); err != nil {
		return err
	}

	session, err := a.sessions.Get(ctx, args.SessionID)
	if err != nil {
		a.logger.Error("failed to get admin session: ", zap.Error(err))
		return err
	}
	if session == nil || session.TwoFactorConfirmed {
		return ErrSessionNotFound
	}

	if !a.totp.Verify(args.Code) {
		return a.twoFactorFailed(ctx, session, args)
	}

	if err := a.sessions.ConfirmTwoFactor(ctx, session); err != nil {
		a.logger.Error("failed to confirm two-factor: ", zap.Error(err))
		return err
	}

	// The session is already elevated here; a ledger failure only leaves
	// stale failed attempts behind.
	err = a.ledger.RecordSuccess(ctx, model.LoginAttemptArgs{
		IpAddress: args.IpAddress,
		UserAgent: args.UserAgent,
	})
	if err != nil {
		a.logger.Error("failed to record successful login: ", zap.Error(err))
	}

	metrics.LoginAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	a.auditor.Record(ctx, audit.Entry{
		Action:   model.ActionAdminLoginSuccess,
		Metadata: map[string]any{"ip": args.IpAddress},
	})
	return nil
}

func (a *AuthClient) twoFactorFailed(ctx context.Context, session *model.AdminSession, args model.TwoFactorArgs) error {
	metrics.TwoFactorFailures.Inc()
	a.auditor.Record(ctx, audit.Entry{
		Action:   model.ActionAdmin2FAFailed,
		Status:   model.AuditStatusFailed,
		Metadata: map[string]any{"ip": args.IpAddress},
	})

	failures, err := a.sessions.RecordTwoFactorFailure(ctx, session)
	if err != nil {
		a.logger.Error("failed to record two-factor failure: ", zap.Error(err))
		return err
	}
	if err := a.throttle.RecordFailure(ctx, args.IpAddress, args.UserAgent); err != nil {
		a.logger.Error("failed to record two-factor attempt: ", zap.Error(err))
		return err
	}
	blocked, err := a.twoFactorBlock(ctx, args.IpAddress)
	if err != nil {
		return err
	}
	if blocked == nil && failures < a.maxTwoFactorAttempts {
		return ErrInvalidCode
	}

	if err := a.sessions.Destroy(ctx, session.SessionID); err != nil {
		a.logger.Error("failed to destroy locked admin session: ", zap.Error(err))
		return err
	}
	a.auditor.Record(ctx, audit.Entry{
		Action: model.ActionAdmin2FALocked,
		Status: model.AuditStatusFailed,
		Metadata: map[string]any{
			"ip":         args.IpAddress,
			"attempts":   failures,
			"ip_blocked": blocked != nil,
		},
	})
	if blocked == nil {
		return ErrTwoFactorLocked
	}

	metrics.IPBlocks.Inc()
	a.logger.Warn("admin ip blocked after wrong two-factor codes",
		zap.String("ip", args.IpAddress),
		zap.Int("remaining_minutes", blocked.RemainingMinutes))
	a.sendBlockedAlert(ctx, &model.IPBlockedAlert{
		IpAddress:        args.IpAddress,
		UserAgent:        args.UserAgent,
		Reason:           model.AttemptTwoFactor,
		FailedAttempts:   a.maxTwoFactorIPFails,
		RemainingMinutes: blocked.RemainingMinutes,
	})
	return blocked
}

func (a *AuthClient) Logout(ctx context.Context, args model.LogoutArgs) error {
	ctx = withRequest(ctx, args.IpAddress, args.UserAgent)

	a.auditor.Record(ctx, audit.Entry{
		Action:   model.ActionAdminLogout,
		Metadata: map[string]any{"ip": args.IpAddress},
	})
	if err := a.sessions.Destroy(ctx, args.SessionID); err != nil {
		a.logger.Error("failed to destroy admin session: ", zap.Error(err))
		return err
	}
	return nil
}

// State resolves token against the store. Expired sessions are removed
// and reported as anonymous.
func (a *AuthClient) State(ctx context.Context, token string) (State, *model.AdminSession, error) {
	session, err := a.sessions.Get(ctx, token)
	if err != nil {
		a.logger.Error("failed to get admin session: ", zap.Error(err))
		return StateAnonymous, nil, err
	}
	switch {
	case session == nil:
		return StateAnonymous, nil, nil
	case session.TwoFactorConfirmed:
		return StateFullyAuthenticated, session, nil
	default:
		return StatePasswordConfirmed, session, nil
	}
}

// TouchSession slides the inactivity window of a live session.
func (a *AuthClient) TouchSession(ctx context.Context, session *model.AdminSession) error {
	return a.sessions.Touch(ctx, session)
}

func (a *AuthClient) DestroySession(ctx context.Context, token string) error {
	return a.sessions.Destroy(ctx, token)
}

func (a *AuthClient) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := a.sessions.CleanupExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired admin sessions: %w", err)
	}
	metrics.SessionsSwept.Add(float64(n))
	return n, nil
}

func (a *AuthClient) PruneLoginAttempts(ctx context.Context) (int64, error) {
	n, err := a.ledger.Prune(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune login attempts: %w", err)
	}
	return n, nil
}

// IsUserError reports whether err is an expected outcome of bad user input
// rather than an infrastructure failure.
func IsUserError(err error) bool {
	if _, ok := IsBlocked(err); ok {
		return true
	}
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrTwoFactorLocked)
}

func withRequest(ctx context.Context, ip, userAgent string) context.Context {
	info := audit.RequestInfoFrom(ctx)
	info.IpAddress = ip
	info.UserAgent = userAgent
	return audit.WithRequestInfo(ctx, info)
}
