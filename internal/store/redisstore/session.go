package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hivemindd/admin-auth/internal/auth"
	"github.com/hivemindd/admin-auth/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "admin_session:"

const (
	fieldSessionID          = "session_id"
	fieldIpAddress          = "ip_address"
	fieldUserAgent          = "user_agent"
	fieldLastActivity       = "last_activity"
	fieldTwoFactorConfirmed = "two_factor_confirmed"
	fieldTwoFactorFailures  = "two_factor_failures"
	fieldCreatedAt          = "created_at"
)

// ARGV[1] is the key TTL in milliseconds, the rest are field/value pairs.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return 1
`)

// ARGV[1] is the new TTL in milliseconds, 0 keeps the current one.
var setFieldScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
if tonumber(ARGV[1]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return 1
`)

var incrFieldScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
`)

// SessionRepository keeps each admin session in one hash whose TTL tracks
// the inactivity window, so expired sessions disappear on their own.
type SessionRepository struct {
	client   *redis.Client
	lifetime time.Duration
}

var _ auth.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(client *redis.Client, lifetime time.Duration) *SessionRepository {
	return &SessionRepository{
		client:   client,
		lifetime: lifetime,
	}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session *model.AdminSession) error {
	created, err := createScript.Run(ctx, r.client, []string{key(session.SessionID)},
		r.lifetime.Milliseconds(),
		fieldSessionID, session.SessionID,
		fieldIpAddress, session.IpAddress,
		fieldUserAgent, session.UserAgent,
		fieldLastActivity, formatTime(session.LastActivity),
		fieldTwoFactorConfirmed, formatBool(session.TwoFactorConfirmed),
		fieldTwoFactorFailures, session.TwoFactorFailures,
		fieldCreatedAt, formatTime(session.CreatedAt),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create session in redis: %w", err)
	}
	if created == 0 {
		return auth.ErrDuplicateToken
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*model.AdminSession, error) {
	fields, err := r.client.HGetAll(ctx, key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseSession(fields)
}

func (r *SessionRepository) ConfirmSessionTwoFactor(ctx context.Context, sessionID string) error {
	return r.setField(ctx, sessionID, fieldTwoFactorConfirmed, formatBool(true), 0)
}

func (r *SessionRepository) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	return r.setField(ctx, sessionID, fieldLastActivity, formatTime(at), r.lifetime)
}

func (r *SessionRepository) IncrementSessionTwoFactorFailures(ctx context.Context, sessionID string) (int, error) {
	n, err := incrFieldScript.Run(ctx, r.client, []string{key(sessionID)}, fieldTwoFactorFailures).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to count two-factor failure in redis: %w", err)
	}
	if n < 0 {
		return 0, auth.ErrSessionNotFound
	}
	return n, nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, key(sessionID)).Err()
}

// DeleteSessionsIdleSince has nothing to do: key expiry already removed
// every session idle for longer than the lifetime.
func (r *SessionRepository) DeleteSessionsIdleSince(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *SessionRepository) setField(ctx context.Context, sessionID, field, value string, ttl time.Duration) error {
	res, err := setFieldScript.Run(ctx, r.client, []string{key(sessionID)}, ttl.Milliseconds(), field, value).Int()
	if err != nil {
		return fmt.Errorf("failed to update session %s in redis: %w", field, err)
	}
	if res < 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func parseSession(fields map[string]string) (*model.AdminSession, error) {
	lastActivity, err := time.Parse(time.RFC3339Nano, fields[fieldLastActivity])
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", fieldLastActivity, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", fieldCreatedAt, err)
	}
	failures, err := strconv.Atoi(fields[fieldTwoFactorFailures])
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", fieldTwoFactorFailures, err)
	}
	if fields[fieldSessionID] == "" {
		return nil, errors.New("session hash has no session id")
	}

	return &model.AdminSession{
		SessionID:          fields[fieldSessionID],
		IpAddress:          fields[fieldIpAddress],
		UserAgent:          fields[fieldUserAgent],
		LastActivity:       lastActivity,
		TwoFactorConfirmed: fields[fieldTwoFactorConfirmed] == "1",
		TwoFactorFailures:  failures,
		CreatedAt:          createdAt,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
