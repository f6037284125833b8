package config

import (
	"time"
)

type Config struct {
	Env            Env    `envconfig:"ENV" required:"true"`
	DatabaseURI    string `envconfig:"DATABASE_URI" required:"true"`
	ServerPort     string `envconfig:"ADMIN_AUTH_SERVER_PORT" default:"8080"`
	GRPCHealthPort string `envconfig:"ADMIN_AUTH_GRPC_HEALTH_PORT"`
	SentryDSN      string `envconfig:"SENTRY_DSN"`
	OTLPEndpoint   string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS" default:"*"`
	SessionBackend string `envconfig:"SESSION_BACKEND" default:"postgres"`
	RedisURL       string `envconfig:"REDIS_URL"`
	Rabbit         Rabbit `envconfig:"RABBIT"`
	Admin          Admin  `envconfig:"ADMIN"`
}

type Rabbit struct {
	URI        string `envconfig:"URI"`
	AlertQueue string `envconfig:"ALERT_QUEUE" default:"admin-security-alerts"`
	AlertEmail string `envconfig:"ALERT_EMAIL"`
}

// Admin describes the single privileged operator of the admin panel.
// Empty Username or PasswordHash disables the panel.
type Admin struct {
	Username             string        `envconfig:"USERNAME"`
	PasswordHash         string        `envconfig:"PASSWORD_HASH"`
	TwoFactorSecret      string        `envconfig:"2FA_SECRET"`
	MaxLoginAttempts     int           `envconfig:"MAX_LOGIN_ATTEMPTS" default:"3"`
	IPBlockDuration      int           `envconfig:"IP_BLOCK_DURATION" default:"60"`
	SessionCookie        string        `envconfig:"SESSION_COOKIE" default:"admin_session"`
	SessionLifetime      int           `envconfig:"SESSION_LIFETIME" default:"30"`
	MaxTwoFactorAttempts int           `envconfig:"MAX_2FA_ATTEMPTS" default:"5"`
	MaxTwoFactorIPFails  int           `envconfig:"MAX_2FA_IP_FAILURES" default:"10"`
	PathPrefix           string        `envconfig:"PATH" default:"/admin"`
	CleanupInterval      time.Duration `envconfig:"CLEANUP_INTERVAL" default:"5m"`
	InsecureCookie       bool          `envconfig:"INSECURE_COOKIE" default:"false"`
}

func (a Admin) BlockWindow() time.Duration {
	return time.Duration(a.IPBlockDuration) * time.Minute
}

func (a Admin) Lifetime() time.Duration {
	return time.Duration(a.SessionLifetime) * time.Minute
}

// Defaults fills zero values, for callers that build Admin by hand.
func (a Admin) Defaults() Admin {
	if a.MaxLoginAttempts <= 0 {
		a.MaxLoginAttempts = 3
	}
	if a.IPBlockDuration <= 0 {
		a.IPBlockDuration = 60
	}
	if a.SessionCookie == "" {
		a.SessionCookie = "admin_session"
	}
	if a.SessionLifetime <= 0 {
		a.SessionLifetime = 30
	}
	if a.MaxTwoFactorAttempts <= 0 {
		a.MaxTwoFactorAttempts = 5
	}
	if a.MaxTwoFactorIPFails <= 0 {
		a.MaxTwoFactorIPFails = 10
	}
	if a.PathPrefix == "" {
		a.PathPrefix = "/admin"
	}
	if a.CleanupInterval <= 0 {
		a.CleanupInterval = 5 * time.Minute
	}
	return a
}
