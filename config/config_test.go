package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("DATABASE_URI", "'postgres://localhost/admin'")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	conf, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDev, conf.Env)
	assert.Equal(t, "postgres://localhost/admin", conf.DatabaseURI)
	assert.Equal(t, ":8080", conf.ServerPort)
	assert.Equal(t, "postgres", conf.SessionBackend)
	assert.Equal(t, 3, conf.Admin.MaxLoginAttempts)
	assert.Equal(t, 60, conf.Admin.IPBlockDuration)
	assert.Equal(t, "admin_session", conf.Admin.SessionCookie)
	assert.Equal(t, 30, conf.Admin.SessionLifetime)
	assert.Equal(t, 5, conf.Admin.MaxTwoFactorAttempts)
	assert.Equal(t, 10, conf.Admin.MaxTwoFactorIPFails)
	assert.Equal(t, "/admin", conf.Admin.PathPrefix)
	assert.Equal(t, 5*time.Minute, conf.Admin.CleanupInterval)
	assert.Equal(t, time.Hour, conf.Admin.BlockWindow())
	assert.Equal(t, 30*time.Minute, conf.Admin.Lifetime())
}

func TestLoad_AdminOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2y$10$hash")
	t.Setenv("ADMIN_2FA_SECRET", "JBSWY3DPEHPK3PXP")
	t.Setenv("ADMIN_MAX_LOGIN_ATTEMPTS", "5")
	t.Setenv("ADMIN_IP_BLOCK_DURATION", "15")
	t.Setenv("ADMIN_SESSION_LIFETIME", "10")
	t.Setenv("ADMIN_PATH", "backoffice/")
	t.Setenv("ADMIN_AUTH_SERVER_PORT", ":9000")

	conf, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "root", conf.Admin.Username)
	assert.Equal(t, "$2y$10$hash", conf.Admin.PasswordHash)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", conf.Admin.TwoFactorSecret)
	assert.Equal(t, 5, conf.Admin.MaxLoginAttempts)
	assert.Equal(t, 15*time.Minute, conf.Admin.BlockWindow())
	assert.Equal(t, 10*time.Minute, conf.Admin.Lifetime())
	assert.Equal(t, "/backoffice", conf.Admin.PathPrefix)
	assert.Equal(t, ":9000", conf.ServerPort)
}

func TestLoad_UnknownEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("ENV", "staging-ish")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_MissingDatabase(t *testing.T) {
	setRequired(t)
	require.NoError(t, os.Unsetenv("DATABASE_URI"))

	_, err := Load()
	require.Error(t, err)
}

func TestAdmin_Defaults(t *testing.T) {
	a := Admin{}.Defaults()

	assert.Equal(t, 3, a.MaxLoginAttempts)
	assert.Equal(t, 60, a.IPBlockDuration)
	assert.Equal(t, 30, a.SessionLifetime)
	assert.Equal(t, "admin_session", a.SessionCookie)
	assert.Equal(t, 10, a.MaxTwoFactorIPFails)
}
