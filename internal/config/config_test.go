package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestFromEnv_RequiresSecret(t *testing.T) {
	unset(t, "JWT_SECRET")
	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestFromEnv_Defaults(t *testing.T) {
	unset(t, "HTTP_ADDR", "HTTP_SHUTDOWN_SECONDS", "STRICT_FILTERS", "LOGIN_MAX_ATTEMPTS", "ACCESS_TOKEN_TTL_MINUTES")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8431", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.StrictFilters)
	assert.Equal(t, 3, cfg.Login.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Token.TTL)
}

func TestLoad_ReadsDotEnvWithoutOverriding(t *testing.T) {
	unset(t, "HTTP_ADDR", "JWT_SECRET")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "5")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=127.0.0.1:9000\nJWT_SECRET=from-file\nLOGIN_MAX_ATTEMPTS=9\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, "from-file", cfg.Token.Secret)
	assert.Equal(t, 5, cfg.Login.MaxAttempts)
}
