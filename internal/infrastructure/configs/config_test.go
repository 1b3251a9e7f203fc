package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_HOST", "HTTP_PORT", "SOCKET_PORT", "AUTH_TOKEN", "REDIS_URL", "EVENTLOG_URL",
		"EVENTLOG_DRIVER", "EVENTLOG_STREAM", "MEMBERSHIP_BACKEND", "MEMBERSHIP_REDIS_URL",
		"MEMBERSHIP_FORGET_ON_DISCONNECT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, uint16(5500), cfg.HTTP.Port)
	assert.Equal(t, "0.0.0.0:5500", cfg.Addr())
	assert.Equal(t, "token-for-client", cfg.Auth.Token)
	assert.Equal(t, EventLogRedis, cfg.EventLog.Driver)
	assert.Equal(t, "interchange", cfg.EventLog.Stream)
	assert.Equal(t, 5*time.Second, cfg.EventLog.BlockTimeout)
	assert.Equal(t, MembershipMemory, cfg.Membership.Backend)
	assert.False(t, cfg.Membership.ForgetOnDisconnect)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
	assert.Equal(t, int64(64*1024), cfg.HTTP.MaxFrameBytes)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOCKET_PORT", "6000")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("MEMBERSHIP_BACKEND", "redis")
	t.Setenv("MEMBERSHIP_FORGET_ON_DISCONNECT", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, uint16(6000), cfg.HTTP.Port)
	assert.Equal(t, "redis://cache:6379/1", cfg.EventLog.URL)
	assert.Equal(t, "redis://cache:6379/1", cfg.Membership.RedisURL)
	assert.True(t, cfg.Membership.ForgetOnDisconnect)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  port: 7000
auth:
  token: s3cret
eventlog:
  driver: memory
  block_timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(7000), cfg.HTTP.Port)
	assert.Equal(t, "s3cret", cfg.Auth.Token)
	assert.Equal(t, EventLogMemory, cfg.EventLog.Driver)
	assert.Equal(t, 2*time.Second, cfg.EventLog.BlockTimeout)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("EVENTLOG_DRIVER", "kafka")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown eventlog driver")
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
