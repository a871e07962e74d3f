package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("DISPATCH_MAX_TEAM_SIZE", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "", cfg.Postgres.DSN)
	require.Equal(t, 5, cfg.Dispatch.MaxTeamSize)
	require.Equal(t, 5*time.Second, cfg.Postgres.LockTimeout())

	high, medium, low := cfg.Dispatch.SLAWindows()
	require.Equal(t, 4*time.Hour, high)
	require.Equal(t, 24*time.Hour, medium)
	require.Equal(t, 72*time.Hour, low)
}

func TestLoadRejectsBadDispatchPolicy(t *testing.T) {
	t.Setenv("DISPATCH_SLA_HIGH_HOURS", "48")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := Load()
	require.Error(t, err)
}

func TestAppConfigHelpers(t *testing.T) {
	app := AppConfig{Host: "127.0.0.1", Port: "9000", RequestTimeoutSeconds: 0}
	require.Equal(t, "127.0.0.1:9000", app.Addr())
	require.Zero(t, app.RequestTimeout())
}
