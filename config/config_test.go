package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
jwt:
  secret: test-secret
membership:
  fee_amount: 3000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "test-secret", cfg.JWT.Secret)
	assert.Equal(t, 72, cfg.JWT.ExpireHours)
	assert.Equal(t, 3000.0, cfg.Membership.FeeAmount)
	assert.Equal(t, "BDT", cfg.Membership.FeeCurrency)
	assert.Equal(t, 365, cfg.Membership.ValidityDays)
	assert.Equal(t, 30, cfg.Membership.RenewalWindowDays)
	assert.Equal(t, "notification_queue", cfg.Queue.NotificationQueue)
	assert.Equal(t, "member_events", cfg.Queue.EventChannel)
	assert.Equal(t, "@every 10m", cfg.Scheduler.ExpirySchedule)
	assert.Equal(t, int64(5*1024*1024), cfg.Upload.MaxSize)
}

func TestLoad_PrefersLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "jwt:\n  secret: public\n")
	writeConfig(t, dir, "config.local.yaml", "jwt:\n  secret: local\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.JWT.Secret)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "jwt:\n  secret: from-file\n")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
