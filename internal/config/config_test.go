package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Database.Path = ""
	cfg.Logging.Level = "loud"

	err := Validate(cfg)
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 3)

	msg := err.Error()
	assert.Contains(t, msg, "server.port")
	assert.Contains(t, msg, "database.path")
	assert.Contains(t, msg, "logging.level")
}

func TestValidateLockTTLMustExceedExecutionTimeout(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.ExecutionTimeout = 5 * time.Minute
	cfg.Scheduler.LockTTL = 5 * time.Minute

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.lock_ttl")

	cfg.Scheduler.LockTTL = 6 * time.Minute
	assert.NoError(t, Validate(cfg))
}

func TestValidateAuthRequirements(t *testing.T) {
	cfg := Default()
	cfg.Auth.Enabled = true

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.password_hash")
	assert.Contains(t, err.Error(), "auth.jwt_secret")

	cfg.Auth.PasswordHash = "$2a$12$something"
	cfg.Auth.JWTSecret = "secret"
	assert.NoError(t, Validate(cfg))
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	// A named file that does not exist is an error; the search-path
	// case falls back to defaults instead.
	require.Error(t, err)

	t.Chdir(t.TempDir())
	cfg, err = Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultLockTTL, cfg.Scheduler.LockTTL)
	assert.Equal(t, DefaultExecutionTimeout, cfg.Scheduler.ExecutionTimeout)
	assert.True(t, cfg.Database.WALMode)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reelsync.yaml")
	content := strings.Join([]string{
		"server:",
		"  port: 9999",
		"scheduler:",
		"  execution_timeout: 2m",
		"  lock_ttl: 4m",
		"logging:",
		"  level: debug",
		"  format: json",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.ExecutionTimeout)
	assert.Equal(t, 4*time.Minute, cfg.Scheduler.LockTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	// Unspecified sections keep their defaults.
	assert.Equal(t, DefaultHost, cfg.Server.Host)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reelsync.yaml")
	content := strings.Join([]string{
		"scheduler:",
		"  execution_timeout: 10m",
		"  lock_ttl: 5m",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.lock_ttl")
}

func TestLoadExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "reelsync.yaml")
	content := strings.Join([]string{
		"auth:",
		"  enabled: true",
		"  password_hash: '$2a$12$hash'",
		"  jwt_secret: ${TEST_JWT_SECRET}",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestAddress(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8390}
	assert.Equal(t, "0.0.0.0:8390", cfg.Address())
}
