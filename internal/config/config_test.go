// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scm-project-sync/internal/scanner"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://api.snyk.io", cfg.APIURL)
	assert.Equal(t, 50, cfg.BranchConcurrency)
	assert.Equal(t, 50, cfg.DeactivateConcurrency)
	assert.Equal(t, 15, cfg.TargetConcurrency)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.PollTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1, cfg.CloneDepth)
	assert.Empty(t, cfg.ExclusionGlobs)
	assert.Equal(t, []scanner.Entitlement{scanner.EntitlementOpenSource}, cfg.ScannerEntitlements())
	assert.False(t, cfg.FailOnErrors)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("API_TOKEN", "token")
	t.Setenv("BRANCH_CONCURRENCY", "10")
	t.Setenv("POLL_TIMEOUT", "1m")
	t.Setenv("EXCLUSION_GLOBS", "fixtures, **/examples")
	t.Setenv("ENTITLEMENTS", "openSource,dockerfileFromScm")
	t.Setenv("FAIL_ON_ERRORS", "true")

	cfg, err := LoadConfig(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "token", cfg.APIToken)
	assert.Equal(t, 10, cfg.BranchConcurrency)
	assert.Equal(t, time.Minute, cfg.PollTimeout)
	assert.Equal(t, []string{"fixtures", "**/examples"}, cfg.ExclusionGlobs)
	assert.Equal(t, []string{"openSource", "dockerfileFromScm"}, cfg.Entitlements)
	assert.True(t, cfg.FailOnErrors)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("API_TOKEN=from-file\nLOG_LEVEL=debug\n"), 0o600))

	cfg, err := LoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.APIToken)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		msg  string
	}{
		{"log level", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"concurrency", "TARGET_CONCURRENCY", "0", "TARGET_CONCURRENCY must be at least 1"},
		{"retries", "MAX_RETRIES", "-1", "MAX_RETRIES"},
		{"clone depth", "CLONE_DEPTH", "-2", "CLONE_DEPTH"},
		{"entitlements", "ENTITLEMENTS", "premium", "grants no project types"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig(t.TempDir())

			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestConfig_Require(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.RequireAPI(), "API_TOKEN")
	assert.ErrorContains(t, cfg.RequireDB(), "DB_URL")

	cfg.APIToken = "token"
	assert.ErrorContains(t, cfg.RequireAPI(), "LOG_PATH")

	cfg.LogPath = filepath.Join(t.TempDir(), "missing")
	assert.ErrorContains(t, cfg.RequireAPI(), "existing directory")

	cfg.LogPath = t.TempDir()
	assert.NoError(t, cfg.RequireAPI())
}
