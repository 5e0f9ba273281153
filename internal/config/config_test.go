package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Access.Admins = []string{"admin-1"}
	return cfg
}

func TestValidate_DefaultsNeedAdmins(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access")

	cfg.Access.Admins = []string{"admin-1"}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.Market.WhaleCapBps = 0
	cfg.Resolution.DisputeWindow = duration{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "whale_cap_bps")
	assert.Contains(t, err.Error(), "dispute_window")
}

func TestValidate_PayeeCredentialsTogether(t *testing.T) {
	cfg := validConfig()
	cfg.Payee.URL = "https://fees.example.com"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_id")

	cfg.Payee.KeyID = "k1"
	cfg.Payee.KeySecret = "s1"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "serve"

[access]
admins = ["admin-1"]

[resolution]
dispute_window = "24h"

[market]
whale_cap_bps = 1500
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("KEKTECH_MARKET_WHALE_CAP_BPS", "2500")
	t.Setenv("KEKTECH_POSTGRES_PASSWORD", "hunter2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, 24*time.Hour, cfg.Resolution.DisputeWindow.Duration)
	// Env wins over file.
	assert.Equal(t, int64(2500), cfg.Market.WhaleCapBps)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	// Untouched sections keep their defaults.
	assert.Equal(t, int64(1000), cfg.Fees.MaxTradingFeeBps)

	require.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "secret"
	cfg.Payee.KeySecret = "secret"
	cfg.Server.APIKey = "secret"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Payee.KeySecret)
	assert.Equal(t, "***", red.Server.APIKey)
	// The original is untouched.
	assert.Equal(t, "secret", cfg.Postgres.Password)
}
