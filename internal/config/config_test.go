package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reputest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  handle: otherbot\nsearch:\n  maxPages: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "otherbot", cfg.Account.Handle)
	assert.Equal(t, 3, cfg.Search.MaxPages)
	assert.Equal(t, 15, cfg.Following.MaxPages)
	assert.Equal(t, 500, cfg.Search.PageDelayMs)
	require.NoError(t, cfg.Validate())
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reputest.yaml")
	cfg := Default()
	cfg.Schedule.IntervalMinutes = 15
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Schedule.IntervalMinutes)
	assert.Equal(t, cfg.Search.Queries, got.Search.Queries)
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("XAPI_CLIENT_ID", "cid")
	t.Setenv("XAPI_CLIENT_SECRET", "csecret")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/reputest?sslmode=disable")
	t.Setenv("X_API_RPS", "5")

	cfg := Default()
	cfg.ResolveEnv()
	assert.Equal(t, "cid", cfg.Credentials.ClientID)
	assert.Equal(t, "csecret", cfg.Credentials.ClientSecret)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 5.0, cfg.API.RPS)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"interval":   func(c *Config) { c.Schedule.IntervalMinutes = 0 },
		"page cap":   func(c *Config) { c.Following.MaxPages = 0 },
		"driver":     func(c *Config) { c.Storage.Driver = "mysql" },
		"key length": func(c *Config) { c.Credentials.EncryptionKey = "abcd" },
		"handle":     func(c *Config) { c.Account.Handle = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
