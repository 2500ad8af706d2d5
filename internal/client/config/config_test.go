package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:3001", c.ServerURL)
	assert.Equal(t, ModeOutbox, c.Mode)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.NoError(t, c.Validate())
}

func TestLoad_DefaultsWithoutSources(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, cfg)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "client.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server_url: http://file:1\nmode: snapshot\nretry_attempts: 7\n"), 0o600))
	t.Setenv("TRADESYNC_CLIENT_MODE", "outbox")
	t.Setenv("TRADESYNC_CLIENT_TOKEN", "env-token")

	fs := pflag.NewFlagSet("client", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--token", "flag-token", "--sync-interval", "1m"}))

	cfg, err := Load(file, fs)
	require.NoError(t, err)

	assert.Equal(t, "http://file:1", cfg.ServerURL)
	assert.Equal(t, ModeOutbox, cfg.Mode)
	assert.Equal(t, 7, cfg.RetryAttempts)
	assert.Equal(t, "flag-token", cfg.Token)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
	assert.Equal(t, "tradesync.db", cfg.DBPath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad url", func(c *Config) { c.ServerURL = "localhost" }},
		{"bad mode", func(c *Config) { c.Mode = "push" }},
		{"empty db", func(c *Config) { c.DBPath = "" }},
		{"zero interval", func(c *Config) { c.SyncInterval = 0 }},
		{"negative retries", func(c *Config) { c.RetryAttempts = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
