package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/configx"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by the client.
const EnvPrefix = "TRADESYNC_CLIENT"

// Sync modes.
const (
	ModeOutbox   = "outbox"
	ModeSnapshot = "snapshot"
)

// Config holds runtime settings for the tradesync client.
//
// An empty DeviceID is replaced by a generated id that is persisted in the
// local database on first start.
type Config struct {
	ServerURL           string        `mapstructure:"server_url"`
	Token               string        `mapstructure:"token"`
	DeviceID            string        `mapstructure:"device_id"`
	DBPath              string        `mapstructure:"db_path"`
	Mode                string        `mapstructure:"mode"`
	SyncInterval        time.Duration `mapstructure:"sync_interval"`
	OnlineCheckInterval time.Duration `mapstructure:"online_check_interval"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	RetryDelay          time.Duration `mapstructure:"retry_delay"`
	LogFormat           string        `mapstructure:"log_format"`
	LogLevel            string        `mapstructure:"log_level"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:3001"
	c.Token = ""
	c.DeviceID = ""
	c.DBPath = "tradesync.db"
	c.Mode = ModeOutbox
	c.SyncInterval = 30 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.RetryAttempts = 3
	c.RetryDelay = 500 * time.Millisecond
	c.LogFormat = "text"
	c.LogLevel = "warn"
}

// Validate reports settings the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server url %q", c.ServerURL)
	}
	if c.Mode != ModeOutbox && c.Mode != ModeSnapshot {
		return fmt.Errorf("invalid mode %q: must be %s or %s", c.Mode, ModeOutbox, ModeSnapshot)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path must not be empty")
	}
	if c.SyncInterval <= 0 || c.OnlineCheckInterval <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must not be negative")
	}
	return nil
}

// RegisterFlags adds one flag per setting to fs, named after the setting
// with dashes, e.g. --server-url.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.String("server-url", d.ServerURL, "base URL of the sync server")
	fs.String("token", d.Token, "bearer token")
	fs.String("device-id", d.DeviceID, "device identifier (generated when empty)")
	fs.String("db-path", d.DBPath, "path of the local SQLite database")
	fs.String("mode", d.Mode, "sync mode: outbox or snapshot")
	fs.Duration("sync-interval", d.SyncInterval, "period of background sync")
	fs.Duration("online-check-interval", d.OnlineCheckInterval, "period of server reachability checks")
	fs.Duration("request-timeout", d.RequestTimeout, "timeout of one HTTP request")
	fs.Int("retry-attempts", d.RetryAttempts, "transport retries within one sync cycle")
	fs.Duration("retry-delay", d.RetryDelay, "initial delay between transport retries")
	fs.String("log-format", d.LogFormat, "log format: json, text or zap")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
}

// Load builds a Config from defaults, file, .env, the environment and the
// changed flags of fs, in increasing precedence. file and fs may be empty.
func Load(file string, fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	err := configx.Load(cfg, configx.Options{
		File:      file,
		EnvPrefix: EnvPrefix,
		DotEnv:    []string{".env"},
		Flags:     fs,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
