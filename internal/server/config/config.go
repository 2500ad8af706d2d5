// Package config handles configuration for the sync server: defaults,
// an optional config file, .env and TRADESYNC_* environment variables,
// and finally command-line flags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/configx"
	"github.com/dmitrijs2005/tradesync/internal/flagx"
)

// EnvPrefix prefixes every environment variable read by the server.
const EnvPrefix = "TRADESYNC"

// Config holds runtime settings for the sync server.
//
// An empty DatabaseDSN selects the in-memory store. An empty SecretKey
// makes bearer tokens opaque user ids instead of signed JWTs.
type Config struct {
	EndpointAddrHTTP      string        `mapstructure:"endpoint_addr_http"`
	EndpointAddrGRPC      string        `mapstructure:"endpoint_addr_grpc"`
	DatabaseDSN           string        `mapstructure:"database_dsn"`
	SecretKey             string        `mapstructure:"secret_key"`
	TokenValidityDuration time.Duration `mapstructure:"token_validity_duration"`
	IdempotencyWindow     time.Duration `mapstructure:"idempotency_window"`
	RateLimit             float64       `mapstructure:"rate_limit"`
	RateLimitBurst        int           `mapstructure:"rate_limit_burst"`
	MaxBodyBytes          int64         `mapstructure:"max_body_bytes"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout"`
	LogFormat             string        `mapstructure:"log_format"`
	LogLevel              string        `mapstructure:"log_level"`
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":3001"
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDSN = ""
	c.SecretKey = ""
	c.TokenValidityDuration = 30 * 24 * time.Hour
	c.IdempotencyWindow = 5 * time.Minute
	c.RateLimit = 20
	c.RateLimitBurst = 40
	c.MaxBodyBytes = 50 << 20
	c.RequestTimeout = 30 * time.Second
	c.ShutdownTimeout = 10 * time.Second
	c.LogFormat = "json"
	c.LogLevel = "info"
}

// LoadConfig builds a Config from defaults, the file named by -c/-config,
// .env, the environment and flags, in increasing precedence.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	err := configx.Load(cfg, configx.Options{
		File:      flagx.ConfigFile(args),
		EnvPrefix: EnvPrefix,
		DotEnv:    []string{".env"},
	})
	if err != nil {
		return nil, err
	}

	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}
