package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/tradesync/internal/flagx"
)

// parseFlags overrides Config fields from command-line flags.
//
//	-a string    HTTP bind address (e.g. ":3001")
//	-g string    gRPC health bind address
//	-d string    PostgreSQL DSN; empty keeps data in memory
//	-s string    JWT HMAC secret; empty accepts opaque tokens
//	-l string    log format: json, text or zap
//	-v string    log level
//	-w duration  idempotency window
//
// Only these flags are taken from args; anything else (such as -c) is left
// to other parsers.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-l", "-v", "-w"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")
	fs.DurationVar(&config.IdempotencyWindow, "w", config.IdempotencyWindow, "idempotency window")

	return fs.Parse(args)
}
