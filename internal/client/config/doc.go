// Package config loads runtime configuration for the tradesync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON/YAML file selected with --config.
//  3. A .env file in the working directory.
//  4. TRADESYNC_CLIENT_* environment variables, e.g. TRADESYNC_CLIENT_SERVER_URL.
//  5. Command-line flags that were set explicitly.
//
// Modes
//
//	outbox    send the queued mutations in order (changes[] in the request)
//	snapshot  send the current dirty records (trades/strategies in the request)
package config
