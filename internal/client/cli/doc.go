// Package cli implements the tradesync command-line client.
//
// Every command opens the local database, acts on it and exits; "daemon"
// keeps a sync engine running in the foreground and "shell" offers an
// interactive prompt that shares one session between commands while syncing
// in the background.
//
// Typical flow:
//
//	tradesync login                      # store a bearer token
//	tradesync add-trade --symbol EURUSD  # edit offline
//	tradesync sync                       # push and pull once
//	tradesync status
package cli
