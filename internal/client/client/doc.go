// Package client talks to the tradesync server.
//
// The Client interface is the transport contract used by the sync engine:
// Sync pushes a batch under an idempotency key, Changes pulls a page of
// server changes and Ping probes reachability. HTTPClient implements it over
// HTTP/JSON with resty, retrying network failures and 5xx answers within one
// call. Retries are safe because every attempt carries the same
// Idempotency-Key header.
//
// # Error Handling
//
// Failures are mapped to sentinel errors that callers match with errors.Is:
// ErrUnavailable (network, timeouts, 5xx, 429), ErrUnauthorized (401, 403)
// and ErrRejected (any other 4xx, carrying the server's message).
package client
