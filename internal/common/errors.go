// Package common defines shared constants and sentinel errors used across
// client and server layers of tradesync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors. Records failing these checks are skipped, the rest
	// of the batch is still merged.
	ErrInvalidID         = errors.New("invalid record id")
	ErrInvalidRecord     = errors.New("invalid record")
	ErrUnknownCollection = errors.New("unknown record type")
	ErrUnknownAction     = errors.New("unknown mutation action")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Idempotency errors.
	ErrIdempotencyKeyReused = errors.New("idempotency key reused with a different request body")

	// Local storage failures on the client.
	ErrStorage = errors.New("local storage error")

	// Cursor errors.
	ErrInvalidCursor = errors.New("invalid sync token")
)
