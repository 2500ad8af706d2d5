package common

// Header names shared by the HTTP client and server.
const (
	AuthorizationHeaderName  = "Authorization"
	IdempotencyKeyHeaderName = "Idempotency-Key"
	BearerPrefix             = "Bearer "
)

// Version is reported by the health endpoint.
const Version = "1.0.0"
