package client

import (
	"context"

	"github.com/dmitrijs2005/tradesync/internal/records"
)

type Client interface {
	// Sync sends one batch. key is sent as the Idempotency-Key header.
	Sync(ctx context.Context, key string, req *records.SyncRequest) (*records.SyncResponse, error)
	// Changes pulls up to limit changes per collection after since.
	Changes(ctx context.Context, since string, limit int) (*records.ChangesResponse, error)
	// Ping checks that the server is reachable and healthy.
	Ping(ctx context.Context) error
	// SetToken replaces the bearer token used by later calls.
	SetToken(token string)
}
