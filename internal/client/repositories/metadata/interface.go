// Package metadata keeps small client-local key/value state: the device id,
// the stored bearer token, the last sync token and the last sync time.
package metadata

import (
	"context"
	"time"
)

// Well-known keys.
const (
	KeyDeviceID     = "device_id"
	KeyToken        = "token"
	KeySyncToken    = "sync_token"
	KeyLastSyncTime = "last_sync_time"
)

// Repository is a string-valued key/value store. Absent keys read as the
// zero value.
type Repository interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}
