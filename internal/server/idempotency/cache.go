// Package idempotency remembers responses to keyed requests for a bounded
// window so that retries are answered with the original bytes instead of
// being processed again.
package idempotency

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

// DefaultWindow is how long a key is honored after its first response.
const DefaultWindow = 5 * time.Minute

// Fingerprint identifies a request body.
type Fingerprint [blake2b.Size256]byte

// FingerprintOf hashes a request body.
func FingerprintOf(body []byte) Fingerprint {
	return blake2b.Sum256(body)
}

// Response is a stored answer.
type Response struct {
	Status      int
	Body        []byte
	Fingerprint Fingerprint
	CreatedAt   time.Time
}

// Cache is safe for concurrent use. Entries expire lazily on lookup and are
// purged by a background janitor.
type Cache struct {
	window time.Duration
	items  *cache.Cache
	group  singleflight.Group
	now    func() time.Time
}

// New creates a Cache honoring keys for window. A non-positive window means
// DefaultWindow.
func New(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Cache{
		window: window,
		items:  cache.New(window, 2*window),
		now:    time.Now,
	}
}

// RequestKey scopes a client-supplied key to one user.
func RequestKey(userID, key string) string {
	return "req:" + userID + ":" + key
}

// MutationKey scopes a per-mutation key to one user.
func MutationKey(userID, key string) string {
	return "mut:" + userID + ":" + key
}

// Check returns the response stored under key while it is still inside the
// window.
func (c *Cache) Check(key string) (Response, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return Response{}, false
	}
	r, ok := v.(Response)
	if !ok || c.now().Sub(r.CreatedAt) >= c.window {
		return Response{}, false
	}
	return r, true
}

// Store remembers r under key, stamping its creation time.
func (c *Cache) Store(key string, r Response) {
	r.CreatedAt = c.now()
	c.items.Set(key, r, c.window)
}

// Do answers a keyed request. A stored response is returned as is with
// replayed set; otherwise fn runs once, even when several callers arrive
// with the same key concurrently, and its response is stored when the
// status is below 500. A key reused with a different body fails with
// common.ErrIdempotencyKeyReused.
func (c *Cache) Do(key string, fp Fingerprint, fn func() (Response, error)) (resp Response, replayed bool, err error) {
	if r, ok := c.Check(key); ok {
		if r.Fingerprint != fp {
			return Response{}, false, common.ErrIdempotencyKeyReused
		}
		return r, true, nil
	}

	ran := false
	v, err, _ := c.group.Do(key, func() (any, error) {
		if r, ok := c.Check(key); ok {
			return r, nil
		}
		ran = true
		r, err := fn()
		if err != nil {
			return nil, err
		}
		r.Fingerprint = fp
		if r.Status < 500 {
			c.Store(key, r)
		}
		return r, nil
	})
	if err != nil {
		return Response{}, false, err
	}

	r, ok := v.(Response)
	if !ok {
		return Response{}, false, fmt.Errorf("idempotency: unexpected value %T", v)
	}
	if r.Fingerprint != fp {
		return Response{}, false, common.ErrIdempotencyKeyReused
	}
	return r, !ran, nil
}

// Seen reports whether a mutation key was remembered inside the window.
func (c *Cache) Seen(key string) bool {
	_, ok := c.Check(key)
	return ok
}

// Remember records a processed mutation key.
func (c *Cache) Remember(key string) {
	c.Store(key, Response{})
}

// Len is the number of stored entries, including expired ones not yet purged.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}
