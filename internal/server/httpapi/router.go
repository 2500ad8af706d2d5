// Package httpapi exposes the sync service over HTTP/JSON.
package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/logging"
	"github.com/dmitrijs2005/tradesync/internal/server/auth"
	"github.com/dmitrijs2005/tradesync/internal/server/idempotency"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options tune the router. Zero values fall back to the defaults below.
type Options struct {
	MaxBodyBytes   int64
	RateLimit      float64
	RateLimitBurst int
	RequestTimeout time.Duration
	Now            func() time.Time
}

const (
	defaultMaxBodyBytes   = 50 << 20
	defaultRequestTimeout = 30 * time.Second
)

// NewRouter builds the API handler.
//
//	GET  /health        public
//	POST /api/sync      bearer, optional Idempotency-Key
//	GET  /api/changes   bearer
//	GET  /api/stats     bearer
func NewRouter(svc SyncService, cache *idempotency.Cache, a *auth.Authenticator, logger logging.Logger, opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger = logger.With("module", "http_api")

	h := &handler{svc: svc, cache: cache, logger: logger, maxBody: opts.MaxBodyBytes, now: opts.Now}
	limiter := newUserLimiter(opts.RateLimit, opts.RateLimitBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate(a, logger))
		r.Use(limiter.middleware(logger))

		r.Post("/sync", h.sync)
		r.Get("/changes", h.changes)
		r.Get("/stats", h.stats)
	})

	return r
}
