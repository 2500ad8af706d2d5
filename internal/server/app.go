// Package server wires the sync server together: it selects the store,
// builds the HTTP API and the gRPC health endpoint, and runs both until a
// termination signal arrives.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/logging"
	"github.com/dmitrijs2005/tradesync/internal/server/auth"
	"github.com/dmitrijs2005/tradesync/internal/server/config"
	"github.com/dmitrijs2005/tradesync/internal/server/httpapi"
	"github.com/dmitrijs2005/tradesync/internal/server/idempotency"
	"github.com/dmitrijs2005/tradesync/internal/server/services"
	"github.com/dmitrijs2005/tradesync/internal/server/store"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/tradesync/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  store.Store
	cache  *idempotency.Cache
	sync   *services.SyncService
	auth   *auth.Authenticator
}

// NewApp builds an App logging to stdout.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, os.Stdout)
}

func newApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger := logging.New(logOut, c.LogFormat, c.LogLevel)

	st, err := openStore(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	cache := idempotency.New(c.IdempotencyWindow)
	a := auth.NewAuthenticator(c.SecretKey)
	if a.Opaque() {
		logger.Warn(ctx, "no secret key configured, bearer tokens are used as user ids")
	}

	return &App{
		config: c,
		logger: logger,
		store:  st,
		cache:  cache,
		sync:   services.NewSyncService(st, cache, logger.With("module", "sync"), time.Now),
		auth:   a,
	}, nil
}

func openStore(ctx context.Context, c *config.Config, logger logging.Logger) (store.Store, error) {
	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "no database configured, using in-memory store")
		return store.NewMemory(), nil
	}
	st, err := store.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	logger.Info(ctx, "connected to postgres")
	return st, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) httpServer() *httpapi.HTTPServer {
	router := httpapi.NewRouter(app.sync, app.cache, app.auth, app.logger, httpapi.Options{
		MaxBodyBytes:   app.config.MaxBodyBytes,
		RateLimit:      app.config.RateLimit,
		RateLimitBurst: app.config.RateLimitBurst,
		RequestTimeout: app.config.RequestTimeout,
	})
	return httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, router, app.logger, app.config.ShutdownTimeout)
}

// Run serves HTTP and gRPC until ctx is cancelled, a termination signal
// arrives or one of the servers fails. The store is closed on return.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.httpServer().Run(gctx)
	})
	g.Go(func() error {
		return gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.store, 0).Run(gctx)
	})

	err := g.Wait()
	if cerr := app.store.Close(); cerr != nil {
		app.logger.Error(ctx, "closing store", "error", cerr)
	}
	if err != nil {
		app.logger.Error(ctx, "server stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}
