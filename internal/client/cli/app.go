package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/tradesync/internal/client/client"
	"github.com/dmitrijs2005/tradesync/internal/client/config"
	"github.com/dmitrijs2005/tradesync/internal/client/repositories"
	"github.com/dmitrijs2005/tradesync/internal/client/services"
	"github.com/dmitrijs2005/tradesync/internal/client/syncer"
	"github.com/dmitrijs2005/tradesync/internal/logging"
)

// errNotLoggedIn is returned by commands that talk to the server before a
// token is known.
var errNotLoggedIn = errors.New("not logged in: run 'tradesync login' or pass --token")

// App is one client session: the local database and the services on top of
// it.
type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *repositories.Manager
	client   *client.HTTPClient
	auth     *services.AuthService
	records  *services.RecordService
	engine   *syncer.Engine
	deviceID string
	loggedIn bool
}

func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger := logging.New(logOut, c.LogFormat, c.LogLevel)

	db, err := repositories.Open(ctx, c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	deviceID, err := services.DeviceID(ctx, db.Metadata, c.DeviceID)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	apiClient := client.NewHTTPClient(c.ServerURL, "", client.Options{
		Timeout:       c.RequestTimeout,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		Logger:        logger,
	})

	as := services.NewAuthService(apiClient, db.Metadata)
	loggedIn := true
	if err := as.Restore(ctx, c.Token); err != nil {
		if !errors.Is(err, services.ErrNoToken) {
			_ = db.Close()
			return nil, err
		}
		loggedIn = false
	}

	engine := syncer.NewEngine(db, apiClient, deviceID, syncer.Options{
		Mode:                c.Mode,
		Interval:            c.SyncInterval,
		OnlineCheckInterval: c.OnlineCheckInterval,
		Logger:              logger,
	})

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		client:   apiClient,
		auth:     as,
		records:  services.NewRecordService(db, deviceID, engine.Trigger, logger),
		engine:   engine,
		deviceID: deviceID,
		loggedIn: loggedIn,
	}, nil
}

func (a *App) Close() error {
	return a.db.Close()
}

func (a *App) requireLogin() error {
	if !a.loggedIn {
		return errNotLoggedIn
	}
	return nil
}

// prompt is the shell prompt suffix, e.g. "(idle, 2 pending)".
func (a *App) prompt(ctx context.Context) string {
	st, err := a.engine.State(ctx)
	if err != nil {
		return "(?)"
	}
	if !a.loggedIn {
		return fmt.Sprintf("(logged out, %d pending)", st.Pending)
	}
	return fmt.Sprintf("(%s, %d pending)", st.Status, st.Pending)
}
