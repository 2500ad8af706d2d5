package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tradesync/internal/client/client"
	"github.com/dmitrijs2005/tradesync/internal/client/repositories/metadata"
	"github.com/google/uuid"
)

// ErrNoToken is returned by Restore when no token was stored.
var ErrNoToken = errors.New("not logged in")

// AuthService manages the bearer token used by the API client.
//
// Contract:
//   - Login: verify the token against the server and store it locally.
//   - Restore: load the stored token into the client.
//   - Logout: forget the stored token.
//   - Ping: check server liveness.
type AuthService struct {
	client client.Client
	meta   metadata.Repository
}

func NewAuthService(c client.Client, meta metadata.Repository) *AuthService {
	return &AuthService{client: c, meta: meta}
}

// Login checks token with an authenticated request and persists it. An
// unreachable server fails the login; the token is only stored once
// accepted.
func (a *AuthService) Login(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", client.ErrUnauthorized)
	}
	a.client.SetToken(token)
	if _, err := a.client.Changes(ctx, "", 1); err != nil {
		a.client.SetToken("")
		return err
	}
	if err := a.meta.SetString(ctx, metadata.KeyToken, token); err != nil {
		return storageErr(err)
	}
	return nil
}

// Restore sets the client token from, in order, override or the stored
// token. It returns ErrNoToken when neither is available.
func (a *AuthService) Restore(ctx context.Context, override string) error {
	token := override
	if token == "" {
		var err error
		if token, err = a.meta.GetString(ctx, metadata.KeyToken); err != nil {
			return storageErr(err)
		}
	}
	if token == "" {
		return ErrNoToken
	}
	a.client.SetToken(token)
	return nil
}

func (a *AuthService) Logout(ctx context.Context) error {
	a.client.SetToken("")
	if err := a.meta.Delete(ctx, metadata.KeyToken); err != nil {
		return storageErr(err)
	}
	return nil
}

func (a *AuthService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// DeviceID returns the id of this installation. An explicit id wins and is
// persisted; otherwise the stored one is used, or a new one is generated
// on first use.
func DeviceID(ctx context.Context, meta metadata.Repository, explicit string) (string, error) {
	if explicit != "" {
		if err := meta.SetString(ctx, metadata.KeyDeviceID, explicit); err != nil {
			return "", storageErr(err)
		}
		return explicit, nil
	}

	id, err := meta.GetString(ctx, metadata.KeyDeviceID)
	if err != nil {
		return "", storageErr(err)
	}
	if id != "" {
		return id, nil
	}

	id = "device_" + uuid.NewString()
	if err := meta.SetString(ctx, metadata.KeyDeviceID, id); err != nil {
		return "", storageErr(err)
	}
	return id, nil
}
