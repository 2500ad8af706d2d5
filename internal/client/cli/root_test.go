package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/logging"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/dmitrijs2005/tradesync/internal/server/auth"
	"github.com/dmitrijs2005/tradesync/internal/server/httpapi"
	"github.com/dmitrijs2005/tradesync/internal/server/idempotency"
	"github.com/dmitrijs2005/tradesync/internal/server/services"
	"github.com/dmitrijs2005/tradesync/internal/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tradeID = "550e8400-e29b-41d4-a716-446655440001"

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tradesync", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"add-trade", "add-strategy", "update", "delete", "list", "show",
		"sync", "status", "log", "login", "logout", "daemon", "shell",
	}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"server-url", "token", "device-id", "db-path", "mode", "sync-interval", "config"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "c", cmd.PersistentFlags().Lookup("config").Shorthand)
	assert.Equal(t, "outbox", cmd.PersistentFlags().Lookup("mode").DefValue)
}

// env is a server plus a client database shared by consecutive commands.
type env struct {
	url    string
	dbPath string
	store  *store.Memory
}

func newEnv(t *testing.T, secret string) *env {
	t.Helper()
	st := store.NewMemory()
	cache := idempotency.New(time.Minute)
	svc := services.NewSyncService(st, cache, logging.Nop(), time.Now)
	srv := httptest.NewServer(httpapi.NewRouter(svc, cache, auth.NewAuthenticator(secret), logging.Nop(), httpapi.Options{}))
	t.Cleanup(srv.Close)
	return &env{url: srv.URL, dbPath: filepath.Join(t.TempDir(), "client.db"), store: st}
}

func (e *env) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	base := []string{
		"--server-url", e.url,
		"--db-path", e.dbPath,
		"--device-id", "device_test",
		"--retry-attempts", "0",
		"--log-level", "error",
	}
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), append(args, base...), strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

func (e *env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, "", args...)
	require.NoError(t, err, out)
	return out
}

func TestCLI_AddListSync(t *testing.T) {
	e := newEnv(t, "")

	out := e.mustRun(t, "add-trade", "--json", `{"id":"`+tradeID+`","symbol":"EURUSD","direction":"long","quantity":1.5}`)
	assert.Contains(t, out, "added trade "+tradeID)

	out = e.mustRun(t, "list", "trades")
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, tradeID+"*")

	out = e.mustRun(t, "status")
	assert.Contains(t, out, "pending:")
	assert.Contains(t, out, "device_test")
	assert.Contains(t, out, "never")

	_, err := e.run(t, "", "sync")
	assert.ErrorIs(t, err, errNotLoggedIn)

	out = e.mustRun(t, "login", "user-1")
	assert.Contains(t, out, "Login successful")

	out = e.mustRun(t, "sync")
	assert.Contains(t, out, "synced: sent 1, applied 1")

	live, err := e.store.Live(context.Background(), "user-1", records.Trades)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "device_test", live[0].Header().DeviceID)

	out = e.mustRun(t, "list", "trades")
	assert.NotContains(t, out, tradeID+"*")

	out = e.mustRun(t, "log")
	assert.Contains(t, out, "sync completed")
}

func TestCLI_UpdateShowDelete(t *testing.T) {
	e := newEnv(t, "")

	e.mustRun(t, "add-trade", "--symbol", "EURUSD", "--quantity", "2", "--pnl", "10.5")
	e.mustRun(t, "add-trade", "--json", `{"id":"`+tradeID+`","symbol":"BTCUSD"}`)

	e.mustRun(t, "update", "trade", tradeID, "--json", `{"status":"closed","notes":"done"}`)
	out := e.mustRun(t, "show", "trade", tradeID)
	assert.Contains(t, out, `"status": "closed"`)
	assert.Contains(t, out, `"symbol": "BTCUSD"`)

	e.mustRun(t, "delete", "trades", tradeID)
	out = e.mustRun(t, "list", "trades")
	assert.NotContains(t, out, "BTCUSD")
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "10.5")

	_, err := e.run(t, "", "show", "trade", tradeID)
	assert.Error(t, err)
}

func TestCLI_Strategies(t *testing.T) {
	e := newEnv(t, "")

	out := e.mustRun(t, "add-strategy", "--name", "Breakout", "--category", "momentum", "--default-risk", "1")
	assert.Contains(t, out, "added strategy ")

	out = e.mustRun(t, "list", "strategies", "--json")
	assert.Contains(t, out, `"name": "Breakout"`)
	assert.Contains(t, out, `"defaultRisk": 1`)
}

func TestCLI_Errors(t *testing.T) {
	e := newEnv(t, "")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown field", []string{"add-trade", "--json", `{"symbol":"X","size":1}`}, "invalid record"},
		{"missing symbol", []string{"add-trade"}, "symbol is required"},
		{"bad decimal", []string{"add-trade", "--symbol", "X", "--quantity", "lots"}, "--quantity"},
		{"bad type", []string{"list", "notes"}, "unknown record type"},
		{"update needs json", []string{"update", "trade", tradeID}, "nothing to update"},
		{"bad mode", []string{"status", "--mode", "push"}, "invalid mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCLI_LoginRejectedByServer(t *testing.T) {
	e := newEnv(t, "jwt-secret")

	_, err := e.run(t, "", "login", "not-a-jwt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")

	token, err := auth.GenerateToken("user-1", []byte("jwt-secret"), time.Hour)
	require.NoError(t, err)

	out, err := e.run(t, token+"\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Login successful")

	out = e.mustRun(t, "sync")
	assert.Contains(t, out, "synced")

	e.mustRun(t, "logout")
	_, err = e.run(t, "", "sync")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestCLI_SyncOfflineFails(t *testing.T) {
	e := newEnv(t, "")
	e.mustRun(t, "login", "user-1")
	e.url = "http://127.0.0.1:1"

	_, err := e.run(t, "", "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync failed")

	out := e.mustRun(t, "log")
	assert.Contains(t, out, "error")
}
