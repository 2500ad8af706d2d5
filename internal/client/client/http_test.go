package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, "tok", Options{
		Timeout:       2 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestHTTPClient_SyncSendsHeadersAndBody(t *testing.T) {
	var gotAuth, gotKey string
	var gotReq records.SyncRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sync", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotReq))
		writeJSON(w, http.StatusOK, records.SyncResponse{Success: true, SyncToken: "tok-1"})
	})

	token := "prev"
	resp, err := c.Sync(context.Background(), "key-1", &records.SyncRequest{
		Trades:        []json.RawMessage{},
		Strategies:    []json.RawMessage{},
		LastSyncToken: &token,
		DeviceID:      "dev-1",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "tok-1", resp.SyncToken)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "dev-1", gotReq.DeviceID)
	require.NotNil(t, gotReq.LastSyncToken)
	assert.Equal(t, "prev", *gotReq.LastSyncToken)
}

func TestHTTPClient_SyncWithoutKeyOmitsHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Header["Idempotency-Key"]
		assert.False(t, ok)
		writeJSON(w, http.StatusOK, records.SyncResponse{Success: true})
	})

	_, err := c.Sync(context.Background(), "", &records.SyncRequest{})
	require.NoError(t, err)
}

func TestHTTPClient_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, records.ErrorResponse{Error: "service_unavailable", Message: "busy"})
			return
		}
		writeJSON(w, http.StatusOK, records.SyncResponse{Success: true, SyncToken: "t"})
	})

	resp, err := c.Sync(context.Background(), "k", &records.SyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, "t", resp.SyncToken)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, message: "Invalid token", want: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, message: "nope", want: ErrUnauthorized},
		{name: "bad request", status: http.StatusBadRequest, message: "Invalid JSON body", want: ErrRejected},
		{name: "key reused", status: http.StatusUnprocessableEntity, message: "reused", want: ErrRejected},
		{name: "server error", status: http.StatusInternalServerError, message: "boom", want: ErrUnavailable},
		{name: "rate limited", status: http.StatusTooManyRequests, message: "slow down", want: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, records.ErrorResponse{Error: "x", Message: tt.message})
			})

			_, err := c.Sync(context.Background(), "k", &records.SyncRequest{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestHTTPClient_ClosedServerIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, "", Options{Timeout: time.Second, RetryAttempts: 1, RetryDelay: time.Millisecond})
	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPClient_CanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, records.HealthResponse{Status: "healthy"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Ping(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPClient_ChangesQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/changes", r.URL.Path)
		assert.Equal(t, "abc", r.URL.Query().Get("since"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, records.ChangesResponse{SyncToken: "next", HasMore: true})
	})

	resp, err := c.Changes(context.Background(), "abc", 5)
	require.NoError(t, err)
	assert.Equal(t, "next", resp.SyncToken)
	assert.True(t, resp.HasMore)
}

func TestHTTPClient_Ping(t *testing.T) {
	var status atomic.Value
	status.Store("healthy")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		writeJSON(w, http.StatusOK, records.HealthResponse{Status: status.Load().(string)})
	})

	require.NoError(t, c.Ping(context.Background()))

	status.Store("degraded")
	assert.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestHTTPClient_SetToken(t *testing.T) {
	var got atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, records.ChangesResponse{})
	})

	c.SetToken("other")
	_, err := c.Changes(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, "Bearer other", got.Load())
}
