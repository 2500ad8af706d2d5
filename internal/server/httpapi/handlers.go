package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/dmitrijs2005/tradesync/internal/logging"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/dmitrijs2005/tradesync/internal/server/idempotency"
)

// SyncService is the domain side of the API.
type SyncService interface {
	Sync(ctx context.Context, userID string, req *records.SyncRequest) (*records.SyncResponse, error)
	Changes(ctx context.Context, userID, since string, limit int) (*records.ChangesResponse, error)
	Stats(ctx context.Context, userID string) (*records.StatsResponse, error)
	Ping(ctx context.Context) error
}

type handler struct {
	svc     SyncService
	cache   *idempotency.Cache
	logger  logging.Logger
	maxBody int64
	now     func() time.Time
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := records.HealthResponse{Status: "healthy", Timestamp: h.now().UTC(), Version: common.Version}
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "health check failed", "error", err)
		resp.Status = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) sync(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Failed to read request body")
		return
	}

	process := func() (idempotency.Response, error) {
		return h.processSync(r.Context(), userID, body)
	}

	key := strings.TrimSpace(r.Header.Get(common.IdempotencyKeyHeaderName))
	if key == "" {
		resp, err := process()
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		writeRaw(w, resp.Status, resp.Body)
		return
	}

	resp, replayed, err := h.cache.Do(idempotency.RequestKey(userID, key), idempotency.FingerprintOf(body), process)
	switch {
	case errors.Is(err, common.ErrIdempotencyKeyReused):
		h.logger.Warn(r.Context(), "idempotency key reused with a different body", "user", userID, "key", key)
		writeError(w, http.StatusUnprocessableEntity, codeKeyReused, "Idempotency key was already used for a different request")
		return
	case err != nil:
		h.internalError(w, r, err)
		return
	}

	if replayed {
		h.logger.Info(r.Context(), "replaying stored sync response", "user", userID, "key", key)
		w.Header().Set(ReplayedHeaderName, "true")
	}
	writeRaw(w, resp.Status, resp.Body)
}

// processSync runs one sync and renders its response. Client errors are
// returned as responses so that they are remembered under the request key.
func (h *handler) processSync(ctx context.Context, userID string, body []byte) (idempotency.Response, error) {
	var req records.SyncRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return idempotency.Response{
			Status: http.StatusBadRequest,
			Body:   errorBody(codeInvalidRequest, "Malformed sync request: "+err.Error(), h.now()),
		}, nil
	}

	resp, err := h.svc.Sync(ctx, userID, &req)
	if err != nil {
		return idempotency.Response{}, err
	}

	b, err := json.Marshal(resp)
	if err != nil {
		return idempotency.Response{}, err
	}
	return idempotency.Response{Status: http.StatusOK, Body: b}, nil
}

func (h *handler) changes(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	q := r.URL.Query()

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	resp, err := h.svc.Changes(r.Context(), userID, q.Get("since"), limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	resp, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		h.logger.Warn(r.Context(), "request aborted", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "Request timed out")
		return
	}
	h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
}
