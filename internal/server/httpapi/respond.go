package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/records"
)

// Error codes carried in ErrorResponse.Error.
const (
	codeInvalidRequest  = "invalid_request"
	codeUnauthorized    = "unauthorized"
	codeKeyReused       = "idempotency_key_reused"
	codePayloadTooLarge = "payload_too_large"
	codeRateLimited     = "rate_limited"
	codeInternal        = "internal_error"
	codeUnavailable     = "unavailable"
)

// ReplayedHeaderName marks a response served from the idempotency cache.
const ReplayedHeaderName = "Idempotent-Replayed"

func errorBody(code, msg string, now time.Time) []byte {
	b, err := json.Marshal(records.ErrorResponse{Error: code, Message: msg, Timestamp: now.UTC()})
	if err != nil {
		return []byte(`{"error":"internal_error"}`)
	}
	return b
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeRaw(w, http.StatusInternalServerError, errorBody(codeInternal, "failed to encode response", time.Now()))
		return
	}
	writeRaw(w, status, b)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeRaw(w, status, errorBody(code, msg, time.Now()))
}
