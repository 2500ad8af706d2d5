package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/dmitrijs2005/tradesync/internal/logging"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/go-resty/resty/v2"
)

// Options tune HTTPClient.
type Options struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	Logger        logging.Logger
}

// HTTPClient is safe for concurrent use.
type HTTPClient struct {
	client *resty.Client
	logger logging.Logger

	mu    sync.RWMutex
	token string
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, token string, opts Options) *HTTPClient {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	logger := opts.Logger.With("module", "http_client")

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryAttempts).
		SetRetryWaitTime(opts.RetryDelay).
		SetRetryMaxWaitTime(8 * opts.RetryDelay).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests
		}).
		AddRetryHook(func(r *resty.Response, err error) {
			if r == nil || r.Request == nil {
				logger.Debug(context.Background(), "retrying request", "error", err)
				return
			}
			logger.Debug(r.Request.Context(), "retrying request",
				"url", r.Request.URL, "attempt", r.Request.Attempt, "status", r.StatusCode(), "error", err)
		}).
		SetLogger(restyLogger{logger})

	return &HTTPClient{client: rc, logger: logger, token: token}
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) request(ctx context.Context) *resty.Request {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	r := c.client.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

func (c *HTTPClient) Sync(ctx context.Context, key string, req *records.SyncRequest) (*records.SyncResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode sync request: %w", err)
	}

	r := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&records.SyncResponse{})
	if key != "" {
		r.SetHeader(common.IdempotencyKeyHeaderName, key)
	}

	resp, err := r.Post("/api/sync")
	if err := c.mapError(ctx, resp, err); err != nil {
		return nil, err
	}
	return resp.Result().(*records.SyncResponse), nil
}

func (c *HTTPClient) Changes(ctx context.Context, since string, limit int) (*records.ChangesResponse, error) {
	r := c.request(ctx).SetResult(&records.ChangesResponse{})
	if since != "" {
		r.SetQueryParam("since", since)
	}
	if limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := r.Get("/api/changes")
	if err := c.mapError(ctx, resp, err); err != nil {
		return nil, err
	}
	return resp.Result().(*records.ChangesResponse), nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.request(ctx).SetResult(&records.HealthResponse{}).Get("/health")
	if err := c.mapError(ctx, resp, err); err != nil {
		return err
	}
	if h := resp.Result().(*records.HealthResponse); h.Status != "healthy" {
		return fmt.Errorf("%w: status %q", ErrUnavailable, h.Status)
	}
	return nil
}

// mapError turns transport failures and non-2xx answers into sentinel errors.
func (c *HTTPClient) mapError(ctx context.Context, resp *resty.Response, err error) error {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := resp.Status()
	var e records.ErrorResponse
	if json.Unmarshal(resp.Body(), &e) == nil && e.Message != "" {
		msg = e.Message
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case code >= http.StatusInternalServerError || code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	default:
		c.logger.Warn(ctx, "request rejected", "url", resp.Request.URL, "status", code, "message", msg)
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}
}

// restyLogger routes resty's own printf-style diagnostics to Logger.
type restyLogger struct {
	l logging.Logger
}

func (r restyLogger) Errorf(format string, v ...any) {
	r.l.Debug(context.Background(), fmt.Sprintf(format, v...))
}

func (r restyLogger) Warnf(format string, v ...any) {
	r.l.Debug(context.Background(), fmt.Sprintf(format, v...))
}

func (r restyLogger) Debugf(format string, v ...any) {
	r.l.Debug(context.Background(), fmt.Sprintf(format, v...))
}
