// Package transport executes venue HTTP calls with rate limiting, retries
// for reads, metrics and logging.
package transport

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/ratelimit"
	"tradegate/internal/adapters/exchanges/retry"
	"tradegate/internal/metrics"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

// Config tunes the HTTP client of one venue.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Proxy     string
	// GlobalRPM overrides the default global requests per minute when positive.
	GlobalRPM int
	Retry     retry.Config
}

// HTTP is the resty backed exchanges.Transport.
type HTTP struct {
	venue  string
	client *resty.Client
	limits *ratelimit.MultiLimiter
	retry  *retry.Middleware
	log    *logger.Logger
}

// New builds the transport for venue.
func New(venue string, cfg Config, log *logger.Logger) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	client := resty.New().SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
	}

	return &HTTP{
		venue:  venue,
		client: client,
		limits: ratelimit.ForVenue(venue, cfg.GlobalRPM),
		retry:  retry.New(cfg.Retry),
		log:    log.Named("http").With("exchange", venue),
	}
}

// statusError carries a retryable response through the retry loop.
type statusError struct {
	resp *exchanges.Response
}

func (e *statusError) Error() string   { return "http status " + strconv.Itoa(e.resp.StatusCode) }
func (e *statusError) StatusCode() int { return e.resp.StatusCode }

// Do implements exchanges.Transport. Only GET requests are retried so that
// order placement stays at-most-once.
func (h *HTTP) Do(ctx context.Context, req *exchanges.Request) (*exchanges.Response, error) {
	started := time.Now()
	keys := []string{ratelimit.KeyGlobal}
	if req.Bucket != "" {
		keys = append(keys, req.Bucket)
	}
	if err := h.limits.Wait(ctx, req.Cost, keys...); err != nil {
		return nil, h.networkError(err)
	}
	metrics.RecordRateLimitWait(h.venue, time.Since(started))

	if req.Method != http.MethodGet {
		return h.once(ctx, req)
	}

	resp, err := retry.DoWithResult(ctx, h.retry, func() (*exchanges.Response, error) {
		resp, err := h.once(ctx, req)
		if err != nil {
			return nil, err
		}
		if retry.RetryableStatus(resp.StatusCode) {
			return resp, &statusError{resp: resp}
		}
		return resp, nil
	})
	var se *statusError
	if errors.As(err, &se) {
		return se.resp, nil
	}
	return resp, err
}

func (h *HTTP) once(ctx context.Context, req *exchanges.Request) (*exchanges.Response, error) {
	r := h.client.R().SetContext(ctx).SetHeaders(req.Headers)
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	started := time.Now()
	resp, err := r.Execute(req.Method, req.URL)
	latency := time.Since(started)
	if err != nil {
		metrics.RecordExchangeAPICall(h.venue, req.Endpoint, latency, 0)
		h.log.Warnw("request failed", "method", req.Method, "endpoint", req.Endpoint, "error", err)
		return nil, h.networkError(err)
	}

	metrics.RecordExchangeAPICall(h.venue, req.Endpoint, latency, resp.StatusCode())
	h.log.Debugw("request",
		"method", req.Method,
		"endpoint", req.Endpoint,
		"status", resp.StatusCode(),
		"latency", latency,
	)

	return &exchanges.Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

func (h *HTTP) networkError(err error) error {
	kind := exchanges.KindNetworkError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = exchanges.KindRequestTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = exchanges.KindRequestTimeout
	}
	return &exchanges.Error{Kind: kind, Exchange: h.venue, Err: err}
}
