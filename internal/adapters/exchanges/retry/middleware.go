// Package retry re-runs idempotent venue calls on transient failures.
package retry

import (
	"context"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"tradegate/internal/adapters/exchanges"
	"tradegate/pkg/errors"
)

// Strategy defines the backoff curve.
type Strategy string

const (
	StrategyExponential Strategy = "exponential"
	StrategyLinear      Strategy = "linear"
	StrategyFixed       Strategy = "fixed"
)

// Config contains retry configuration.
type Config struct {
	MaxRetries   int           `envconfig:"RETRY_MAX" default:"3"`
	InitialDelay time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"100ms"`
	MaxDelay     time.Duration `envconfig:"RETRY_MAX_DELAY" default:"5s"`
	Strategy     Strategy      `envconfig:"RETRY_STRATEGY" default:"exponential"`
	Multiplier   float64       `envconfig:"RETRY_MULTIPLIER" default:"2"`
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Strategy:     StrategyExponential,
		Multiplier:   2.0,
	}
}

// Middleware retries a function with backoff between attempts.
type Middleware struct {
	config Config
}

// New fills zero fields from DefaultConfig. A negative MaxRetries disables
// retrying.
func New(config Config) *Middleware {
	def := DefaultConfig()
	if config.MaxRetries == 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.Multiplier <= 0 {
		config.Multiplier = def.Multiplier
	}
	if config.Strategy == "" {
		config.Strategy = def.Strategy
	}

	return &Middleware{config: config}
}

// Do executes fn until it succeeds, fails permanently or runs out of attempts.
func (m *Middleware) Do(ctx context.Context, fn func() error) error {
	_, err := DoWithResult(ctx, m, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions returning a value. On failure the value
// of the last attempt is returned alongside the error.
func DoWithResult[T any](ctx context.Context, m *Middleware, fn func() (T, error)) (T, error) {
	var (
		result  T
		lastErr error
	)

	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		var err error
		result, err = fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return result, err
		}
		if attempt == m.config.MaxRetries {
			break
		}

		timer := time.NewTimer(m.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, errors.Wrap(ctx.Err(), "retry cancelled")
		case <-timer.C:
		}
	}

	if m.config.MaxRetries == 0 {
		return result, lastErr
	}
	return result, errors.Wrapf(lastErr, "max retries (%d) exceeded", m.config.MaxRetries)
}

func (m *Middleware) delay(attempt int) time.Duration {
	var delay time.Duration

	switch m.config.Strategy {
	case StrategyExponential:
		delay = time.Duration(float64(m.config.InitialDelay) * math.Pow(m.config.Multiplier, float64(attempt)))
	case StrategyLinear:
		delay = m.config.InitialDelay * time.Duration(1+attempt)
	default:
		delay = m.config.InitialDelay
	}

	if delay > m.config.MaxDelay {
		delay = m.config.MaxDelay
	}
	return delay
}

var retryableMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"temporary failure",
	"too many requests",
	"rate limit",
	"throttled",
}

// IsRetryable reports whether err is transient: network failures, the
// network family of venue error kinds, and retryable HTTP statuses.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if kind := exchanges.KindOf(err); kind != "" {
		return kind.IsA(exchanges.KindNetworkError)
	}

	var httpErr interface{ StatusCode() int }
	if errors.As(err, &httpErr) {
		return RetryableStatus(httpErr.StatusCode())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range retryableMessages {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// RetryableStatus reports whether an HTTP status is worth another attempt.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= http.StatusInternalServerError
}
