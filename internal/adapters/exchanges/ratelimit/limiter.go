// Package ratelimit throttles outbound venue calls with token buckets.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"tradegate/pkg/errors"
)

// Limiter is a named token bucket sized in requests per minute.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter allows requestsPerMinute with a burst of a tenth of that.
func NewLimiter(name string, requestsPerMinute int) *Limiter {
	rps := float64(requestsPerMinute) / 60.0

	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
	}
}

// Wait blocks until weight tokens are available. Weights above the burst
// are clamped so heavy endpoints still make progress.
func (l *Limiter) Wait(ctx context.Context, weight int) error {
	if weight < 1 {
		weight = 1
	}
	if b := l.limiter.Burst(); weight > b {
		weight = b
	}
	if err := l.limiter.WaitN(ctx, weight); err != nil {
		return errors.Wrapf(err, "rate limiter %s", l.name)
	}
	return nil
}

// Allow reports whether one token is available now, consuming it if so.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// MultiLimiter groups limiters by key, e.g. a global bucket plus an order
// bucket.
type MultiLimiter struct {
	limiters map[string]*Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter returns an empty group.
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*Limiter),
	}
}

// AddLimiter registers limiter under key.
func (m *MultiLimiter) AddLimiter(key string, limiter *Limiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[key] = limiter
}

// Wait takes weight tokens from every named limiter in order. Unknown keys
// are ignored.
func (m *MultiLimiter) Wait(ctx context.Context, weight int, keys ...string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, key := range keys {
		if limiter, ok := m.limiters[key]; ok {
			if err := limiter.Wait(ctx, weight); err != nil {
				return err
			}
		}
	}

	return nil
}

// Keys of the buckets every venue registers.
const (
	KeyGlobal = "global"
	KeyOrder  = "order"
)

// venueLimits are requests per minute for the global and order buckets.
var venueLimits = map[string][2]int{
	// https://binance-docs.github.io/apidocs/spot/en/#limits
	"binance":      {1200, 600},
	"binanceus":    {1200, 600},
	"binanceusdm":  {2400, 1200},
	"binancecoinm": {2400, 1200},
	// https://bybit-exchange.github.io/docs/v5/rate-limit
	"bybit": {600, 100},
	// https://exchange-docs.crypto.com/exchange/v1/rest-ws/index.html#rate-limits
	"cryptocom": {600, 900},
	// https://www.okx.com/docs-v5/en/#overview-rate-limits
	"okx": {1200, 1800},
}

// ForVenue builds the global and order buckets for a venue. globalOverride,
// when positive, replaces the default global rate.
func ForVenue(venue string, globalOverride int) *MultiLimiter {
	limits, ok := venueLimits[venue]
	if !ok {
		limits = [2]int{60, 60}
	}
	if globalOverride > 0 {
		limits[0] = globalOverride
	}
	m := NewMultiLimiter()
	m.AddLimiter(KeyGlobal, NewLimiter(venue+"-global", limits[0]))
	m.AddLimiter(KeyOrder, NewLimiter(venue+"-order", limits[1]))
	return m
}
