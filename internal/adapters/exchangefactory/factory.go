// Package exchangefactory builds venue clients from configuration and hands
// out one cached instance per venue.
package exchangefactory

import (
	"context"
	"slices"
	"sync"

	"tradegate/internal/adapters/config"
	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/binance"
	"tradegate/internal/adapters/exchanges/bybit"
	"tradegate/internal/adapters/exchanges/clock"
	"tradegate/internal/adapters/exchanges/cryptocom"
	"tradegate/internal/adapters/exchanges/okx"
	"tradegate/internal/adapters/exchanges/retry"
	"tradegate/internal/adapters/exchanges/transport"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

// Supported lists every venue the factory can build.
var Supported = []string{cryptocom.ID, binance.ID, binance.IDUS, bybit.ID, okx.ID}

// Factory implements exchanges.Factory. Clients share one clock and market
// store; each venue keeps its own transport so rate limits survive client
// rebuilds.
type Factory struct {
	cfg      *config.Config
	creds    exchanges.CredentialStore
	store    exchanges.MarketStore
	clock    exchanges.Clock
	log      *logger.Logger
	baseURLs map[string]string

	mu         sync.RWMutex
	clients    map[string]exchanges.Exchange
	transports map[string]exchanges.Transport
}

var _ exchanges.Factory = (*Factory)(nil)

// Option customizes a Factory.
type Option func(*Factory)

// WithMarketStore persists catalogs, e.g. in redis.
func WithMarketStore(store exchanges.MarketStore) Option {
	return func(f *Factory) { f.store = store }
}

// WithLogger sets the parent logger of every client.
func WithLogger(log *logger.Logger) Option {
	return func(f *Factory) { f.log = log }
}

// WithClock replaces the monotonic nonce clock.
func WithClock(c exchanges.Clock) Option {
	return func(f *Factory) { f.clock = c }
}

// WithBaseURL points venue at another host, such as a test server.
func WithBaseURL(venue, url string) Option {
	return func(f *Factory) { f.baseURLs[venue] = url }
}

// WithTransport makes venue use t instead of the resty transport.
func WithTransport(venue string, t exchanges.Transport) Option {
	return func(f *Factory) { f.transports[venue] = t }
}

// New creates a factory over cfg. creds may be nil for public access only.
func New(cfg *config.Config, creds exchanges.CredentialStore, opts ...Option) *Factory {
	f := &Factory{
		cfg:        cfg,
		creds:      creds,
		clock:      clock.NewMonotonic(),
		log:        logger.NewNop(),
		baseURLs:   make(map[string]string),
		clients:    make(map[string]exchanges.Exchange),
		transports: make(map[string]exchanges.Transport),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.Named("exchange_factory")
	return f
}

// ListExchanges implements exchanges.Factory: the configured venues this
// factory can build, in configuration order. No configured list means all.
func (f *Factory) ListExchanges() []string {
	if len(f.cfg.App.Exchanges) == 0 {
		return slices.Clone(Supported)
	}
	out := make([]string, 0, len(Supported))
	for _, venue := range f.cfg.App.Exchanges {
		if slices.Contains(Supported, venue) && !slices.Contains(out, venue) {
			out = append(out, venue)
		}
	}
	return out
}

// GetClient implements exchanges.Factory.
func (f *Factory) GetClient(ctx context.Context, venue string) (exchanges.Exchange, error) {
	// Check cache first
	f.mu.RLock()
	if client, ok := f.clients[venue]; ok {
		f.mu.RUnlock()
		return client, nil
	}
	f.mu.RUnlock()

	if !slices.Contains(f.ListExchanges(), venue) {
		return nil, errors.Wrapf(errors.ErrNotFound, "unsupported or disabled exchange: %s", venue)
	}

	creds, err := f.credentials(ctx, venue)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring lock
	if client, ok := f.clients[venue]; ok {
		return client, nil
	}

	client, err := f.build(venue, creds)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s client", venue)
	}
	f.clients[venue] = client

	f.log.Infow("exchange client created", "exchange", venue, "authenticated", !creds.Empty())
	return client, nil
}

// RemoveClient drops the cached client of venue, e.g. after key rotation.
func (f *Factory) RemoveClient(venue string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.clients, venue)
}

func (f *Factory) credentials(ctx context.Context, venue string) (exchanges.Credentials, error) {
	if f.creds == nil {
		return exchanges.Credentials{}, nil
	}
	creds, err := f.creds.Credentials(ctx, venue)
	if err != nil {
		return exchanges.Credentials{}, errors.Wrapf(err, "credentials for %s", venue)
	}
	return creds, nil
}

// transport returns the shared transport of venue. Callers hold f.mu.
func (f *Factory) transport(venue string) exchanges.Transport {
	if t, ok := f.transports[venue]; ok {
		return t
	}
	tc := f.cfg.Transport
	t := transport.New(venue, transport.Config{
		Timeout:   tc.Timeout,
		UserAgent: tc.UserAgent,
		Proxy:     tc.Proxy,
		Retry:     retry.Config{MaxRetries: tc.MaxRetries},
	}, f.log)
	f.transports[venue] = t
	return t
}

func (f *Factory) build(venue string, creds exchanges.Credentials) (exchanges.Exchange, error) {
	log := f.log.With("exchange", venue)

	switch venue {
	case cryptocom.ID:
		c := f.cfg.Cryptocom
		return cryptocom.New(cryptocom.Config{
			Credentials:            creds,
			Sandbox:                c.Sandbox,
			BaseURL:                f.baseURLs[venue],
			MarketBuyRequiresPrice: c.MarketBuyRequiresPrice,
			DefaultMarginMode:      exchanges.MarginMode(c.DefaultMarginMode),
			ClientOrderIDPrefix:    c.ClientOrderIDPrefix,
		}, cryptocom.Deps{
			Transport: f.transport(venue),
			Clock:     f.clock,
			Store:     f.store,
			Log:       log,
		}), nil

	case binance.ID, binance.IDUS:
		cfg := binance.Config{
			Venue:       venue,
			Credentials: creds,
			Hosts:       f.binanceHosts(venue),
		}
		if venue == binance.ID {
			c := f.cfg.Binance
			cfg.Testnet = c.Testnet
			cfg.Profiles = c.Profiles
			cfg.RecvWindow = c.RecvWindow
			cfg.DefaultMarginMode = exchanges.MarginMode(c.DefaultMarginMode)
			cfg.ClientOrderIDPrefix = c.ClientOrderIDPrefix
		} else {
			c := f.cfg.BinanceUS
			cfg.RecvWindow = c.RecvWindow
			cfg.ClientOrderIDPrefix = c.ClientOrderIDPrefix
		}
		return binance.New(cfg, binance.Deps{
			Transport: f.transport(venue),
			Clock:     f.clock,
			Store:     f.store,
			Log:       log,
		})

	case bybit.ID:
		c := f.cfg.Bybit
		return bybit.New(bybit.Config{
			Credentials:         creds,
			Testnet:             c.Testnet,
			BaseURL:             f.baseURLs[venue],
			Categories:          c.Categories,
			RecvWindow:          c.RecvWindow,
			DefaultMarginMode:   exchanges.MarginMode(c.DefaultMarginMode),
			ClientOrderIDPrefix: c.ClientOrderIDPrefix,
		}, bybit.Deps{
			Transport: f.transport(venue),
			Clock:     f.clock,
			Store:     f.store,
			Log:       log,
		})

	case okx.ID:
		c := f.cfg.OKX
		return okx.New(okx.Config{
			Credentials:         creds,
			Testnet:             c.Testnet,
			BaseURL:             f.baseURLs[venue],
			InstTypes:           c.InstTypes,
			DefaultMarginMode:   exchanges.MarginMode(c.DefaultMarginMode),
			ClientOrderIDPrefix: c.ClientOrderIDPrefix,
		}, okx.Deps{
			Transport: f.transport(venue),
			Clock:     f.clock,
			Store:     f.store,
			Log:       log,
		})
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "unsupported exchange: %s", venue)
}

// binanceHosts maps a base URL override onto every binance API family.
func (f *Factory) binanceHosts(venue string) map[string]string {
	url, ok := f.baseURLs[venue]
	if !ok {
		return nil
	}
	return map[string]string{
		binance.ProfileSpot:  url,
		binance.ProfileUSDM:  url,
		binance.ProfileCOINM: url,
	}
}
