// Package binance adapts the Binance spot, USD-M and COIN-M REST APIs, and
// the Binance.US variant, behind one exchanges.Exchange.
package binance

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/clock"
	"tradegate/internal/adapters/exchanges/markets"
	"tradegate/internal/adapters/exchanges/sign"
	"tradegate/internal/adapters/exchanges/transport"
	"tradegate/internal/metrics"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

const (
	// ID is the global venue.
	ID = "binance"
	// IDUS is the Binance.US variant: spot only, own host.
	IDUS = "binanceus"

	defaultRecvWindow   = 5 * time.Second
	clientOrderIDLength = 36
	// Quarterly contracts deliver at 08:00 UTC.
	expiryHour = 8
	// USD-M and COIN-M perpetuals fund every eight hours.
	fundingInterval = 8 * time.Hour
)

// Config configures the adapter.
type Config struct {
	// Venue is ID or IDUS; empty means ID.
	Venue       string
	Credentials exchanges.Credentials
	Testnet     bool
	// Profiles lists the enabled API families (ProfileSpot, ProfileUSDM,
	// ProfileCOINM). Empty enables every family the venue offers.
	Profiles []string
	// Hosts overrides the base URL per profile; the key "sapi" covers the
	// wallet endpoints, which otherwise share the spot host.
	Hosts               map[string]string
	RecvWindow          time.Duration
	DefaultMarginMode   exchanges.MarginMode
	ClientOrderIDPrefix string
}

// Deps are the shared collaborators. Zero values get in-process defaults.
type Deps struct {
	Transport exchanges.Transport
	Clock     exchanges.Clock
	Cache     exchanges.MarketCache
	Store     exchanges.MarketStore
	Log       *logger.Logger
}

type idKey struct {
	profile string
	id      string
}

// Client implements exchanges.Exchange for Binance.
type Client struct {
	cfg      Config
	venue    string
	profiles []Profile
	http     exchanges.Transport
	clock    exchanges.Clock
	cache    exchanges.MarketCache
	store    exchanges.MarketStore
	log      *logger.Logger
	signer   sign.Query

	// ids resolves venue ids per profile; spot and USD-M share ids such as BTCUSDT.
	mu  sync.RWMutex
	ids map[idKey]exchanges.Market
}

var _ exchanges.Exchange = (*Client)(nil)

// New builds the adapter. Unknown profile names are rejected.
func New(cfg Config, deps Deps) (*Client, error) {
	venue := cfg.Venue
	if venue == "" {
		venue = ID
	}
	if venue != ID && venue != IDUS {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown binance venue %q", venue)
	}
	if (cfg.Credentials.APIKey == "") != (cfg.Credentials.Secret == "") {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s: api key and secret must be set together", venue)
	}
	profiles, err := resolveProfiles(venue, cfg.Profiles)
	if err != nil {
		return nil, err
	}
	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = defaultRecvWindow
	}

	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Transport == nil {
		deps.Transport = transport.New(venue, transport.Config{}, deps.Log)
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewMonotonic()
	}
	if deps.Cache == nil {
		deps.Cache = markets.NewCatalog()
	}

	return &Client{
		cfg:      cfg,
		venue:    venue,
		profiles: profiles,
		http:     deps.Transport,
		clock:    deps.Clock,
		cache:    deps.Cache,
		store:    deps.Store,
		log:      deps.Log.Named(venue),
		signer:   sign.Query{Secret: cfg.Credentials.Secret, RecvWindow: cfg.RecvWindow.Milliseconds()},
	}, nil
}

// ID implements exchanges.Exchange.
func (c *Client) ID() string { return c.venue }

func (c *Client) host(p Profile) string {
	if h, ok := c.cfg.Hosts[p.Name]; ok && h != "" {
		return strings.TrimSuffix(h, "/")
	}
	if p.Name == profileWallet {
		if h, ok := c.cfg.Hosts[ProfileSpot]; ok && h != "" {
			return strings.TrimSuffix(h, "/")
		}
	}
	if c.cfg.Testnet && p.TestnetHost != "" {
		return p.TestnetHost
	}
	if c.venue == IDUS && p.USHost != "" {
		return p.USHost
	}
	return p.Host
}

func (c *Client) enabled(name string) (Profile, bool) {
	for _, p := range c.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

type call struct {
	profile Profile
	method  string
	path    string
	params  url.Values
	signed  bool
	bucket  string
	cost    int
}

func (c *Client) do(ctx context.Context, in call, out any) error {
	params := in.params
	if params == nil {
		params = url.Values{}
	}
	query := params.Encode()
	headers := map[string]string{}
	if in.signed {
		if c.cfg.Credentials.Empty() {
			return exchanges.NewError(c.venue, exchanges.KindAuthentication, "%s requires apiKey and secret credentials", in.path)
		}
		query = c.signer.Sign(params, "", c.clock.Milliseconds()).WithSignature()
		headers["X-MBX-APIKEY"] = c.cfg.Credentials.APIKey
	}

	u := c.host(in.profile) + in.path
	var body []byte
	switch in.method {
	case http.MethodGet, http.MethodDelete:
		if query != "" {
			u += "?" + query
		}
	default:
		body = []byte(query)
		headers["Content-Type"] = "application/x-www-form-urlencoded"
	}

	resp, err := c.http.Do(ctx, &exchanges.Request{
		Method:   in.method,
		URL:      u,
		Headers:  headers,
		Body:     body,
		Endpoint: in.path,
		Bucket:   in.bucket,
		Cost:     in.cost,
	})
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

type apiError struct {
	Code json.Number `json:"code"`
	Msg  string      `json:"msg"`
}

func (c *Client) decode(resp *exchanges.Response, out any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		var e apiError
		_ = json.Unmarshal(resp.Body, &e)
		return c.fail(classifier(c.venue).Error(e.Code.String(), e.Msg, resp.StatusCode, resp.Body))
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errors.Wrapf(errors.ErrUnexpectedResponse, "%s: decode response: %v", c.venue, err)
	}
	return nil
}

func (c *Client) fail(err *exchanges.Error) error {
	metrics.RecordExchangeError(c.venue, string(err.Kind))
	c.log.Debugw("venue error", "kind", err.Kind, "code", err.Code, "message", err.Message)
	return err
}

// LoadMarkets implements exchanges.MarketData and refreshes the per-profile
// id index.
func (c *Client) LoadMarkets(ctx context.Context, reload bool) (exchanges.MarketCache, error) {
	cache, err := markets.Load(ctx, markets.Source{
		Venue: c.venue,
		Cache: c.cache,
		Store: c.store,
		FetchMarkets: func(ctx context.Context) ([]exchanges.Market, error) {
			return c.FetchMarkets(ctx, nil)
		},
		FetchCurrencies: func(ctx context.Context) ([]exchanges.Currency, error) {
			return c.FetchCurrencies(ctx, nil)
		},
		OnStore: c.reindex,
		Log:     c.log,
	}, reload)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	indexed := c.ids != nil
	c.mu.RUnlock()
	if !indexed {
		// the cache was filled before this client saw it
		c.reindex(cache.Markets())
	}
	return cache, nil
}

func (c *Client) reindex(list []exchanges.Market) {
	ids := make(map[idKey]exchanges.Market, len(list))
	for _, m := range list {
		k := idKey{profileOf(m), m.ID}
		if _, seen := ids[k]; !seen {
			ids[k] = m
		}
	}
	c.mu.Lock()
	c.ids = ids
	c.mu.Unlock()
}

// market resolves a canonical symbol, loading the catalog first.
func (c *Client) market(ctx context.Context, symbol string) (exchanges.Market, Profile, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return exchanges.Market{}, Profile{}, err
	}
	m, ok := c.cache.Market(symbol)
	if !ok {
		expired, err := markets.ExpiredMarket(symbol, expiryHour, deliveryID)
		if err != nil {
			return exchanges.Market{}, Profile{}, exchanges.NewError(c.venue, exchanges.KindBadSymbol, "unknown symbol %q", symbol)
		}
		m = expired
	}
	p, ok := c.enabled(profileOf(m))
	if !ok {
		return exchanges.Market{}, Profile{}, exchanges.NewError(c.venue, exchanges.KindBadSymbol, "%s belongs to the disabled %s profile", symbol, profileOf(m))
	}
	return m, p, nil
}

// resolver returns the id lookup for one profile. Unknown ids become
// placeholder markets.
func (c *Client) resolver(p Profile) func(id string) exchanges.Market {
	return func(id string) exchanges.Market {
		c.mu.RLock()
		m, ok := c.ids[idKey{p.Name, id}]
		c.mu.RUnlock()
		if ok {
			return m
		}
		return markets.Placeholder(id, "", nil)
	}
}

// profileFor picks the profile for symbol-less calls: the "type" param
// ("spot", "usdm", "coinm") or the first enabled profile.
func (c *Client) profileFor(params exchanges.Params) (Profile, error) {
	name := params.String("type")
	if name == "" {
		return c.profiles[0], nil
	}
	p, ok := c.enabled(name)
	if !ok {
		return Profile{}, exchanges.NewError(c.venue, exchanges.KindBadRequest, "profile %q is not enabled", name)
	}
	return p, nil
}

// query merges passthrough params after the typed ones.
func query(dst url.Values, extra exchanges.Params) url.Values {
	if dst == nil {
		dst = url.Values{}
	}
	for k, v := range extra {
		dst.Set(k, stringify(v))
	}
	return dst
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return strings.Trim(string(data), `"`)
	}
}
