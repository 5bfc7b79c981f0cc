// Package bybit adapts the Bybit v5 unified REST API. Spot, linear and
// inverse categories share one client; wallet transfers, deposits and
// withdrawals are not wired and report NotSupported.
package bybit

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
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

// ID is the venue identifier.
const ID = "bybit"

const (
	baseURL    = "https://api.bybit.com"
	testnetURL = "https://api-testnet.bybit.com"

	defaultRecvWindow = 5 * time.Second
	// orderLinkId is limited to 36 characters.
	clientOrderIDLength = 36
	// Dated contracts deliver at 08:00 UTC.
	expiryHour      = 8
	fundingInterval = 8 * time.Hour
	pageLimit       = 1000
)

// Categories.
const (
	CategorySpot    = "spot"
	CategoryLinear  = "linear"
	CategoryInverse = "inverse"
)

// Config configures the adapter.
type Config struct {
	Credentials exchanges.Credentials
	Testnet     bool
	// BaseURL overrides the production or testnet host.
	BaseURL string
	// Categories lists the enabled product families; empty enables spot,
	// linear and inverse.
	Categories          []string
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
	category string
	id       string
}

// Client implements exchanges.Exchange for Bybit.
type Client struct {
	exchanges.Unsupported

	cfg        Config
	categories []string
	http       exchanges.Transport
	clock      exchanges.Clock
	cache      exchanges.MarketCache
	store      exchanges.MarketStore
	log        *logger.Logger
	signer     sign.Header

	mu  sync.RWMutex
	ids map[idKey]exchanges.Market
}

var _ exchanges.Exchange = (*Client)(nil)

// New builds the adapter. Unknown categories are rejected.
func New(cfg Config, deps Deps) (*Client, error) {
	if (cfg.Credentials.APIKey == "") != (cfg.Credentials.Secret == "") {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s: api key and secret must be set together", ID)
	}
	categories := cfg.Categories
	if len(categories) == 0 {
		categories = []string{CategorySpot, CategoryLinear, CategoryInverse}
	}
	for _, cat := range categories {
		switch cat {
		case CategorySpot, CategoryLinear, CategoryInverse:
		default:
			return nil, errors.Wrapf(errors.ErrInvalidInput, "%s: unknown category %q", ID, cat)
		}
	}
	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = defaultRecvWindow
	}

	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Transport == nil {
		deps.Transport = transport.New(ID, transport.Config{}, deps.Log)
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewMonotonic()
	}
	if deps.Cache == nil {
		deps.Cache = markets.NewCatalog()
	}

	return &Client{
		Unsupported: exchanges.Unsupported{Venue: ID},
		cfg:         cfg,
		categories:  categories,
		http:        deps.Transport,
		clock:       deps.Clock,
		cache:       deps.Cache,
		store:       deps.Store,
		log:         deps.Log.Named(ID),
		signer: sign.Header{
			APIKey:     cfg.Credentials.APIKey,
			Secret:     cfg.Credentials.Secret,
			RecvWindow: cfg.RecvWindow.Milliseconds(),
		},
	}, nil
}

// ID implements exchanges.Exchange.
func (c *Client) ID() string { return ID }

func (c *Client) host() string {
	switch {
	case c.cfg.BaseURL != "":
		return strings.TrimSuffix(c.cfg.BaseURL, "/")
	case c.cfg.Testnet:
		return testnetURL
	default:
		return baseURL
	}
}

func (c *Client) enabled(category string) bool {
	for _, cat := range c.categories {
		if cat == category {
			return true
		}
	}
	return false
}

// envelope wraps every v5 reply.
type envelope struct {
	RetCode    json.Number     `json:"retCode"`
	RetMsg     string          `json:"retMsg"`
	Result     json.RawMessage `json:"result"`
	RetExtInfo json.RawMessage `json:"retExtInfo"`
	Time       int64           `json:"time"`
}

type call struct {
	method string
	path   string
	query  url.Values
	body   map[string]any
	signed bool
	bucket string
	cost   int
}

// do runs one v5 call and returns the envelope. Reads carry their
// parameters in the query; writes send a JSON body.
func (c *Client) do(ctx context.Context, in call) (*envelope, error) {
	u := c.host() + in.path
	query := ""
	if len(in.query) > 0 {
		query = in.query.Encode()
		u += "?" + query
	}
	var body []byte
	if in.body != nil {
		data, err := json.Marshal(in.body)
		if err != nil {
			return nil, errors.Wrap(err, "bybit: encode body")
		}
		body = data
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if in.signed {
		if c.cfg.Credentials.Empty() {
			return nil, exchanges.NewError(ID, exchanges.KindAuthentication, "%s requires apiKey and secret credentials", in.path)
		}
		ts := c.clock.Milliseconds()
		payload := query
		if in.method != http.MethodGet {
			payload = string(body)
		}
		headers["X-BAPI-API-KEY"] = c.cfg.Credentials.APIKey
		headers["X-BAPI-TIMESTAMP"] = strconv.FormatInt(ts, 10)
		headers["X-BAPI-RECV-WINDOW"] = strconv.FormatInt(c.signer.RecvWindow, 10)
		headers["X-BAPI-SIGN-TYPE"] = "2"
		headers["X-BAPI-SIGN"] = c.signer.Sign(ts, payload)
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
		return nil, err
	}

	var env envelope
	decodeErr := json.Unmarshal(resp.Body, &env)
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.fail(classifier.Error(codeOf(env.RetCode), env.RetMsg, resp.StatusCode, resp.Body))
	}
	if decodeErr != nil {
		return nil, errors.Wrapf(errors.ErrUnexpectedResponse, "bybit: decode response: %v", decodeErr)
	}
	if code := codeOf(env.RetCode); code != "" {
		return nil, c.fail(classifier.Error(code, env.RetMsg, resp.StatusCode, resp.Body))
	}
	return &env, nil
}

// codeOf returns "" for success.
func codeOf(n json.Number) string {
	s := n.String()
	if s == "0" {
		return ""
	}
	return s
}

// result decodes the envelope result into out.
func (c *Client) result(ctx context.Context, in call, out any) error {
	env, err := c.do(ctx, in)
	if err != nil {
		return err
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return unexpected(in.path, err)
	}
	return nil
}

func (c *Client) fail(err *exchanges.Error) error {
	metrics.RecordExchangeError(ID, string(err.Kind))
	c.log.Debugw("venue error", "kind", err.Kind, "code", err.Code, "message", err.Message)
	return err
}

func unexpected(what string, err error) error {
	return errors.Wrapf(errors.ErrUnexpectedResponse, "bybit: %s: %v", what, err)
}

// LoadMarkets implements exchanges.MarketData.
func (c *Client) LoadMarkets(ctx context.Context, reload bool) (exchanges.MarketCache, error) {
	cache, err := markets.Load(ctx, markets.Source{
		Venue: ID,
		Cache: c.cache,
		Store: c.store,
		FetchMarkets: func(ctx context.Context) ([]exchanges.Market, error) {
			return c.FetchMarkets(ctx, nil)
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
		k := idKey{categoryOf(m), m.ID}
		if _, seen := ids[k]; !seen {
			ids[k] = m
		}
	}
	c.mu.Lock()
	c.ids = ids
	c.mu.Unlock()
}

// market resolves a canonical symbol to its market and category.
func (c *Client) market(ctx context.Context, symbol string) (exchanges.Market, string, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return exchanges.Market{}, "", err
	}
	m, ok := c.cache.Market(symbol)
	if !ok {
		expired, err := markets.ExpiredMarket(symbol, expiryHour, deliveryID)
		if err != nil {
			return exchanges.Market{}, "", exchanges.NewError(ID, exchanges.KindBadSymbol, "unknown symbol %q", symbol)
		}
		m = expired
	}
	cat := categoryOf(m)
	if !c.enabled(cat) {
		return exchanges.Market{}, "", exchanges.NewError(ID, exchanges.KindBadSymbol, "%s belongs to the disabled %s category", symbol, cat)
	}
	return m, cat, nil
}

func (c *Client) requireMarket(ctx context.Context, symbol, op string) (exchanges.Market, string, error) {
	if symbol == "" {
		return exchanges.Market{}, "", exchanges.NewError(ID, exchanges.KindArgumentsRequired, "%s() requires a symbol", op)
	}
	return c.market(ctx, symbol)
}

func (c *Client) resolver(category string) resolver {
	return func(id string) exchanges.Market {
		c.mu.RLock()
		m, ok := c.ids[idKey{category, id}]
		c.mu.RUnlock()
		if ok {
			return m
		}
		return markets.Placeholder(id, "", nil)
	}
}

// categoryFor picks the category of symbol-less calls from the "type"
// param, defaulting to the first enabled one.
func (c *Client) categoryFor(params exchanges.Params) (string, error) {
	cat := params.String("type")
	if cat == "" {
		return c.categories[0], nil
	}
	if !c.enabled(cat) {
		return "", exchanges.NewError(ID, exchanges.KindBadRequest, "category %q is not enabled", cat)
	}
	return cat, nil
}

func categoryOf(m exchanges.Market) string {
	switch {
	case !m.Contract:
		return CategorySpot
	case m.Inverse:
		return CategoryInverse
	default:
		return CategoryLinear
	}
}

var monthCodes = [...]string{"F", "G", "H", "J", "K", "M", "N", "Q", "U", "V", "X", "Z"}

// deliveryID renders a dated contract id: BTC-29MAR24 for linear and
// BTCUSDH24 for inverse.
func deliveryID(s markets.Parts) string {
	if s.Settle == s.Quote {
		return s.Base + "-" + strings.ToUpper(s.Expiry.Format("02Jan06"))
	}
	return s.Base + s.Quote + monthCodes[s.Expiry.Month()-1] + s.Expiry.Format("06")
}

// withParams merges passthrough params into a query.
func withParams(q url.Values, params exchanges.Params) url.Values {
	if q == nil {
		q = url.Values{}
	}
	for k, v := range params {
		q.Set(k, stringify(v))
	}
	return q
}

// withBody merges passthrough params into a JSON body.
func withBody(body map[string]any, params exchanges.Params) map[string]any {
	for k, v := range params {
		body[k] = v
	}
	return body
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
