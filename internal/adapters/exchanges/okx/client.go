// Package okx adapts the OKX v5 REST API. Spot, perpetual swap and dated
// futures instruments share one client; deposits, withdrawals and transfers
// are not wired and report NotSupported.
package okx

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

// ID is the venue identifier.
const ID = "okx"

const (
	baseURL = "https://www.okx.com"

	// clOrdId allows up to 32 alphanumerics.
	clientOrderIDLength = 32
	// Dated contracts deliver at 08:00 UTC.
	expiryHour      = 8
	fundingInterval = 8 * time.Hour
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Instrument types.
const (
	InstSpot    = "SPOT"
	InstSwap    = "SWAP"
	InstFutures = "FUTURES"
)

// Config configures the adapter.
type Config struct {
	// Credentials.Password carries the API passphrase.
	Credentials exchanges.Credentials
	// Testnet routes orders to the demo trading environment.
	Testnet bool
	BaseURL string
	// InstTypes lists the enabled instrument types; empty enables spot,
	// swaps and futures.
	InstTypes           []string
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

// Client implements exchanges.Exchange for OKX.
type Client struct {
	exchanges.Unsupported

	cfg       Config
	instTypes []string
	http      exchanges.Transport
	clock     exchanges.Clock
	cache     exchanges.MarketCache
	store     exchanges.MarketStore
	log       *logger.Logger
	signer    sign.Prehash

	mu  sync.RWMutex
	ids map[string]exchanges.Market
}

var _ exchanges.Exchange = (*Client)(nil)

// New builds the adapter. Key, secret and passphrase must be set together.
func New(cfg Config, deps Deps) (*Client, error) {
	creds := cfg.Credentials
	if (creds.APIKey == "") != (creds.Secret == "") || (creds.APIKey == "") != (creds.Password == "") {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s: api key, secret and passphrase must be set together", ID)
	}
	instTypes := []string{InstSpot, InstSwap, InstFutures}
	if len(cfg.InstTypes) > 0 {
		instTypes = make([]string, 0, len(cfg.InstTypes))
		for _, typ := range cfg.InstTypes {
			upper := strings.ToUpper(typ)
			switch upper {
			case InstSpot, InstSwap, InstFutures:
			default:
				return nil, errors.Wrapf(errors.ErrInvalidInput, "%s: unknown instrument type %q", ID, typ)
			}
			instTypes = append(instTypes, upper)
		}
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
		instTypes:   instTypes,
		http:        deps.Transport,
		clock:       deps.Clock,
		cache:       deps.Cache,
		store:       deps.Store,
		log:         deps.Log.Named(ID),
		signer:      sign.Prehash{Secret: creds.Secret},
	}, nil
}

// ID implements exchanges.Exchange.
func (c *Client) ID() string { return ID }

func (c *Client) host() string {
	if c.cfg.BaseURL != "" {
		return strings.TrimSuffix(c.cfg.BaseURL, "/")
	}
	return baseURL
}

func (c *Client) enabled(instType string) bool {
	for _, typ := range c.instTypes {
		if typ == instType {
			return true
		}
	}
	return false
}

// envelope wraps every v5 reply; code "0" is success.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// itemResult is the per-entry outcome order endpoints report in data.
type itemResult struct {
	SCode string `json:"sCode"`
	SMsg  string `json:"sMsg"`
}

type call struct {
	method string
	path   string
	query  url.Values
	body   any
	signed bool
	bucket string
	cost   int
}

// do runs one v5 call. Signed calls carry the base64 prehash signature,
// the timestamp and the passphrase in OK-ACCESS headers.
func (c *Client) do(ctx context.Context, in call) (*envelope, error) {
	requestPath := in.path
	if len(in.query) > 0 {
		requestPath += "?" + in.query.Encode()
	}
	var body []byte
	if in.body != nil {
		data, err := json.Marshal(in.body)
		if err != nil {
			return nil, errors.Wrap(err, "okx: encode body")
		}
		body = data
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if c.cfg.Testnet {
		headers["x-simulated-trading"] = "1"
	}
	if in.signed {
		creds := c.cfg.Credentials
		if creds.Empty() || creds.Password == "" {
			return nil, exchanges.NewError(ID, exchanges.KindAuthentication, "%s requires apiKey, secret and password credentials", in.path)
		}
		ts := time.UnixMilli(c.clock.Milliseconds()).UTC().Format(timestampLayout)
		headers["OK-ACCESS-KEY"] = creds.APIKey
		headers["OK-ACCESS-SIGN"] = c.signer.Sign(ts, in.method, requestPath, string(body))
		headers["OK-ACCESS-TIMESTAMP"] = ts
		headers["OK-ACCESS-PASSPHRASE"] = creds.Password
	}

	resp, err := c.http.Do(ctx, &exchanges.Request{
		Method:   in.method,
		URL:      c.host() + requestPath,
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
		return nil, c.fail(classifier.Error(env.Code, env.Msg, resp.StatusCode, resp.Body))
	}
	if decodeErr != nil {
		return nil, errors.Wrapf(errors.ErrUnexpectedResponse, "okx: decode response: %v", decodeErr)
	}
	if env.Code != "" && env.Code != "0" {
		code, msg := env.Code, env.Msg
		if item, ok := firstRejected(env.Data); ok {
			code, msg = item.SCode, item.SMsg
		}
		return nil, c.fail(classifier.Error(code, msg, resp.StatusCode, resp.Body))
	}
	return &env, nil
}

// firstRejected returns the first entry with a non-zero sCode.
func firstRejected(data json.RawMessage) (itemResult, bool) {
	var items []itemResult
	if len(data) == 0 || json.Unmarshal(data, &items) != nil {
		return itemResult{}, false
	}
	for _, item := range items {
		if item.SCode != "" && item.SCode != "0" {
			return item, true
		}
	}
	return itemResult{}, false
}

// result decodes the envelope data into out.
func (c *Client) result(ctx context.Context, in call, out any) error {
	env, err := c.do(ctx, in)
	if err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return unexpected(in.path, err)
	}
	return nil
}

// rows decodes a data array into raw rows.
func (c *Client) rows(ctx context.Context, in call) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if err := c.result(ctx, in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) fail(err *exchanges.Error) error {
	metrics.RecordExchangeError(ID, string(err.Kind))
	c.log.Debugw("venue error", "kind", err.Kind, "code", err.Code, "message", err.Message)
	return err
}

func unexpected(what string, err error) error {
	return errors.Wrapf(errors.ErrUnexpectedResponse, "okx: %s: %v", what, err)
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
		c.reindex(cache.Markets())
	}
	return cache, nil
}

// reindex rebuilds the instId index. Instrument ids are unique across
// instrument types.
func (c *Client) reindex(list []exchanges.Market) {
	ids := make(map[string]exchanges.Market, len(list))
	for _, m := range list {
		if _, seen := ids[m.ID]; !seen {
			ids[m.ID] = m
		}
	}
	c.mu.Lock()
	c.ids = ids
	c.mu.Unlock()
}

// market resolves a canonical symbol, synthesizing delisted dated
// contracts from the symbol itself.
func (c *Client) market(ctx context.Context, symbol string) (exchanges.Market, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return exchanges.Market{}, err
	}
	m, ok := c.cache.Market(symbol)
	if !ok {
		expired, err := markets.ExpiredMarket(symbol, expiryHour, deliveryID)
		if err != nil {
			return exchanges.Market{}, exchanges.NewError(ID, exchanges.KindBadSymbol, "unknown symbol %q", symbol)
		}
		m = expired
	}
	if typ := instTypeOf(m); !c.enabled(typ) {
		return exchanges.Market{}, exchanges.NewError(ID, exchanges.KindBadSymbol, "%s belongs to the disabled %s instrument type", symbol, typ)
	}
	return m, nil
}

func (c *Client) requireMarket(ctx context.Context, symbol, op string) (exchanges.Market, error) {
	if symbol == "" {
		return exchanges.Market{}, exchanges.NewError(ID, exchanges.KindArgumentsRequired, "%s() requires a symbol", op)
	}
	return c.market(ctx, symbol)
}

// resolve maps an instId to its market; unknown ids split on "-".
func (c *Client) resolve(id string) exchanges.Market {
	c.mu.RLock()
	m, ok := c.ids[id]
	c.mu.RUnlock()
	if ok {
		return m
	}
	return markets.Placeholder(id, "-", nil)
}

// instTypeFor picks the instrument type of symbol-less calls from the
// "type" param, defaulting to the first enabled one.
func (c *Client) instTypeFor(params exchanges.Params) (string, error) {
	typ := strings.ToUpper(params.String("type"))
	if typ == "" {
		return c.instTypes[0], nil
	}
	if !c.enabled(typ) {
		return "", exchanges.NewError(ID, exchanges.KindBadRequest, "instrument type %q is not enabled", typ)
	}
	return typ, nil
}

func instTypeOf(m exchanges.Market) string {
	switch {
	case m.Future:
		return InstFutures
	case m.Contract:
		return InstSwap
	default:
		return InstSpot
	}
}

// deliveryID renders a dated contract id such as BTC-USD-240329.
func deliveryID(s markets.Parts) string {
	return s.Base + "-" + s.Quote + "-" + s.Expiry.Format("060102")
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
