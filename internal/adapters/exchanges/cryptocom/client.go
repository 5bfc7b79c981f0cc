// Package cryptocom adapts the Crypto.com Exchange v1 REST API.
package cryptocom

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
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
const ID = "cryptocom"

const (
	baseURL    = "https://api.crypto.com/exchange/v1/"
	sandboxURL = "https://uat-api.3ona.co/exchange/v1/"

	// Dated contracts settle at 08:00 UTC.
	expiryHour = 8
	// Perpetuals fund hourly.
	fundingInterval = time.Hour
	// Instrument ids are BASE_QUOTE for spot.
	spotDelimiter = "_"
	// client_oid is limited to 36 characters.
	clientOrderIDLength = 36
)

// Config configures the adapter.
type Config struct {
	Credentials exchanges.Credentials
	Sandbox     bool
	// BaseURL overrides the production or sandbox endpoint.
	BaseURL string
	// MarketBuyRequiresPrice rejects market buys that carry neither a price
	// nor a cost, since the venue bills market buys by notional.
	MarketBuyRequiresPrice bool
	DefaultMarginMode      exchanges.MarginMode
	ClientOrderIDPrefix    string
}

// Deps are the shared collaborators. Zero values get in-process defaults.
type Deps struct {
	Transport exchanges.Transport
	Clock     exchanges.Clock
	Cache     exchanges.MarketCache
	Store     exchanges.MarketStore
	Log       *logger.Logger
}

// Client implements exchanges.Exchange for Crypto.com.
type Client struct {
	cfg    Config
	http   exchanges.Transport
	clock  exchanges.Clock
	cache  exchanges.MarketCache
	store  exchanges.MarketStore
	log    *logger.Logger
	signer sign.Payload
}

var _ exchanges.Exchange = (*Client)(nil)

// New builds the adapter.
func New(cfg Config, deps Deps) *Client {
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
		cfg:    cfg,
		http:   deps.Transport,
		clock:  deps.Clock,
		cache:  deps.Cache,
		store:  deps.Store,
		log:    deps.Log.Named(ID),
		signer: sign.Payload{APIKey: cfg.Credentials.APIKey, Secret: cfg.Credentials.Secret},
	}
}

// ID implements exchanges.Exchange.
func (c *Client) ID() string { return ID }

func (c *Client) baseURL() string {
	switch {
	case c.cfg.BaseURL != "":
		return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/"
	case c.cfg.Sandbox:
		return sandboxURL
	default:
		return baseURL
	}
}

type envelope struct {
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Code    json.Number     `json:"code"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// listResult is the {"data": [...]} shape most endpoints return.
type listResult struct {
	Data []json.RawMessage `json:"data"`
}

func (c *Client) publicGet(ctx context.Context, method string, params url.Values, out any) error {
	u := c.baseURL() + method
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	resp, err := c.http.Do(ctx, &exchanges.Request{Method: http.MethodGet, URL: u, Endpoint: method})
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

func (c *Client) privatePost(ctx context.Context, method string, params map[string]any, bucket string, out any) error {
	if c.cfg.Credentials.Empty() {
		return exchanges.NewError(ID, exchanges.KindAuthentication, "%s requires apiKey and secret credentials", method)
	}
	body, err := c.signer.Body(method, c.clock.Milliseconds(), params)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(ctx, &exchanges.Request{
		Method:   http.MethodPost,
		URL:      c.baseURL() + method,
		Headers:  map[string]string{"Content-Type": "application/json"},
		Body:     body,
		Endpoint: method,
		Bucket:   bucket,
	})
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

func (c *Client) decode(resp *exchanges.Response, out any) error {
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return c.fail(classifier.Error("", "", resp.StatusCode, resp.Body))
		}
		return &exchanges.Error{Kind: exchanges.KindExchangeError, Exchange: ID, Message: "malformed response", Body: string(resp.Body), Err: err}
	}

	code := env.Code.String()
	if (code != "" && code != "0") || resp.StatusCode >= http.StatusBadRequest {
		if code == "0" {
			code = ""
		}
		return c.fail(classifier.Error(code, env.Message, resp.StatusCode, resp.Body))
	}

	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return errors.Wrapf(errors.ErrUnexpectedResponse, "%s: decode %s result: %v", ID, env.Method, err)
	}
	return nil
}

func (c *Client) fail(err *exchanges.Error) error {
	metrics.RecordExchangeError(ID, string(err.Kind))
	c.log.Debugw("venue error", "kind", err.Kind, "code", err.Code, "message", err.Message)
	return err
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// merge copies extra over dst; passthrough params are applied last.
func merge(dst map[string]any, extra exchanges.Params) map[string]any {
	for k, v := range extra {
		dst[k] = v
	}
	return dst
}

// mergeQuery is merge for public query strings.
func mergeQuery(dst url.Values, extra exchanges.Params) url.Values {
	for k, v := range extra {
		switch val := v.(type) {
		case string:
			dst.Set(k, val)
		case int:
			dst.Set(k, strconv.Itoa(val))
		case int64:
			dst.Set(k, strconv.FormatInt(val, 10))
		case bool:
			dst.Set(k, strconv.FormatBool(val))
		default:
			if data, err := json.Marshal(val); err == nil {
				dst.Set(k, strings.Trim(string(data), `"`))
			}
		}
	}
	return dst
}
