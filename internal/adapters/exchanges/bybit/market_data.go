package bybit

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/parse"
)

var timeframes = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W", "1M": "M",
}

// page is the list shape most v5 results share.
type page struct {
	Category       string            `json:"category"`
	List           []json.RawMessage `json:"list"`
	NextPageCursor string            `json:"nextPageCursor"`
}

// listPage runs a list call and also returns the server time of the reply.
func (c *Client) listPage(ctx context.Context, in call) (page, int64, error) {
	env, err := c.do(ctx, in)
	if err != nil {
		return page{}, 0, err
	}
	var out page
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &out); err != nil {
			return page{}, 0, unexpected(in.path, err)
		}
	}
	return out, env.Time, nil
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// window adds startTime, endTime and limit.
func window(q url.Values, opts exchanges.FetchOptions) url.Values {
	if !opts.Since.IsZero() {
		q.Set("startTime", millis(opts.Since))
	}
	if !opts.Until.IsZero() {
		q.Set("endTime", millis(opts.Until))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	return q
}

// FetchTicker implements exchanges.MarketData.
func (c *Client) FetchTicker(ctx context.Context, symbol string, params exchanges.Params) (*exchanges.Ticker, error) {
	m, cat, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := withParams(url.Values{"category": {cat}, "symbol": {m.ID}}, params)
	res, ts, err := c.listPage(ctx, call{method: http.MethodGet, path: "/v5/market/tickers", query: q, cost: 1})
	if err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return nil, exchanges.NewError(ID, exchanges.KindBadSymbol, "no ticker for %s", symbol)
	}
	t, err := parseTicker(res.List[0], cat, ts, c.resolver(cat))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FetchTickers implements exchanges.MarketData. Each involved category is
// queried once; an empty symbols list returns every enabled category.
func (c *Client) FetchTickers(ctx context.Context, symbols []string, params exchanges.Params) ([]exchanges.Ticker, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(symbols))
	involved := c.categories
	if len(symbols) > 0 {
		involved = nil
		seen := map[string]bool{}
		for _, s := range symbols {
			m, cat, err := c.market(ctx, s)
			if err != nil {
				return nil, err
			}
			want[m.Symbol] = true
			if !seen[cat] {
				seen[cat] = true
				involved = append(involved, cat)
			}
		}
	}

	slots := make([][]exchanges.Ticker, len(involved))
	wp := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, cat := range involved {
		wp.Go(func(ctx context.Context) error {
			res, ts, err := c.listPage(ctx, call{method: http.MethodGet, path: "/v5/market/tickers", query: withParams(url.Values{"category": {cat}}, params), cost: 1})
			if err != nil {
				return err
			}
			list := make([]exchanges.Ticker, 0, len(res.List))
			for _, raw := range res.List {
				t, err := parseTicker(raw, cat, ts, c.resolver(cat))
				if err != nil {
					return err
				}
				if len(want) > 0 && !want[t.Symbol] {
					continue
				}
				list = append(list, t)
			}
			slots[i] = list
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		return nil, err
	}
	out := []exchanges.Ticker{}
	for _, list := range slots {
		out = append(out, list...)
	}
	parse.SortTickers(out)
	return out, nil
}

// FetchOrderBook implements exchanges.MarketData.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int, params exchanges.Params) (*exchanges.OrderBook, error) {
	m, cat, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"category": {cat}, "symbol": {m.ID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var raw json.RawMessage
	if err := c.result(ctx, call{method: http.MethodGet, path: "/v5/market/orderbook", query: withParams(q, params), cost: 1}, &raw); err != nil {
		return nil, err
	}
	book, err := parseOrderBook(raw, m.Symbol)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// FetchTrades implements exchanges.MarketData from the recent trades list.
func (c *Client) FetchTrades(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Trade, error) {
	m, cat, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"category": {cat}, "symbol": {m.ID}}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	res, _, err := c.listPage(ctx, call{method: http.MethodGet, path: "/v5/market/recent-trade", query: withParams(q, opts.Params), cost: 1})
	if err != nil {
		return nil, err
	}
	return trades(res.List, m, opts)
}

func trades(rows []json.RawMessage, m exchanges.Market, opts exchanges.FetchOptions) ([]exchanges.Trade, error) {
	out := make([]exchanges.Trade, 0, len(rows))
	for _, raw := range rows {
		t, err := parseTrade(raw, m)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	key := func(t exchanges.Trade) time.Time { return t.Timestamp }
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}

// FetchOHLCV implements exchanges.MarketData. The venue lists candles
// newest first; they are returned oldest first.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, opts exchanges.FetchOptions) ([]exchanges.OHLCV, error) {
	interval, ok := timeframes[timeframe]
	if !ok {
		return nil, exchanges.NewError(ID, exchanges.KindBadRequest, "unsupported timeframe %q", timeframe)
	}
	m, cat, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"category": {cat}, "symbol": {m.ID}, "interval": {interval}}
	if !opts.Since.IsZero() {
		q.Set("start", millis(opts.Since))
	}
	if !opts.Until.IsZero() {
		q.Set("end", millis(opts.Until))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	var res struct {
		List json.RawMessage `json:"list"`
	}
	if err := c.result(ctx, call{method: http.MethodGet, path: "/v5/market/kline", query: withParams(q, opts.Params), cost: 1}, &res); err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return []exchanges.OHLCV{}, nil
	}
	candles, err := parse.Candles(res.List)
	if err != nil {
		return nil, unexpected("kline", err)
	}
	parse.SortByTime(candles, func(k exchanges.OHLCV) time.Time { return k.Timestamp })
	return candles, nil
}

// swapMarket resolves a symbol that must be a perpetual.
func (c *Client) swapMarket(ctx context.Context, symbol, op string) (exchanges.Market, string, error) {
	m, cat, err := c.requireMarket(ctx, symbol, op)
	if err != nil {
		return exchanges.Market{}, "", err
	}
	if !m.Swap {
		return exchanges.Market{}, "", exchanges.NewError(ID, exchanges.KindBadSymbol, "%s() supports swap markets only, %s is %s", op, symbol, m.Type)
	}
	return m, cat, nil
}

// FetchFundingRate implements exchanges.Derivatives from the contract
// ticker, which carries the current rate and the next funding time.
func (c *Client) FetchFundingRate(ctx context.Context, symbol string, params exchanges.Params) (*exchanges.FundingRate, error) {
	m, cat, err := c.swapMarket(ctx, symbol, "fetchFundingRate")
	if err != nil {
		return nil, err
	}
	q := withParams(url.Values{"category": {cat}, "symbol": {m.ID}}, params)
	res, ts, err := c.listPage(ctx, call{method: http.MethodGet, path: "/v5/market/tickers", query: q, cost: 1})
	if err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return nil, exchanges.NewError(ID, exchanges.KindBadSymbol, "no ticker for %s", symbol)
	}
	fr, err := parseFundingRate(res.List[0], ts, c.resolver(cat))
	if err != nil {
		return nil, err
	}
	return &fr, nil
}

// FetchFundingRateHistory implements exchanges.Derivatives.
func (c *Client) FetchFundingRateHistory(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.FundingRate, error) {
	m, cat, err := c.swapMarket(ctx, symbol, "fetchFundingRateHistory")
	if err != nil {
		return nil, err
	}
	q := window(url.Values{"category": {cat}, "symbol": {m.ID}}, opts)
	res, _, err := c.listPage(ctx, call{method: http.MethodGet, path: "/v5/market/funding/history", query: withParams(q, opts.Params), cost: 1})
	if err != nil {
		return nil, err
	}
	out := make([]exchanges.FundingRate, 0, len(res.List))
	for _, raw := range res.List {
		fr, err := parseFundingHistory(raw, c.resolver(cat))
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	key := func(f exchanges.FundingRate) time.Time { return f.Timestamp }
	parse.SortByTime(out, key)
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}
