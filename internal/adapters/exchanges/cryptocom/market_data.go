package cryptocom

import (
	"context"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/parse"
)

var timeframes = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1h",
	"2h":  "2h",
	"4h":  "4h",
	"12h": "12h",
	"1d":  "1D",
	"1w":  "7D",
	"2w":  "14D",
	"1M":  "1M",
}

func (c *Client) resolve(id string) exchanges.Market { return c.marketByID(id) }

// FetchTicker implements exchanges.MarketData.
func (c *Client) FetchTicker(ctx context.Context, symbol string, params exchanges.Params) (*exchanges.Ticker, error) {
	m, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var res listResult
	q := mergeQuery(url.Values{"instrument_name": {m.ID}}, params)
	if err := c.publicGet(ctx, "public/get-tickers", q, &res); err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return nil, exchanges.NewError(ID, exchanges.KindBadSymbol, "no ticker for %s", symbol)
	}
	t, err := parseTicker(res.Data[0], c.resolve)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FetchTickers implements exchanges.MarketData. An empty symbols list
// returns every ticker.
func (c *Client) FetchTickers(ctx context.Context, symbols []string, params exchanges.Params) ([]exchanges.Ticker, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		m, err := c.market(ctx, s)
		if err != nil {
			return nil, err
		}
		want[m.Symbol] = true
	}

	var res listResult
	if err := c.publicGet(ctx, "public/get-tickers", mergeQuery(url.Values{}, params), &res); err != nil {
		return nil, err
	}
	out := make([]exchanges.Ticker, 0, len(res.Data))
	for _, raw := range res.Data {
		t, err := parseTicker(raw, c.resolve)
		if err != nil {
			return nil, err
		}
		if len(want) == 0 || want[t.Symbol] {
			out = append(out, t)
		}
	}
	return out, nil
}

// FetchOrderBook implements exchanges.MarketData.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int, params exchanges.Params) (*exchanges.OrderBook, error) {
	m, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"instrument_name": {m.ID}}
	if limit > 0 {
		q.Set("depth", strconv.Itoa(limit))
	}
	var res listResult
	if err := c.publicGet(ctx, "public/get-book", mergeQuery(q, params), &res); err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return &exchanges.OrderBook{Symbol: m.Symbol}, nil
	}
	book, err := parseOrderBook(res.Data[0], m.Symbol)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func windowQuery(q url.Values, opts exchanges.FetchOptions, sinceKey, untilKey, limitKey string) url.Values {
	if !opts.Since.IsZero() {
		q.Set(sinceKey, millis(opts.Since))
	}
	if !opts.Until.IsZero() {
		q.Set(untilKey, millis(opts.Until))
	}
	if opts.Limit > 0 && limitKey != "" {
		q.Set(limitKey, strconv.Itoa(opts.Limit))
	}
	return mergeQuery(q, opts.Params)
}

// FetchTrades implements exchanges.MarketData.
func (c *Client) FetchTrades(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Trade, error) {
	m, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := windowQuery(url.Values{"instrument_name": {m.ID}}, opts, "start_ts", "end_ts", "count")
	var res listResult
	if err := c.publicGet(ctx, "public/get-trades", q, &res); err != nil {
		return nil, err
	}
	return parseTrades(res.Data, c.resolve)
}

func parseTrades(list []json.RawMessage, resolve resolver) ([]exchanges.Trade, error) {
	out := make([]exchanges.Trade, 0, len(list))
	for _, raw := range list {
		t, err := parseTrade(raw, resolve)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// FetchOHLCV implements exchanges.MarketData.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, opts exchanges.FetchOptions) ([]exchanges.OHLCV, error) {
	m, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	tf, ok := timeframes[timeframe]
	if !ok {
		return nil, exchanges.NewError(ID, exchanges.KindBadRequest, "unsupported timeframe %q", timeframe)
	}
	q := windowQuery(url.Values{"instrument_name": {m.ID}, "timeframe": {tf}}, opts, "start_ts", "end_ts", "count")
	var res listResult
	if err := c.publicGet(ctx, "public/get-candlestick", q, &res); err != nil {
		return nil, err
	}
	out := make([]exchanges.OHLCV, 0, len(res.Data))
	for _, raw := range res.Data {
		candle, err := parseCandle(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, candle)
	}
	return out, nil
}

func (c *Client) swap(ctx context.Context, symbol, op string) (exchanges.Market, error) {
	m, err := c.market(ctx, symbol)
	if err != nil {
		return exchanges.Market{}, err
	}
	if !m.Swap {
		return exchanges.Market{}, exchanges.NewError(ID, exchanges.KindBadSymbol, "%s() supports swap markets only", op)
	}
	return m, nil
}

// FetchFundingRate implements exchanges.Derivatives. The venue reports the
// estimated rate; the funding time is the next hourly boundary.
func (c *Client) FetchFundingRate(ctx context.Context, symbol string, params exchanges.Params) (*exchanges.FundingRate, error) {
	m, err := c.swap(ctx, symbol, "fetchFundingRate")
	if err != nil {
		return nil, err
	}
	q := mergeQuery(url.Values{
		"instrument_name": {m.ID},
		"valuation_type":  {"estimated_funding_rate"},
		"count":           {"1"},
	}, params)
	var res listResult
	if err := c.publicGet(ctx, "public/get-valuations", q, &res); err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return nil, exchanges.NewError(ID, exchanges.KindExchangeError, "no funding rate for %s", symbol)
	}
	fr, err := parseFundingRate(res.Data[0], m.Symbol)
	if err != nil {
		return nil, err
	}
	return &fr, nil
}

// FetchFundingRateHistory implements exchanges.Derivatives. Results are
// sorted ascending before the window is applied.
func (c *Client) FetchFundingRateHistory(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.FundingRate, error) {
	m, err := c.swap(ctx, symbol, "fetchFundingRateHistory")
	if err != nil {
		return nil, err
	}
	q := windowQuery(url.Values{
		"instrument_name": {m.ID},
		"valuation_type":  {"funding_hist"},
	}, opts, "start_ts", "end_ts", "count")
	var res listResult
	if err := c.publicGet(ctx, "public/get-valuations", q, &res); err != nil {
		return nil, err
	}
	out := make([]exchanges.FundingRate, 0, len(res.Data))
	for _, raw := range res.Data {
		fr, err := parseFundingRate(raw, m.Symbol)
		if err != nil {
			return nil, err
		}
		// historical entries are realized payments at their own timestamp
		fr.FundingTimestamp = fr.Timestamp
		out = append(out, fr)
	}
	key := func(f exchanges.FundingRate) time.Time { return f.Timestamp }
	parse.SortByTime(out, key)
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}

// FetchSettlementHistory implements exchanges.Derivatives for expired
// futures and options.
func (c *Client) FetchSettlementHistory(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Settlement, error) {
	instType := "FUTURE"
	var wantID string
	if symbol != "" {
		m, err := c.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if !m.Future && !m.Option {
			return nil, exchanges.NewError(ID, exchanges.KindBadSymbol, "fetchSettlementHistory() supports futures and options only")
		}
		if m.Option {
			instType = "OPTION"
		}
		wantID = m.ID
	}
	if t := opts.Params.String("instrument_type"); t != "" {
		instType = t
	}

	q := mergeQuery(url.Values{"instrument_type": {instType}}, opts.Params.Without("instrument_type"))
	var res listResult
	if err := c.publicGet(ctx, "public/get-expired-settlement-price", q, &res); err != nil {
		return nil, err
	}
	out := make([]exchanges.Settlement, 0, len(res.Data))
	for _, raw := range res.Data {
		s, id, err := parseSettlement(raw, c.resolveContract)
		if err != nil {
			return nil, err
		}
		if wantID != "" && id != wantID {
			continue
		}
		out = append(out, s)
	}
	key := func(s exchanges.Settlement) time.Time { return s.Timestamp }
	parse.SortByTime(out, key)
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}

// resolveContract is marketByID for ids of delisted dated contracts, which
// are rebuilt from the id itself when possible.
func (c *Client) resolveContract(id string) exchanges.Market {
	if m, ok := c.cache.Market(id); ok {
		return m
	}
	if m, ok := contractFromID(id); ok {
		return m
	}
	return c.marketByID(id)
}
