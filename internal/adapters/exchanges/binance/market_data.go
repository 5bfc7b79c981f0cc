package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/markets"
	"tradegate/internal/adapters/exchanges/parse"
)

var timeframes = map[string]string{
	"1m": "1m", "3m": "3m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1h", "2h": "2h", "4h": "4h", "6h": "6h", "8h": "8h", "12h": "12h",
	"1d": "1d", "3d": "3d", "1w": "1w", "1M": "1M",
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
	m, p, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	q := query(url.Values{"symbol": {m.ID}}, params)
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + "/ticker/24hr", params: q, cost: 2}, &raw); err != nil {
		return nil, err
	}
	// COIN-M answers with a one-element array even for a single symbol.
	if rows := asList(raw); rows != nil {
		if len(rows) == 0 {
			return nil, exchanges.NewError(c.venue, exchanges.KindBadSymbol, "no ticker for %s", symbol)
		}
		raw = rows[0]
	}
	t, err := parseTicker(raw, p, c.resolver(p))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func asList(raw json.RawMessage) []json.RawMessage {
	for _, b := range raw {
		switch b {
		case ' ', '\n', '\t', '\r':
			continue
		case '[':
			var rows []json.RawMessage
			if err := json.Unmarshal(raw, &rows); err != nil {
				return nil
			}
			if rows == nil {
				rows = []json.RawMessage{}
			}
			return rows
		}
		return nil
	}
	return nil
}

// FetchTickers implements exchanges.MarketData. Each involved profile is
// queried once for all of its tickers; an empty symbols list returns every
// ticker of every enabled profile.
func (c *Client) FetchTickers(ctx context.Context, symbols []string, params exchanges.Params) ([]exchanges.Ticker, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(symbols))
	involved := c.profiles
	if len(symbols) > 0 {
		involved = nil
		seen := map[string]bool{}
		for _, s := range symbols {
			m, p, err := c.market(ctx, s)
			if err != nil {
				return nil, err
			}
			want[m.Symbol] = true
			if !seen[p.Name] {
				seen[p.Name] = true
				involved = append(involved, p)
			}
		}
	}

	slots := make([][]exchanges.Ticker, len(involved))
	wp := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, p := range involved {
		wp.Go(func(ctx context.Context) error {
			var rows []json.RawMessage
			if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + "/ticker/24hr", params: query(nil, params), cost: 40}, &rows); err != nil {
				return err
			}
			list := make([]exchanges.Ticker, 0, len(rows))
			for _, raw := range rows {
				t, err := parseTicker(raw, p, c.resolver(p))
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
	m, p, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"symbol": {m.ID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var raw json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + "/depth", params: query(q, params), cost: 5}, &raw); err != nil {
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
	m, p, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"symbol": {m.ID}}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	var rows []json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + "/trades", params: query(q, opts.Params), cost: 10}, &rows); err != nil {
		return nil, err
	}
	return trades(rows, m, opts)
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

// FetchOHLCV implements exchanges.MarketData.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, opts exchanges.FetchOptions) ([]exchanges.OHLCV, error) {
	interval, ok := timeframes[timeframe]
	if !ok {
		return nil, exchanges.NewError(c.venue, exchanges.KindBadRequest, "unsupported timeframe %q", timeframe)
	}
	m, p, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := window(url.Values{"symbol": {m.ID}, "interval": {interval}}, opts)
	var raw json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + "/klines", params: query(q, opts.Params), cost: 2}, &raw); err != nil {
		return nil, err
	}
	candles, err := parse.Candles(raw)
	if err != nil {
		return nil, unexpected("klines", err)
	}
	return candles, nil
}

// contractMarket resolves a symbol that must trade on a futures profile.
func (c *Client) contractMarket(ctx context.Context, symbol, op string) (exchanges.Market, Profile, error) {
	if symbol == "" {
		return exchanges.Market{}, Profile{}, exchanges.NewError(c.venue, exchanges.KindArgumentsRequired, "%s() requires a symbol", op)
	}
	m, p, err := c.market(ctx, symbol)
	if err != nil {
		return exchanges.Market{}, Profile{}, err
	}
	if !m.Contract {
		return exchanges.Market{}, Profile{}, exchanges.NewError(c.venue, exchanges.KindBadSymbol, "%s() supports contract markets only, %s is spot", op, symbol)
	}
	return m, p, nil
}

// FetchFundingRate implements exchanges.Derivatives from the premium index.
func (c *Client) FetchFundingRate(ctx context.Context, symbol string, params exchanges.Params) (*exchanges.FundingRate, error) {
	m, p, err := c.contractMarket(ctx, symbol, "fetchFundingRate")
	if err != nil {
		return nil, err
	}
	if !m.Swap {
		return nil, exchanges.NewError(c.venue, exchanges.KindBadSymbol, "fetchFundingRate() supports swap markets only")
	}
	var raw json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + "/premiumIndex", params: query(url.Values{"symbol": {m.ID}}, params), cost: 1}, &raw); err != nil {
		return nil, err
	}
	if rows := asList(raw); rows != nil {
		if len(rows) == 0 {
			return nil, exchanges.NewError(c.venue, exchanges.KindBadSymbol, "no premium index for %s", symbol)
		}
		raw = rows[0]
	}
	fr, err := parseFundingRate(raw, c.resolver(p))
	if err != nil {
		return nil, err
	}
	return &fr, nil
}

// FetchFundingRateHistory implements exchanges.Derivatives.
func (c *Client) FetchFundingRateHistory(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.FundingRate, error) {
	m, p, err := c.contractMarket(ctx, symbol, "fetchFundingRateHistory")
	if err != nil {
		return nil, err
	}
	q := window(url.Values{"symbol": {m.ID}}, opts)
	var rows []json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + "/fundingRate", params: query(q, opts.Params), cost: 1}, &rows); err != nil {
		return nil, err
	}
	out := make([]exchanges.FundingRate, 0, len(rows))
	for _, raw := range rows {
		fr, err := parseFundingHistory(raw, c.resolver(p))
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	key := func(f exchanges.FundingRate) time.Time { return f.Timestamp }
	parse.SortByTime(out, key)
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}

// FetchSettlementHistory implements exchanges.Derivatives from the
// delivery price list of the contract's pair. Each delivery is reported
// under the dated contract that settled.
func (c *Client) FetchSettlementHistory(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Settlement, error) {
	m, p, err := c.contractMarket(ctx, symbol, "fetchSettlementHistory")
	if err != nil {
		return nil, err
	}
	pair := m.BaseID + m.QuoteID
	if m.BaseID == "" {
		pair = m.Base + m.Quote
	}
	q := url.Values{"pair": {pair}}
	var rows []json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: "/futures/data/delivery-price", params: query(q, opts.Params), cost: 1}, &rows); err != nil {
		return nil, err
	}
	out := make([]exchanges.Settlement, 0, len(rows))
	for _, raw := range rows {
		var in struct {
			DeliveryTime  parse.Timestamp `json:"deliveryTime"`
			DeliveryPrice parse.Number    `json:"deliveryPrice"`
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, unexpected("delivery price", err)
		}
		ts := in.DeliveryTime.Time()
		out = append(out, exchanges.Settlement{
			Symbol:    markets.Symbol(markets.Parts{Base: m.Base, Quote: m.Quote, Settle: m.Settle, Expiry: ts}),
			Price:     in.DeliveryPrice.Decimal(),
			Timestamp: ts,
			Info:      raw,
		})
	}
	key := func(s exchanges.Settlement) time.Time { return s.Timestamp }
	parse.SortByTime(out, key)
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}
