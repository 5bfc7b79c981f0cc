package okx

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
	"1m": "1m", "3m": "3m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1H", "2h": "2H", "4h": "4H", "6h": "6Hutc", "12h": "12Hutc",
	"1d": "1Dutc", "1w": "1Wutc", "1M": "1Mutc",
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// window adds begin, end and limit as the history endpoints name them.
func window(q url.Values, opts exchanges.FetchOptions) url.Values {
	if !opts.Since.IsZero() {
		q.Set("begin", millis(opts.Since))
	}
	if !opts.Until.IsZero() {
		q.Set("end", millis(opts.Until))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	return q
}

// cursor bounds pagination by timestamp: before returns newer rows, after
// older ones.
func cursor(q url.Values, opts exchanges.FetchOptions) url.Values {
	if !opts.Since.IsZero() {
		q.Set("before", strconv.FormatInt(opts.Since.UnixMilli()-1, 10))
	}
	if !opts.Until.IsZero() {
		q.Set("after", strconv.FormatInt(opts.Until.UnixMilli()+1, 10))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	return q
}

// FetchTicker implements exchanges.MarketData.
func (c *Client) FetchTicker(ctx context.Context, symbol string, params exchanges.Params) (*exchanges.Ticker, error) {
	m, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/market/ticker", query: withParams(url.Values{"instId": {m.ID}}, params), cost: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, exchanges.NewError(ID, exchanges.KindBadSymbol, "no ticker for %s", symbol)
	}
	t, err := parseTicker(rows[0], c.resolve)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FetchTickers implements exchanges.MarketData. Each involved instrument
// type is queried once; an empty symbols list returns every enabled type.
func (c *Client) FetchTickers(ctx context.Context, symbols []string, params exchanges.Params) ([]exchanges.Ticker, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(symbols))
	involved := c.instTypes
	if len(symbols) > 0 {
		involved = nil
		seen := map[string]bool{}
		for _, s := range symbols {
			m, err := c.market(ctx, s)
			if err != nil {
				return nil, err
			}
			want[m.Symbol] = true
			if typ := instTypeOf(m); !seen[typ] {
				seen[typ] = true
				involved = append(involved, typ)
			}
		}
	}

	slots := make([][]exchanges.Ticker, len(involved))
	wp := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, typ := range involved {
		wp.Go(func(ctx context.Context) error {
			rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/market/tickers", query: withParams(url.Values{"instType": {typ}}, params), cost: 1})
			if err != nil {
				return err
			}
			list := make([]exchanges.Ticker, 0, len(rows))
			for _, raw := range rows {
				t, err := parseTicker(raw, c.resolve)
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
	m, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"instId": {m.ID}}
	if limit > 0 {
		q.Set("sz", strconv.Itoa(limit))
	}
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/market/books", query: withParams(q, params), cost: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, exchanges.NewError(ID, exchanges.KindBadSymbol, "no order book for %s", symbol)
	}
	book, err := parseOrderBook(rows[0], m.Symbol)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// FetchTrades implements exchanges.MarketData from the recent trades list.
func (c *Client) FetchTrades(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Trade, error) {
	m, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{"instId": {m.ID}}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/market/trades", query: withParams(q, opts.Params), cost: 1})
	if err != nil {
		return nil, err
	}
	return c.trades(rows, opts)
}

func (c *Client) trades(rows []json.RawMessage, opts exchanges.FetchOptions) ([]exchanges.Trade, error) {
	out := make([]exchanges.Trade, 0, len(rows))
	for _, raw := range rows {
		t, err := parseTrade(raw, c.resolve)
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
	bar, ok := timeframes[timeframe]
	if !ok {
		return nil, exchanges.NewError(ID, exchanges.KindBadRequest, "unsupported timeframe %q", timeframe)
	}
	m, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := cursor(url.Values{"instId": {m.ID}, "bar": {bar}}, opts)
	var data json.RawMessage
	if err := c.result(ctx, call{method: http.MethodGet, path: "/api/v5/market/candles", query: withParams(q, opts.Params), cost: 1}, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []exchanges.OHLCV{}, nil
	}
	candles, err := parse.Candles(data)
	if err != nil {
		return nil, unexpected("candles", err)
	}
	parse.SortByTime(candles, func(k exchanges.OHLCV) time.Time { return k.Timestamp })
	return candles, nil
}

// swapMarket resolves a symbol that must be a perpetual.
func (c *Client) swapMarket(ctx context.Context, symbol, op string) (exchanges.Market, error) {
	m, err := c.requireMarket(ctx, symbol, op)
	if err != nil {
		return exchanges.Market{}, err
	}
	if !m.Swap {
		return exchanges.Market{}, exchanges.NewError(ID, exchanges.KindBadSymbol, "%s() supports swap markets only, %s is %s", op, symbol, m.Type)
	}
	return m, nil
}

type rawFunding struct {
	InstID          string          `json:"instId"`
	FundingRate     parse.Number    `json:"fundingRate"`
	RealizedRate    parse.Number    `json:"realizedRate"`
	FundingTime     parse.Timestamp `json:"fundingTime"`
	NextFundingTime parse.Timestamp `json:"nextFundingTime"`
	TS              parse.Timestamp `json:"ts"`
}

// FetchFundingRate implements exchanges.Derivatives. The rate applies at
// fundingTime, the next settlement.
func (c *Client) FetchFundingRate(ctx context.Context, symbol string, params exchanges.Params) (*exchanges.FundingRate, error) {
	m, err := c.swapMarket(ctx, symbol, "fetchFundingRate")
	if err != nil {
		return nil, err
	}
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/public/funding-rate", query: withParams(url.Values{"instId": {m.ID}}, params), cost: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, exchanges.NewError(ID, exchanges.KindBadSymbol, "no funding rate for %s", symbol)
	}
	var in rawFunding
	if err := json.Unmarshal(rows[0], &in); err != nil {
		return nil, unexpected("funding rate", err)
	}
	fr := &exchanges.FundingRate{
		Symbol:           m.Symbol,
		FundingRate:      in.FundingRate.Decimal(),
		FundingTimestamp: in.FundingTime.Time(),
		Interval:         fundingInterval,
		Timestamp:        in.TS.Time(),
		Info:             rows[0],
	}
	if next := in.NextFundingTime.Time(); !next.IsZero() && !fr.FundingTimestamp.IsZero() {
		fr.Interval = next.Sub(fr.FundingTimestamp)
	}
	if fr.FundingTimestamp.IsZero() {
		fr.FundingTimestamp = parse.NextFundingTime(fr.Timestamp, fundingInterval)
	}
	return fr, nil
}

// FetchFundingRateHistory implements exchanges.Derivatives. The realized
// rate wins over the forecast one when both are present.
func (c *Client) FetchFundingRateHistory(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.FundingRate, error) {
	m, err := c.swapMarket(ctx, symbol, "fetchFundingRateHistory")
	if err != nil {
		return nil, err
	}
	q := cursor(url.Values{"instId": {m.ID}}, opts)
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/public/funding-rate-history", query: withParams(q, opts.Params), cost: 1})
	if err != nil {
		return nil, err
	}
	out := make([]exchanges.FundingRate, 0, len(rows))
	for _, raw := range rows {
		var in rawFunding
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, unexpected("funding history", err)
		}
		rate := in.RealizedRate.Decimal()
		if rate.IsZero() {
			rate = in.FundingRate.Decimal()
		}
		ts := in.FundingTime.Time()
		out = append(out, exchanges.FundingRate{
			Symbol:           m.Symbol,
			FundingRate:      rate,
			FundingTimestamp: ts,
			Interval:         fundingInterval,
			Timestamp:        ts,
			Info:             raw,
		})
	}
	key := func(f exchanges.FundingRate) time.Time { return f.Timestamp }
	parse.SortByTime(out, key)
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}

// FetchSettlementHistory implements exchanges.Derivatives from the delivery
// history of the symbol's underlying. Only delivery rows of the requested
// contract are kept.
func (c *Client) FetchSettlementHistory(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Settlement, error) {
	m, err := c.requireMarket(ctx, symbol, "fetchSettlementHistory")
	if err != nil {
		return nil, err
	}
	if !m.Future {
		return nil, exchanges.NewError(ID, exchanges.KindBadSymbol, "fetchSettlementHistory() supports futures only, %s is %s", symbol, m.Type)
	}
	q := cursor(url.Values{"instType": {InstFutures}, "uly": {underlying(m)}}, opts)
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/public/delivery-exercise-history", query: withParams(q, opts.Params), cost: 1})
	if err != nil {
		return nil, err
	}
	var out []exchanges.Settlement
	for _, raw := range rows {
		var in struct {
			TS      parse.Timestamp `json:"ts"`
			Details []struct {
				InsID string       `json:"insId"`
				Px    parse.Number `json:"px"`
				Type  string       `json:"type"`
			} `json:"details"`
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, unexpected("delivery history", err)
		}
		for _, d := range in.Details {
			if d.InsID != m.ID || d.Type != "delivery" {
				continue
			}
			out = append(out, exchanges.Settlement{Symbol: m.Symbol, Price: d.Px.Decimal(), Timestamp: in.TS.Time(), Info: raw})
		}
	}
	if out == nil {
		out = []exchanges.Settlement{}
	}
	key := func(s exchanges.Settlement) time.Time { return s.Timestamp }
	parse.SortByTime(out, key)
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}

// underlying renders the uly of a contract. Delisted contracts carry no
// venue ids and fall back to the canonical codes.
func underlying(m exchanges.Market) string {
	if m.BaseID != "" && m.QuoteID != "" {
		return m.BaseID + "-" + m.QuoteID
	}
	return m.Base + "-" + m.Quote
}
