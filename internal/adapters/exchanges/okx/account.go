package okx

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/parse"
)

// FetchBalance implements exchanges.Account from the trading account.
func (c *Client) FetchBalance(ctx context.Context, params exchanges.Params) (*exchanges.Balance, error) {
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/account/balance", query: withParams(nil, params), signed: true, cost: 1})
	if err != nil {
		return nil, err
	}
	bal := &exchanges.Balance{Assets: map[string]exchanges.BalanceEntry{}}
	for _, raw := range rows {
		var account struct {
			UTime   parse.Timestamp `json:"uTime"`
			Details []rawDetail     `json:"details"`
		}
		if err := json.Unmarshal(raw, &account); err != nil {
			return nil, unexpected("balance", err)
		}
		for _, d := range account.Details {
			bal.Assets[currency(d.Ccy)] = balanceEntry(d)
		}
		bal.Timestamp = account.UTime.Time()
		bal.Info = raw
	}
	return bal, nil
}

// FetchPositions implements exchanges.Account. Without symbols every open
// swap and futures position is listed.
func (c *Client) FetchPositions(ctx context.Context, symbols []string, params exchanges.Params) ([]exchanges.Position, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	q := url.Values{}
	if len(symbols) > 0 {
		ids := make([]string, 0, len(symbols))
		for _, s := range symbols {
			m, err := c.market(ctx, s)
			if err != nil {
				return nil, err
			}
			if !m.Contract {
				return nil, exchanges.NewError(ID, exchanges.KindBadSymbol, "fetchPositions() supports contract markets only, %s is spot", s)
			}
			ids = append(ids, m.ID)
		}
		q.Set("instId", strings.Join(ids, ","))
	}
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/account/positions", query: withParams(q, params), signed: true, cost: 1})
	if err != nil {
		return nil, err
	}
	out := make([]exchanges.Position, 0, len(rows))
	for _, raw := range rows {
		pos, ok, err := parsePosition(raw, c.resolve)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, pos)
		}
	}
	return out, nil
}

type rawFee struct {
	Maker  parse.Number `json:"maker"`
	Taker  parse.Number `json:"taker"`
	MakerU parse.Number `json:"makerU"`
	TakerU parse.Number `json:"takerU"`
}

// rates returns maker and taker as charged fractions. The venue reports
// charges as negative numbers; USDT-margined contracts use the U fields.
func (f rawFee) rates(m exchanges.Market) exchanges.TradingFee {
	maker, taker := f.Maker.Decimal(), f.Taker.Decimal()
	if m.Contract && m.Linear && (!f.MakerU.Decimal().IsZero() || !f.TakerU.Decimal().IsZero()) {
		maker, taker = f.MakerU.Decimal(), f.TakerU.Decimal()
	}
	return exchanges.TradingFee{Symbol: m.Symbol, Maker: maker.Neg(), Taker: taker.Neg()}
}

// feeRow fetches the fee tier of one instrument type, narrowed to instId
// when set.
func (c *Client) feeRow(ctx context.Context, q url.Values) (rawFee, json.RawMessage, error) {
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/account/trade-fee", query: q, signed: true, cost: 1})
	if err != nil {
		return rawFee{}, nil, err
	}
	if len(rows) == 0 {
		return rawFee{}, nil, exchanges.NewError(ID, exchanges.KindBadRequest, "no fee tier for %s", q.Get("instType"))
	}
	var fee rawFee
	if err := json.Unmarshal(rows[0], &fee); err != nil {
		return rawFee{}, nil, unexpected("trade fee", err)
	}
	return fee, rows[0], nil
}

// FetchTradingFee implements exchanges.Account.
func (c *Client) FetchTradingFee(ctx context.Context, symbol string, params exchanges.Params) (*exchanges.TradingFee, error) {
	m, err := c.requireMarket(ctx, symbol, "fetchTradingFee")
	if err != nil {
		return nil, err
	}
	q := url.Values{"instType": {instTypeOf(m)}}
	if m.Spot {
		q.Set("instId", m.ID)
	} else {
		q.Set("uly", underlying(m))
	}
	fee, raw, err := c.feeRow(ctx, withParams(q, params))
	if err != nil {
		return nil, err
	}
	tf := fee.rates(m)
	tf.Info = raw
	return &tf, nil
}

// FetchTradingFees implements exchanges.Account. The venue reports one tier
// per instrument type, which is applied to every market of the type the
// "type" param picks.
func (c *Client) FetchTradingFees(ctx context.Context, params exchanges.Params) ([]exchanges.TradingFee, error) {
	cache, err := c.LoadMarkets(ctx, false)
	if err != nil {
		return nil, err
	}
	typ, err := c.instTypeFor(params)
	if err != nil {
		return nil, err
	}
	fee, raw, err := c.feeRow(ctx, withParams(url.Values{"instType": {typ}}, params.Without("type")))
	if err != nil {
		return nil, err
	}
	out := []exchanges.TradingFee{}
	for _, m := range cache.Markets() {
		if instTypeOf(m) != typ {
			continue
		}
		tf := fee.rates(m)
		tf.Info = raw
		out = append(out, tf)
	}
	return out, nil
}

// FetchLedger implements exchanges.Account from the bills of the last
// seven days. An empty code lists every currency.
func (c *Client) FetchLedger(ctx context.Context, code string, opts exchanges.FetchOptions) ([]exchanges.LedgerEntry, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	q := window(url.Values{}, opts)
	if code != "" {
		q.Set("ccy", code)
	}
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/account/bills", query: withParams(q, opts.Params), signed: true, cost: 1})
	if err != nil {
		return nil, err
	}
	out := make([]exchanges.LedgerEntry, 0, len(rows))
	for _, raw := range rows {
		e, err := parseLedgerEntry(raw, c.resolve)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	key := func(e exchanges.LedgerEntry) time.Time { return e.Timestamp }
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}
