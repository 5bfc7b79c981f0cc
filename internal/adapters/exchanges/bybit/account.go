package bybit

import (
	"context"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/parse"
)

const accountUnified = "UNIFIED"

// FetchBalance implements exchanges.Account from the unified wallet. The
// accountType param selects another wallet.
func (c *Client) FetchBalance(ctx context.Context, params exchanges.Params) (*exchanges.Balance, error) {
	q := url.Values{"accountType": {accountUnified}}
	res, ts, err := c.listPage(ctx, call{method: http.MethodGet, path: "/v5/account/wallet-balance", query: withParams(q, params), signed: true, cost: 1})
	if err != nil {
		return nil, err
	}
	bal := &exchanges.Balance{Assets: map[string]exchanges.BalanceEntry{}, Timestamp: parse.Millis(ts)}
	for _, raw := range res.List {
		var account struct {
			Coin []rawCoin `json:"coin"`
		}
		if err := json.Unmarshal(raw, &account); err != nil {
			return nil, unexpected("wallet balance", err)
		}
		for _, coin := range account.Coin {
			bal.Assets[currency(coin.Coin)] = balanceEntry(coin)
		}
		bal.Info = raw
	}
	return bal, nil
}

// contractCategories lists the enabled derivative categories.
func (c *Client) contractCategories() []string {
	var out []string
	for _, cat := range c.categories {
		if cat != CategorySpot {
			out = append(out, cat)
		}
	}
	return out
}

// FetchPositions implements exchanges.Account. Contract categories are
// queried concurrently; linear positions are listed per USDT settlement
// unless a settleCoin param says otherwise.
func (c *Client) FetchPositions(ctx context.Context, symbols []string, params exchanges.Params) ([]exchanges.Position, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	want := map[string]bool{}
	involved := c.contractCategories()
	if len(symbols) > 0 {
		involved = nil
		seen := map[string]bool{}
		for _, s := range symbols {
			m, cat, err := c.market(ctx, s)
			if err != nil {
				return nil, err
			}
			if !m.Contract {
				return nil, exchanges.NewError(ID, exchanges.KindBadSymbol, "fetchPositions() supports contract markets only, %s is spot", s)
			}
			want[m.Symbol] = true
			if !seen[cat] {
				seen[cat] = true
				involved = append(involved, cat)
			}
		}
	}

	slots := make([][]exchanges.Position, len(involved))
	wp := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, cat := range involved {
		wp.Go(func(ctx context.Context) error {
			q := url.Values{"category": {cat}, "limit": {"200"}}
			if cat == CategoryLinear && params.String("settleCoin") == "" {
				q.Set("settleCoin", "USDT")
			}
			res, _, err := c.listPage(ctx, call{method: http.MethodGet, path: "/v5/position/list", query: withParams(q, params), signed: true, cost: 1})
			if err != nil {
				return err
			}
			list := make([]exchanges.Position, 0, len(res.List))
			for _, raw := range res.List {
				pos, ok, err := parsePosition(raw, c.resolver(cat))
				if err != nil {
					return err
				}
				if !ok || (len(want) > 0 && !want[pos.Symbol]) {
					continue
				}
				list = append(list, pos)
			}
			slots[i] = list
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		return nil, err
	}
	out := []exchanges.Position{}
	for _, list := range slots {
		out = append(out, list...)
	}
	return out, nil
}

func (c *Client) feeRates(ctx context.Context, cat string, q url.Values) ([]exchanges.TradingFee, error) {
	res, _, err := c.listPage(ctx, call{method: http.MethodGet, path: "/v5/account/fee-rate", query: q, signed: true, cost: 1})
	if err != nil {
		return nil, err
	}
	resolve := c.resolver(cat)
	out := make([]exchanges.TradingFee, 0, len(res.List))
	for _, raw := range res.List {
		var in struct {
			Symbol       string       `json:"symbol"`
			TakerFeeRate parse.Number `json:"takerFeeRate"`
			MakerFeeRate parse.Number `json:"makerFeeRate"`
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, unexpected("fee rate", err)
		}
		out = append(out, exchanges.TradingFee{
			Symbol: resolve(in.Symbol).Symbol,
			Maker:  in.MakerFeeRate.Decimal(),
			Taker:  in.TakerFeeRate.Decimal(),
			Info:   raw,
		})
	}
	return out, nil
}

// FetchTradingFee implements exchanges.Account.
func (c *Client) FetchTradingFee(ctx context.Context, symbol string, params exchanges.Params) (*exchanges.TradingFee, error) {
	m, cat, err := c.requireMarket(ctx, symbol, "fetchTradingFee")
	if err != nil {
		return nil, err
	}
	fees, err := c.feeRates(ctx, cat, withParams(url.Values{"category": {cat}, "symbol": {m.ID}}, params))
	if err != nil {
		return nil, err
	}
	if len(fees) == 0 {
		return nil, exchanges.NewError(ID, exchanges.KindBadSymbol, "no fee rate for %s", symbol)
	}
	return &fees[0], nil
}

// FetchTradingFees implements exchanges.Account for the category the
// "type" param picks.
func (c *Client) FetchTradingFees(ctx context.Context, params exchanges.Params) ([]exchanges.TradingFee, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	cat, err := c.categoryFor(params)
	if err != nil {
		return nil, err
	}
	return c.feeRates(ctx, cat, withParams(url.Values{"category": {cat}}, params.Without("type")))
}

// FetchLedger implements exchanges.Account from the unified transaction
// log. An empty code lists every currency.
func (c *Client) FetchLedger(ctx context.Context, code string, opts exchanges.FetchOptions) ([]exchanges.LedgerEntry, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	q := window(url.Values{"accountType": {accountUnified}}, opts)
	if code != "" {
		q.Set("currency", code)
	}
	res, _, err := c.listPage(ctx, call{method: http.MethodGet, path: "/v5/account/transaction-log", query: withParams(q, opts.Params), signed: true, cost: 1})
	if err != nil {
		return nil, err
	}
	resolvers := make(map[string]resolver, len(c.categories))
	for _, cat := range c.categories {
		resolvers[cat] = c.resolver(cat)
	}
	out := make([]exchanges.LedgerEntry, 0, len(res.List))
	for _, raw := range res.List {
		e, err := parseLedgerEntry(raw, resolvers)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	key := func(e exchanges.LedgerEntry) time.Time { return e.Timestamp }
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}
