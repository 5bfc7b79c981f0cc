package binance

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/parse"
	"tradegate/internal/adapters/exchanges/ratelimit"
)

// transferAccounts maps account names to the wallet transfer vocabulary.
var transferAccounts = map[string]string{
	"spot":    "MAIN",
	"main":    "MAIN",
	"funding": "FUNDING",
	"margin":  "MARGIN",
	"usdm":    "UMFUTURE",
	"future":  "UMFUTURE",
	"coinm":   "CMFUTURE",
	"option":  "OPTION",
}

// FetchBalance implements exchanges.Account. The "type" param selects the
// wallet; the default is the first enabled profile.
func (c *Client) FetchBalance(ctx context.Context, params exchanges.Params) (*exchanges.Balance, error) {
	p, err := c.profileFor(params)
	if err != nil {
		return nil, err
	}
	params = params.Without("type")
	bal := &exchanges.Balance{Assets: map[string]exchanges.BalanceEntry{}}

	if !p.Contract {
		var res struct {
			Balances   []rawBalance    `json:"balances"`
			UpdateTime parse.Timestamp `json:"updateTime"`
		}
		var raw json.RawMessage
		if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Account + "/account", params: query(nil, params), signed: true, cost: 20}, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, unexpected("account", err)
		}
		parseBalanceEntries(res.Balances, bal.Assets)
		bal.Timestamp = res.UpdateTime.Time()
		bal.Info = raw
		return bal, nil
	}

	var raw json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Account + "/balance", params: query(nil, params), signed: true, cost: 5}, &raw); err != nil {
		return nil, err
	}
	var rows []rawBalance
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, unexpected("balance", err)
	}
	parseBalanceEntries(rows, bal.Assets)
	bal.Info = raw
	return bal, nil
}

// FetchPositions implements exchanges.Account. Without symbols every
// enabled futures profile is queried concurrently.
func (c *Client) FetchPositions(ctx context.Context, symbols []string, params exchanges.Params) ([]exchanges.Position, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	want := map[string]bool{}
	var involved []Profile
	seen := map[string]bool{}
	for _, s := range symbols {
		m, p, err := c.contractMarket(ctx, s, "fetchPositions")
		if err != nil {
			return nil, err
		}
		want[m.Symbol] = true
		if !seen[p.Name] {
			seen[p.Name] = true
			involved = append(involved, p)
		}
	}
	if len(symbols) == 0 {
		for _, p := range c.profiles {
			if p.Contract {
				involved = append(involved, p)
			}
		}
	}
	if len(involved) == 0 {
		return nil, exchanges.NotSupported(c.venue, "fetchPositions")
	}

	slots := make([][]exchanges.Position, len(involved))
	wp := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, p := range involved {
		wp.Go(func(ctx context.Context) error {
			var rows []json.RawMessage
			if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Account + "/positionRisk", params: query(nil, params), signed: true, cost: 5}, &rows); err != nil {
				return err
			}
			list := make([]exchanges.Position, 0, len(rows))
			for _, raw := range rows {
				pos, open, err := parsePosition(raw, c.resolver(p))
				if err != nil {
					return err
				}
				if !open || (len(want) > 0 && !want[pos.Symbol]) {
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

// FetchLedger implements exchanges.Account from the futures income
// history. The "type" param picks usdm or coinm.
func (c *Client) FetchLedger(ctx context.Context, code string, opts exchanges.FetchOptions) ([]exchanges.LedgerEntry, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	p, err := c.profileFor(opts.Params)
	if err != nil {
		return nil, err
	}
	if !p.Contract {
		p, err = c.firstContract()
		if err != nil {
			return nil, err
		}
	}
	var rows []json.RawMessage
	q := window(url.Values{}, opts)
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + "/income", params: query(q, opts.Params.Without("type")), signed: true, cost: 30}, &rows); err != nil {
		return nil, err
	}
	out := make([]exchanges.LedgerEntry, 0, len(rows))
	for _, raw := range rows {
		e, err := parseIncome(raw, c.resolver(p))
		if err != nil {
			return nil, err
		}
		if code != "" && e.Currency != code {
			continue
		}
		out = append(out, e)
	}
	key := func(e exchanges.LedgerEntry) time.Time { return e.Timestamp }
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}

func (c *Client) firstContract() (Profile, error) {
	for _, p := range c.profiles {
		if p.Contract {
			return p, nil
		}
	}
	return Profile{}, exchanges.NewError(c.venue, exchanges.KindNotSupported, "no futures profile is enabled")
}

type rawFee struct {
	Symbol              string       `json:"symbol"`
	MakerCommission     parse.Number `json:"makerCommission"`
	TakerCommission     parse.Number `json:"takerCommission"`
	MakerCommissionRate parse.Number `json:"makerCommissionRate"`
	TakerCommissionRate parse.Number `json:"takerCommissionRate"`
}

func (f rawFee) fee(symbol string, raw json.RawMessage) exchanges.TradingFee {
	fee := exchanges.TradingFee{
		Symbol: symbol,
		Maker:  f.MakerCommission.Decimal(),
		Taker:  f.TakerCommission.Decimal(),
		Info:   raw,
	}
	if fee.Maker.IsZero() && fee.Taker.IsZero() {
		fee.Maker = f.MakerCommissionRate.Decimal()
		fee.Taker = f.TakerCommissionRate.Decimal()
	}
	return fee
}

// FetchTradingFee implements exchanges.Account. Spot reads the wallet
// trade fee; futures read the commission rate.
func (c *Client) FetchTradingFee(ctx context.Context, symbol string, params exchanges.Params) (*exchanges.TradingFee, error) {
	m, p, err := c.requireMarket(ctx, symbol, "fetchTradingFee")
	if err != nil {
		return nil, err
	}
	q := query(url.Values{"symbol": {m.ID}}, params)
	var raw json.RawMessage
	if m.Contract {
		if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + "/commissionRate", params: q, signed: true, cost: 20}, &raw); err != nil {
			return nil, err
		}
	} else {
		var rows []json.RawMessage
		if err := c.do(ctx, call{profile: walletProfile, method: http.MethodGet, path: "/sapi/v1/asset/tradeFee", params: q, signed: true, cost: 1}, &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, exchanges.NewError(c.venue, exchanges.KindBadSymbol, "no trading fee for %s", symbol)
		}
		raw = rows[0]
	}
	var in rawFee
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, unexpected("trading fee", err)
	}
	fee := in.fee(m.Symbol, raw)
	return &fee, nil
}

// FetchTradingFees implements exchanges.Account for spot markets, the only
// family with a bulk fee endpoint.
func (c *Client) FetchTradingFees(ctx context.Context, params exchanges.Params) ([]exchanges.TradingFee, error) {
	if _, ok := c.enabled(ProfileSpot); !ok {
		return nil, exchanges.NotSupported(c.venue, "fetchTradingFees")
	}
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	spot, _ := c.enabled(ProfileSpot)
	var rows []json.RawMessage
	if err := c.do(ctx, call{profile: walletProfile, method: http.MethodGet, path: "/sapi/v1/asset/tradeFee", params: query(nil, params), signed: true, cost: 1}, &rows); err != nil {
		return nil, err
	}
	resolve := c.resolver(spot)
	out := make([]exchanges.TradingFee, 0, len(rows))
	for _, raw := range rows {
		var in rawFee
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, unexpected("trading fee", err)
		}
		out = append(out, in.fee(resolve(in.Symbol).Symbol, raw))
	}
	return out, nil
}

func (c *Client) coinID(code string) string {
	if cur, ok := c.cache.Currency(code); ok && cur.ID != "" {
		return cur.ID
	}
	return code
}

// FetchDepositAddress implements exchanges.Treasury. The "network" param
// picks a chain; the default network is used otherwise.
func (c *Client) FetchDepositAddress(ctx context.Context, code string, params exchanges.Params) (*exchanges.DepositAddress, error) {
	if code == "" {
		return nil, exchanges.NewError(c.venue, exchanges.KindArgumentsRequired, "fetchDepositAddress() requires a currency code")
	}
	q := query(url.Values{"coin": {c.coinID(code)}}, params)
	var raw json.RawMessage
	if err := c.do(ctx, call{profile: walletProfile, method: http.MethodGet, path: "/sapi/v1/capital/deposit/address", params: q, signed: true, cost: 10}, &raw); err != nil {
		return nil, err
	}
	var in struct {
		Address string `json:"address"`
		Coin    string `json:"coin"`
		Tag     string `json:"tag"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, unexpected("deposit address", err)
	}
	if in.Address == "" {
		return nil, exchanges.NewError(c.venue, exchanges.KindInvalidAddress, "no deposit address for %s", code)
	}
	address, tag := parse.SplitAddressTag(in.Address)
	if in.Tag != "" {
		tag = in.Tag
	}
	return &exchanges.DepositAddress{
		Currency: code,
		Network:  params.String("network"),
		Address:  address,
		Tag:      tag,
		Info:     raw,
	}, nil
}

func (c *Client) walletHistory(ctx context.Context, path string, kind exchanges.TransactionType, code string, opts exchanges.FetchOptions) ([]exchanges.Transaction, error) {
	q := window(url.Values{}, opts)
	if code != "" {
		q.Set("coin", c.coinID(code))
	}
	var rows []json.RawMessage
	if err := c.do(ctx, call{profile: walletProfile, method: http.MethodGet, path: path, params: query(q, opts.Params), signed: true, cost: 1}, &rows); err != nil {
		return nil, err
	}
	out := make([]exchanges.Transaction, 0, len(rows))
	for _, raw := range rows {
		tx, err := parseTransaction(raw, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	key := func(t exchanges.Transaction) time.Time { return t.Timestamp }
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}

// FetchDeposits implements exchanges.Treasury.
func (c *Client) FetchDeposits(ctx context.Context, code string, opts exchanges.FetchOptions) ([]exchanges.Transaction, error) {
	return c.walletHistory(ctx, "/sapi/v1/capital/deposit/hisrec", exchanges.TransactionDeposit, code, opts)
}

// FetchWithdrawals implements exchanges.Treasury.
func (c *Client) FetchWithdrawals(ctx context.Context, code string, opts exchanges.FetchOptions) ([]exchanges.Transaction, error) {
	return c.walletHistory(ctx, "/sapi/v1/capital/withdraw/history", exchanges.TransactionWithdrawal, code, opts)
}

// Withdraw implements exchanges.Treasury.
func (c *Client) Withdraw(ctx context.Context, req exchanges.WithdrawRequest) (*exchanges.Transaction, error) {
	if req.Code == "" || req.Address == "" || !req.Amount.IsPositive() {
		return nil, exchanges.NewError(c.venue, exchanges.KindArgumentsRequired, "withdraw() requires a currency code, a positive amount and an address")
	}
	q := url.Values{
		"coin":    {c.coinID(req.Code)},
		"address": {req.Address},
		"amount":  {req.Amount.String()},
	}
	if req.Tag != "" {
		q.Set("addressTag", req.Tag)
	}
	if req.Network != "" {
		q.Set("network", req.Network)
	}
	if req.ClientID != "" {
		q.Set("withdrawOrderId", req.ClientID)
	}
	var res struct {
		ID parse.ID `json:"id"`
	}
	var raw json.RawMessage
	if err := c.do(ctx, call{profile: walletProfile, method: http.MethodPost, path: "/sapi/v1/capital/withdraw/apply", params: query(q, req.Params), signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, unexpected("withdraw", err)
	}
	c.log.Infow("withdrawal requested", "currency", req.Code, "amount", req.Amount.String(), "id", string(res.ID))
	return &exchanges.Transaction{
		ID:        string(res.ID),
		Type:      exchanges.TransactionWithdrawal,
		Currency:  req.Code,
		Network:   req.Network,
		Address:   req.Address,
		Tag:       req.Tag,
		Status:    exchanges.TransactionPending,
		Amount:    req.Amount,
		Timestamp: parse.Millis(c.clock.Milliseconds()),
		Info:      raw,
	}, nil
}

// Transfer implements exchanges.Treasury between the wallets of one
// account: spot, funding, margin, usdm and coinm.
func (c *Client) Transfer(ctx context.Context, req exchanges.TransferRequest) (*exchanges.Transfer, error) {
	if req.Code == "" || req.From == "" || req.To == "" || !req.Amount.IsPositive() {
		return nil, exchanges.NewError(c.venue, exchanges.KindArgumentsRequired, "transfer() requires a currency code, a positive amount and both accounts")
	}
	from, okFrom := transferAccounts[strings.ToLower(req.From)]
	to, okTo := transferAccounts[strings.ToLower(req.To)]
	if !okFrom || !okTo || from == to {
		return nil, exchanges.NewError(c.venue, exchanges.KindBadRequest, "cannot transfer from %q to %q", req.From, req.To)
	}
	q := url.Values{
		"type":   {from + "_" + to},
		"asset":  {c.coinID(req.Code)},
		"amount": {req.Amount.String()},
	}
	var raw json.RawMessage
	if err := c.do(ctx, call{profile: walletProfile, method: http.MethodPost, path: "/sapi/v1/asset/transfer", params: query(q, req.Params), signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &raw); err != nil {
		return nil, err
	}
	var res struct {
		TranID parse.ID `json:"tranId"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, unexpected("transfer", err)
	}
	return &exchanges.Transfer{
		ID:          string(res.TranID),
		Currency:    req.Code,
		Amount:      req.Amount,
		FromAccount: req.From,
		ToAccount:   req.To,
		Status:      "ok",
		Timestamp:   parse.Millis(c.clock.Milliseconds()),
		Info:        raw,
	}, nil
}
