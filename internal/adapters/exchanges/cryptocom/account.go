package cryptocom

import (
	"context"
	"time"

	json "github.com/goccy/go-json"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/parse"
)

// FetchBalance implements exchanges.Account.
func (c *Client) FetchBalance(ctx context.Context, params exchanges.Params) (*exchanges.Balance, error) {
	var res listResult
	if err := c.privatePost(ctx, "private/user-balance", merge(map[string]any{}, params), "", &res); err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return &exchanges.Balance{Assets: map[string]exchanges.BalanceEntry{}}, nil
	}
	bal, err := parseBalance(res.Data[0])
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

// FetchPositions implements exchanges.Account. Positions are always cross margined.
func (c *Client) FetchPositions(ctx context.Context, symbols []string, params exchanges.Params) ([]exchanges.Position, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	body := map[string]any{}
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		m, err := c.market(ctx, s)
		if err != nil {
			return nil, err
		}
		want[m.Symbol] = true
		if len(symbols) == 1 {
			body["instrument_name"] = m.ID
		}
	}

	var res listResult
	if err := c.privatePost(ctx, "private/get-positions", merge(body, params), "", &res); err != nil {
		return nil, err
	}
	out := make([]exchanges.Position, 0, len(res.Data))
	for _, raw := range res.Data {
		p, err := parsePosition(raw, c.resolve)
		if err != nil {
			return nil, err
		}
		if len(want) > 0 && !want[p.Symbol] {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// FetchLedger implements exchanges.Account. code filters by currency.
func (c *Client) FetchLedger(ctx context.Context, code string, opts exchanges.FetchOptions) ([]exchanges.LedgerEntry, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	body := map[string]any{}
	windowBody(body, opts)

	var res listResult
	if err := c.privatePost(ctx, "private/get-transactions", merge(body, opts.Params), "", &res); err != nil {
		return nil, err
	}
	out := make([]exchanges.LedgerEntry, 0, len(res.Data))
	for _, raw := range res.Data {
		e, err := parseLedgerEntry(raw, c.resolve)
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

// FetchTradingFee implements exchanges.Account.
func (c *Client) FetchTradingFee(ctx context.Context, symbol string, params exchanges.Params) (*exchanges.TradingFee, error) {
	m, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	body := merge(map[string]any{"instrument_name": m.ID}, params)
	if err := c.privatePost(ctx, "private/get-instrument-fee-rate", body, "", &raw); err != nil {
		return nil, err
	}
	fee, err := parseTradingFee(raw, m.Symbol)
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

// FetchTradingFees implements exchanges.Account. The account has one rate
// pair for spot and one for derivatives; every market gets the matching pair.
func (c *Client) FetchTradingFees(ctx context.Context, params exchanges.Params) ([]exchanges.TradingFee, error) {
	cache, err := c.LoadMarkets(ctx, false)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.privatePost(ctx, "private/get-fee-rate", merge(map[string]any{}, params), "", &raw); err != nil {
		return nil, err
	}
	var in struct {
		SpotMaker  parse.Number `json:"effective_spot_maker_rate_bps"`
		SpotTaker  parse.Number `json:"effective_spot_taker_rate_bps"`
		DerivMaker parse.Number `json:"effective_deriv_maker_rate_bps"`
		DerivTaker parse.Number `json:"effective_deriv_taker_rate_bps"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, unexpected("fee rate", err)
	}

	list := cache.Markets()
	out := make([]exchanges.TradingFee, 0, len(list))
	for _, m := range list {
		fee := exchanges.TradingFee{
			Symbol: m.Symbol,
			Maker:  parse.BasisPoints(in.SpotMaker.Decimal()),
			Taker:  parse.BasisPoints(in.SpotTaker.Decimal()),
			Info:   raw,
		}
		if m.Contract {
			fee.Maker = parse.BasisPoints(in.DerivMaker.Decimal())
			fee.Taker = parse.BasisPoints(in.DerivTaker.Decimal())
		}
		out = append(out, fee)
	}
	return out, nil
}

func (c *Client) currencyID(code string) string {
	if cur, ok := c.cache.Currency(code); ok && cur.ID != "" {
		return cur.ID
	}
	return code
}

// FetchDepositAddress implements exchanges.Treasury. The "network" param
// selects among several addresses; otherwise the first active one wins.
func (c *Client) FetchDepositAddress(ctx context.Context, code string, params exchanges.Params) (*exchanges.DepositAddress, error) {
	if code == "" {
		return nil, exchanges.NewError(ID, exchanges.KindArgumentsRequired, "fetchDepositAddress() requires a currency code")
	}
	network := params.String("network")
	body := merge(map[string]any{"currency": c.currencyID(code)}, params.Without("network"))

	var res struct {
		List []json.RawMessage `json:"deposit_address_list"`
	}
	if err := c.privatePost(ctx, "private/get-deposit-address", body, "", &res); err != nil {
		return nil, err
	}

	var fallback *exchanges.DepositAddress
	for _, raw := range res.List {
		addr, status, err := parseDepositAddress(raw)
		if err != nil {
			return nil, err
		}
		if network != "" {
			if addr.Network == network {
				return &addr, nil
			}
			continue
		}
		if status == "1" {
			return &addr, nil
		}
		if fallback == nil {
			fallback = &addr
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, exchanges.NewError(ID, exchanges.KindInvalidAddress, "no deposit address for %s %s", code, network)
}

func (c *Client) transactions(ctx context.Context, method, listKey string, kind exchanges.TransactionType, code string, opts exchanges.FetchOptions) ([]exchanges.Transaction, error) {
	body := map[string]any{}
	if code != "" {
		body["currency"] = c.currencyID(code)
	}
	if !opts.Since.IsZero() {
		body["start_ts"] = opts.Since.UnixMilli()
	}
	if !opts.Until.IsZero() {
		body["end_ts"] = opts.Until.UnixMilli()
	}
	if opts.Limit > 0 {
		body["page_size"] = opts.Limit
	}

	var res map[string][]json.RawMessage
	if err := c.privatePost(ctx, method, merge(body, opts.Params), "", &res); err != nil {
		return nil, err
	}
	list := res[listKey]
	out := make([]exchanges.Transaction, 0, len(list))
	for _, raw := range list {
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
	return c.transactions(ctx, "private/get-deposit-history", "deposit_list", exchanges.TransactionDeposit, code, opts)
}

// FetchWithdrawals implements exchanges.Treasury.
func (c *Client) FetchWithdrawals(ctx context.Context, code string, opts exchanges.FetchOptions) ([]exchanges.Transaction, error) {
	return c.transactions(ctx, "private/get-withdrawal-history", "withdrawal_list", exchanges.TransactionWithdrawal, code, opts)
}

// Withdraw implements exchanges.Treasury.
func (c *Client) Withdraw(ctx context.Context, req exchanges.WithdrawRequest) (*exchanges.Transaction, error) {
	if req.Code == "" || req.Address == "" || !req.Amount.IsPositive() {
		return nil, exchanges.NewError(ID, exchanges.KindArgumentsRequired, "withdraw() requires a currency code, a positive amount and an address")
	}
	body := map[string]any{
		"currency": c.currencyID(req.Code),
		"amount":   req.Amount.String(),
		"address":  req.Address,
	}
	if req.Tag != "" {
		body["address_tag"] = req.Tag
	}
	if req.Network != "" {
		body["network_id"] = req.Network
	}
	if req.ClientID != "" {
		body["client_wid"] = req.ClientID
	}

	var raw json.RawMessage
	if err := c.privatePost(ctx, "private/create-withdrawal", merge(body, req.Params), "", &raw); err != nil {
		return nil, err
	}
	tx, err := parseTransaction(raw, exchanges.TransactionWithdrawal)
	if err != nil {
		return nil, err
	}
	if tx.Address == "" {
		tx.Address, tx.Tag = req.Address, req.Tag
	}
	c.log.Infow("withdrawal requested", "currency", req.Code, "amount", req.Amount.String(), "id", tx.ID)
	return &tx, nil
}

// Transfer implements exchanges.Treasury between the master account and
// subaccounts, identified by their uuids.
func (c *Client) Transfer(ctx context.Context, req exchanges.TransferRequest) (*exchanges.Transfer, error) {
	if req.Code == "" || req.From == "" || req.To == "" || !req.Amount.IsPositive() {
		return nil, exchanges.NewError(ID, exchanges.KindArgumentsRequired, "transfer() requires a currency code, a positive amount and both accounts")
	}
	body := merge(map[string]any{
		"currency": c.currencyID(req.Code),
		"amount":   req.Amount.String(),
		"from":     req.From,
		"to":       req.To,
	}, req.Params)

	var raw json.RawMessage
	if err := c.privatePost(ctx, "private/create-subaccount-transfer", body, "", &raw); err != nil {
		return nil, err
	}
	return &exchanges.Transfer{
		Currency:    req.Code,
		Amount:      req.Amount,
		FromAccount: req.From,
		ToAccount:   req.To,
		Status:      "ok",
		Timestamp:   parse.Millis(c.clock.Milliseconds()),
		Info:        raw,
	}, nil
}
