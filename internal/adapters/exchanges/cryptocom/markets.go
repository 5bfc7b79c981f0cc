package cryptocom

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/markets"
	"tradegate/internal/adapters/exchanges/parse"
	"tradegate/pkg/errors"
)

// LoadMarkets implements exchanges.MarketData.
func (c *Client) LoadMarkets(ctx context.Context, reload bool) (exchanges.MarketCache, error) {
	return markets.Load(ctx, markets.Source{
		Venue: ID,
		Cache: c.cache,
		Store: c.store,
		FetchMarkets: func(ctx context.Context) ([]exchanges.Market, error) {
			return c.FetchMarkets(ctx, nil)
		},
		FetchCurrencies: func(ctx context.Context) ([]exchanges.Currency, error) {
			return c.FetchCurrencies(ctx, nil)
		},
		Log: c.log,
	}, reload)
}

// FetchMarkets implements exchanges.MarketData.
func (c *Client) FetchMarkets(ctx context.Context, params exchanges.Params) ([]exchanges.Market, error) {
	var res listResult
	if err := c.publicGet(ctx, "public/get-instruments", mergeQuery(url.Values{}, params), &res); err != nil {
		return nil, err
	}
	out := make([]exchanges.Market, 0, len(res.Data))
	for _, raw := range res.Data {
		m, ok, err := parseMarket(raw)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

type instrument struct {
	Symbol            string          `json:"symbol"`
	InstType          string          `json:"inst_type"`
	BaseCcy           string          `json:"base_ccy"`
	QuoteCcy          string          `json:"quote_ccy"`
	QuoteDecimals     *int32          `json:"quote_decimals"`
	QuantityDecimals  *int32          `json:"quantity_decimals"`
	PriceTickSize     string          `json:"price_tick_size"`
	QtyTickSize       string          `json:"qty_tick_size"`
	MaxLeverage       parse.Number    `json:"max_leverage"`
	Tradable          bool            `json:"tradable"`
	ExpiryTimestampMs parse.Timestamp `json:"expiry_timestamp_ms"`
	ContractSize      parse.Number    `json:"contract_size"`
	Strike            parse.Number    `json:"strike"`
	PutCall           string          `json:"put_call"`
	MarginBuyEnabled  bool            `json:"margin_buy_enabled"`
	MarginSellEnabled bool            `json:"margin_sell_enabled"`
}

// parseMarket converts one instrument. Unknown instrument types are skipped.
func parseMarket(raw json.RawMessage) (exchanges.Market, bool, error) {
	var in instrument
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Market{}, false, errors.Wrapf(errors.ErrUnexpectedResponse, "%s: instrument: %v", ID, err)
	}

	m := exchanges.Market{
		ID:      in.Symbol,
		BaseID:  in.BaseCcy,
		QuoteID: in.QuoteCcy,
		Base:    markets.CurrencyCode(in.BaseCcy, nil),
		Quote:   markets.CurrencyCode(in.QuoteCcy, nil),
		Active:  in.Tradable,
		Precision: exchanges.Precision{
			Amount: markets.TickOrDecimals(in.QtyTickSize, in.QuantityDecimals),
			Price:  markets.TickOrDecimals(in.PriceTickSize, in.QuoteDecimals),
		},
		Info: raw,
	}
	m.Limits.Amount.Min = m.Precision.Amount
	m.Limits.Price.Min = m.Precision.Price
	if lev := in.MaxLeverage.Decimal(); lev.IsPositive() {
		m.Limits.Leverage = exchanges.MinMax{Min: decimal.NewFromInt(1), Max: lev}
	}

	parts := markets.Parts{Base: m.Base, Quote: m.Quote}
	switch in.InstType {
	case "CCY_PAIR":
		m.Type = exchanges.MarketTypeSpot
		m.Margin = in.MarginBuyEnabled || in.MarginSellEnabled
	case "PERPETUAL_SWAP":
		m.Type = exchanges.MarketTypeSwap
	case "FUTURE":
		m.Type = exchanges.MarketTypeFuture
	case "OPTION":
		m.Type = exchanges.MarketTypeOption
	default:
		return exchanges.Market{}, false, nil
	}

	if m.Type != exchanges.MarketTypeSpot {
		m.Settle, m.SettleID = m.Quote, m.QuoteID
		parts.Settle = m.Settle
		m.ContractSize = in.ContractSize.Decimal()
		if m.ContractSize.IsZero() {
			m.ContractSize = decimal.NewFromInt(1)
		}
	}
	if m.Type == exchanges.MarketTypeFuture || m.Type == exchanges.MarketTypeOption {
		m.Expiry = in.ExpiryTimestampMs.Time()
		if !m.Expiry.IsZero() {
			m.ExpiryDatetime = m.Expiry.Format(time.RFC3339)
		}
		parts.Expiry = m.Expiry
	}
	if m.Type == exchanges.MarketTypeOption {
		m.Strike = in.Strike.Decimal()
		m.OptionType = strings.ToLower(in.PutCall)
		parts.Strike, parts.OptionType = m.Strike, m.OptionType
	}

	markets.Flags(&m)
	m.Symbol = markets.Symbol(parts)
	return m, true, nil
}

// instrumentID renders the venue id of a dated contract:
// BTCUSD-240329 for futures, BTCUSD-240329-C50000 for options.
func instrumentID(s markets.Parts) string {
	id := s.Base + s.Quote + "-" + s.Expiry.Format("060102")
	if s.OptionType == "" {
		return id
	}
	flag := "C"
	if s.OptionType == "put" {
		flag = "P"
	}
	return id + "-" + flag + s.Strike.String()
}

var contractIDPattern = regexp.MustCompile(`^([A-Z0-9]+?)(USDT|USDC|USD)-(\d{6})(?:-([CP])([0-9.]+))?$`)

// contractFromID rebuilds a dated contract from a venue id such as
// BTCUSD-240329 or BTCUSD-240329-C50000.
func contractFromID(id string) (exchanges.Market, bool) {
	parts := contractIDPattern.FindStringSubmatch(id)
	if parts == nil {
		return exchanges.Market{}, false
	}
	expiry, err := time.Parse("060102", parts[3])
	if err != nil {
		return exchanges.Market{}, false
	}
	quote := markets.CurrencyCode(parts[2], nil)
	sym := markets.Parts{
		Base:   markets.CurrencyCode(parts[1], nil),
		Quote:  quote,
		Settle: quote,
		Expiry: expiry,
	}
	if parts[4] != "" {
		strike, err := decimal.NewFromString(parts[5])
		if err != nil {
			return exchanges.Market{}, false
		}
		sym.Strike = strike
		sym.OptionType = "call"
		if parts[4] == "P" {
			sym.OptionType = "put"
		}
	}
	m, err := markets.ExpiredMarket(markets.Symbol(sym), expiryHour, func(markets.Parts) string { return id })
	if err != nil {
		return exchanges.Market{}, false
	}
	return m, true
}

// market resolves a canonical symbol or venue id, loading the catalog first.
// Delisted dated contracts are rebuilt from the symbol.
func (c *Client) market(ctx context.Context, symbol string) (exchanges.Market, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return exchanges.Market{}, err
	}
	if m, ok := c.cache.Market(symbol); ok {
		return m, nil
	}
	if m, err := markets.ExpiredMarket(symbol, expiryHour, instrumentID); err == nil {
		return m, nil
	}
	return exchanges.Market{}, exchanges.NewError(ID, exchanges.KindBadSymbol, "unknown symbol %q", symbol)
}

// marketByID resolves a venue id from a response, synthesizing a placeholder
// for ids missing from the catalog.
func (c *Client) marketByID(id string) exchanges.Market {
	if m, ok := c.cache.Market(id); ok {
		return m
	}
	return markets.Placeholder(id, spotDelimiter, nil)
}

// FetchCurrencies implements exchanges.MarketData. Keys without the wallet
// permission get an empty list.
func (c *Client) FetchCurrencies(ctx context.Context, params exchanges.Params) ([]exchanges.Currency, error) {
	var res struct {
		CurrencyMap map[string]json.RawMessage `json:"currency_map"`
	}
	err := c.privatePost(ctx, "private/get-currency-networks", merge(map[string]any{}, params), "", &res)
	if errors.Is(err, exchanges.ErrAuthentication) {
		c.log.Debugw("currencies unavailable without wallet permission", "error", err)
		return []exchanges.Currency{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]exchanges.Currency, 0, len(res.CurrencyMap))
	for id, raw := range res.CurrencyMap {
		cur, err := parseCurrency(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, cur)
	}
	sortCurrencies(out)
	return out, nil
}

type currencyNetwork struct {
	NetworkID           string       `json:"network_id"`
	WithdrawalFee       parse.Number `json:"withdrawal_fee"`
	WithdrawEnabled     bool         `json:"withdraw_enabled"`
	MinWithdrawalAmount parse.Number `json:"min_withdrawal_amount"`
	DepositEnabled      bool         `json:"deposit_enabled"`
}

func parseCurrency(id string, raw json.RawMessage) (exchanges.Currency, error) {
	var in struct {
		FullName    string            `json:"full_name"`
		NetworkList []currencyNetwork `json:"network_list"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Currency{}, errors.Wrapf(errors.ErrUnexpectedResponse, "%s: currency %s: %v", ID, id, err)
	}

	cur := exchanges.Currency{
		ID:       id,
		Code:     markets.CurrencyCode(id, nil),
		Name:     in.FullName,
		Networks: make(map[string]exchanges.Network, len(in.NetworkList)),
		Info:     raw,
	}
	for _, n := range in.NetworkList {
		cur.Networks[n.NetworkID] = exchanges.Network{
			ID:       n.NetworkID,
			Network:  n.NetworkID,
			Deposit:  n.DepositEnabled,
			Withdraw: n.WithdrawEnabled,
			Fee:      n.WithdrawalFee.Decimal(),
			Limits:   exchanges.MinMax{Min: n.MinWithdrawalAmount.Decimal()},
		}
		cur.Deposit = cur.Deposit || n.DepositEnabled
		cur.Withdraw = cur.Withdraw || n.WithdrawEnabled
		if fee := n.WithdrawalFee.Decimal(); fee.IsPositive() && (cur.Fee.IsZero() || fee.LessThan(cur.Fee)) {
			cur.Fee = fee
		}
	}
	cur.Active = cur.Deposit || cur.Withdraw
	return cur, nil
}

func sortCurrencies(list []exchanges.Currency) {
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
}
