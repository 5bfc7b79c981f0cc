package binance

import (
	"context"
	"net/http"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/markets"
	"tradegate/internal/adapters/exchanges/parse"
	"tradegate/pkg/errors"
)

// FetchMarkets implements exchanges.MarketData. Every enabled profile is
// queried concurrently; the result keeps profile order.
func (c *Client) FetchMarkets(ctx context.Context, params exchanges.Params) ([]exchanges.Market, error) {
	slots := make([][]exchanges.Market, len(c.profiles))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, prof := range c.profiles {
		p.Go(func(ctx context.Context) error {
			list, err := c.exchangeInfo(ctx, prof, params)
			if err != nil {
				return err
			}
			slots[i] = list
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	var out []exchanges.Market
	for _, list := range slots {
		out = append(out, list...)
	}
	return out, nil
}

type symbolInfo struct {
	Symbol             string            `json:"symbol"`
	Pair               string            `json:"pair"`
	Status             string            `json:"status"`
	ContractStatus     string            `json:"contractStatus"`
	BaseAsset          string            `json:"baseAsset"`
	QuoteAsset         string            `json:"quoteAsset"`
	MarginAsset        string            `json:"marginAsset"`
	ContractType       string            `json:"contractType"`
	DeliveryDate       parse.Timestamp   `json:"deliveryDate"`
	ContractSize       parse.Number      `json:"contractSize"`
	BaseAssetPrecision *int32            `json:"baseAssetPrecision"`
	QuotePrecision     *int32            `json:"quotePrecision"`
	PricePrecision     *int32            `json:"pricePrecision"`
	QuantityPrecision  *int32            `json:"quantityPrecision"`
	MarginAllowed      bool              `json:"isMarginTradingAllowed"`
	Filters            []json.RawMessage `json:"filters"`
}

type symbolFilter struct {
	FilterType  string       `json:"filterType"`
	MinPrice    string       `json:"minPrice"`
	MaxPrice    string       `json:"maxPrice"`
	TickSize    string       `json:"tickSize"`
	MinQty      string       `json:"minQty"`
	MaxQty      string       `json:"maxQty"`
	StepSize    string       `json:"stepSize"`
	MinNotional parse.Number `json:"minNotional"`
	Notional    parse.Number `json:"notional"`
	MaxNotional parse.Number `json:"maxNotional"`
}

func (c *Client) exchangeInfo(ctx context.Context, p Profile, params exchanges.Params) ([]exchanges.Market, error) {
	var res struct {
		Symbols []json.RawMessage `json:"symbols"`
	}
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + "/exchangeInfo", params: query(nil, params), cost: 20}, &res); err != nil {
		return nil, err
	}
	out := make([]exchanges.Market, 0, len(res.Symbols))
	for _, raw := range res.Symbols {
		m, ok, err := parseMarket(p, raw)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// parseMarket converts one exchangeInfo symbol. Futures rows without a
// contract type (index pairs) are skipped.
func parseMarket(p Profile, raw json.RawMessage) (exchanges.Market, bool, error) {
	var in symbolInfo
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Market{}, false, errors.Wrapf(errors.ErrUnexpectedResponse, "binance: symbol: %v", err)
	}

	m := exchanges.Market{
		ID:      in.Symbol,
		BaseID:  in.BaseAsset,
		QuoteID: in.QuoteAsset,
		Base:    markets.CurrencyCode(in.BaseAsset, nil),
		Quote:   markets.CurrencyCode(in.QuoteAsset, nil),
		Info:    raw,
	}
	parts := markets.Parts{Base: m.Base, Quote: m.Quote}

	if !p.Contract {
		m.Type = exchanges.MarketTypeSpot
		m.Active = in.Status == "TRADING"
		m.Margin = in.MarginAllowed
	} else {
		switch in.ContractType {
		case "PERPETUAL":
			m.Type = exchanges.MarketTypeSwap
		case "CURRENT_QUARTER", "NEXT_QUARTER", "CURRENT_MONTH", "NEXT_MONTH":
			m.Type = exchanges.MarketTypeFuture
		default:
			return exchanges.Market{}, false, nil
		}
		status := in.Status
		if status == "" {
			status = in.ContractStatus
		}
		m.Active = status == "TRADING"
		m.SettleID = in.MarginAsset
		m.Settle = markets.CurrencyCode(in.MarginAsset, nil)
		parts.Settle = m.Settle
		m.ContractSize = in.ContractSize.Decimal()
		if m.ContractSize.IsZero() {
			m.ContractSize = decimal.NewFromInt(1)
		}
		if m.Type == exchanges.MarketTypeFuture {
			m.Expiry = in.DeliveryDate.Time()
			if !m.Expiry.IsZero() {
				m.ExpiryDatetime = m.Expiry.Format(time.RFC3339)
			}
			parts.Expiry = m.Expiry
		}
	}

	applyFilters(&m, in)
	markets.Flags(&m)
	m.Symbol = markets.Symbol(parts)
	return m, true, nil
}

// applyFilters reads ticks and bounds from the PRICE_FILTER, LOT_SIZE and
// notional filters, falling back to the precision counts.
func applyFilters(m *exchanges.Market, in symbolInfo) {
	var priceTick, amountTick string
	for _, raw := range in.Filters {
		var f symbolFilter
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		switch f.FilterType {
		case "PRICE_FILTER":
			priceTick = f.TickSize
			m.Limits.Price = exchanges.MinMax{Min: parse.Decimal(f.MinPrice), Max: parse.Decimal(f.MaxPrice)}
		case "LOT_SIZE":
			amountTick = f.StepSize
			m.Limits.Amount = exchanges.MinMax{Min: parse.Decimal(f.MinQty), Max: parse.Decimal(f.MaxQty)}
		case "MIN_NOTIONAL":
			m.Limits.Cost.Min = f.MinNotional.Decimal()
			if m.Limits.Cost.Min.IsZero() {
				m.Limits.Cost.Min = f.Notional.Decimal()
			}
		case "NOTIONAL":
			m.Limits.Cost = exchanges.MinMax{Min: f.MinNotional.Decimal(), Max: f.MaxNotional.Decimal()}
		}
	}

	pricePlaces, amountPlaces := in.PricePrecision, in.QuantityPrecision
	if pricePlaces == nil {
		pricePlaces = in.QuotePrecision
	}
	if amountPlaces == nil {
		amountPlaces = in.BaseAssetPrecision
	}
	m.Precision = exchanges.Precision{
		Amount: markets.TickOrDecimals(amountTick, amountPlaces),
		Price:  markets.TickOrDecimals(priceTick, pricePlaces),
	}
}

type coinNetwork struct {
	Network                 string       `json:"network"`
	Name                    string       `json:"name"`
	DepositEnable           bool         `json:"depositEnable"`
	WithdrawEnable          bool         `json:"withdrawEnable"`
	WithdrawFee             parse.Number `json:"withdrawFee"`
	WithdrawMin             parse.Number `json:"withdrawMin"`
	WithdrawMax             parse.Number `json:"withdrawMax"`
	WithdrawIntegerMultiple string       `json:"withdrawIntegerMultiple"`
	IsDefault               bool         `json:"isDefault"`
}

type coinInfo struct {
	Coin        string        `json:"coin"`
	Name        string        `json:"name"`
	Trading     bool          `json:"trading"`
	NetworkList []coinNetwork `json:"networkList"`
}

// FetchCurrencies implements exchanges.MarketData from the wallet config
// endpoint. It needs a key; anonymous clients get an empty list.
func (c *Client) FetchCurrencies(ctx context.Context, params exchanges.Params) ([]exchanges.Currency, error) {
	if c.cfg.Credentials.Empty() || c.cfg.Testnet {
		return []exchanges.Currency{}, nil
	}
	var res []json.RawMessage
	err := c.do(ctx, call{profile: walletProfile, method: http.MethodGet, path: "/sapi/v1/capital/config/getall", params: query(nil, params), signed: true, cost: 10}, &res)
	if errors.Is(err, exchanges.ErrAuthentication) {
		c.log.Debugw("currencies unavailable without wallet permission", "error", err)
		return []exchanges.Currency{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]exchanges.Currency, 0, len(res))
	for _, raw := range res {
		cur, err := parseCurrency(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, cur)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func parseCurrency(raw json.RawMessage) (exchanges.Currency, error) {
	var in coinInfo
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Currency{}, errors.Wrapf(errors.ErrUnexpectedResponse, "binance: coin: %v", err)
	}
	cur := exchanges.Currency{
		ID:       in.Coin,
		Code:     markets.CurrencyCode(in.Coin, nil),
		Name:     in.Name,
		Networks: make(map[string]exchanges.Network, len(in.NetworkList)),
		Info:     raw,
	}
	for _, n := range in.NetworkList {
		cur.Networks[n.Network] = exchanges.Network{
			ID:       n.Network,
			Network:  n.Network,
			Deposit:  n.DepositEnable,
			Withdraw: n.WithdrawEnable,
			Fee:      n.WithdrawFee.Decimal(),
			Limits:   exchanges.MinMax{Min: n.WithdrawMin.Decimal(), Max: n.WithdrawMax.Decimal()},
		}
		cur.Deposit = cur.Deposit || n.DepositEnable
		cur.Withdraw = cur.Withdraw || n.WithdrawEnable
		if n.IsDefault {
			cur.Fee = n.WithdrawFee.Decimal()
			cur.Precision = markets.TickFromMinimum(n.WithdrawIntegerMultiple)
		}
	}
	cur.Active = cur.Deposit || cur.Withdraw || in.Trading
	return cur, nil
}
