package bybit

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/markets"
	"tradegate/internal/adapters/exchanges/parse"
)

// FetchMarkets implements exchanges.MarketData. Categories are fetched
// concurrently and concatenated in configuration order.
func (c *Client) FetchMarkets(ctx context.Context, params exchanges.Params) ([]exchanges.Market, error) {
	slots := make([][]exchanges.Market, len(c.categories))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, cat := range c.categories {
		p.Go(func(ctx context.Context) error {
			list, err := c.instruments(ctx, cat, params)
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

type instrument struct {
	Symbol        string          `json:"symbol"`
	ContractType  string          `json:"contractType"`
	Status        string          `json:"status"`
	BaseCoin      string          `json:"baseCoin"`
	QuoteCoin     string          `json:"quoteCoin"`
	SettleCoin    string          `json:"settleCoin"`
	MarginTrading string          `json:"marginTrading"`
	DeliveryTime  parse.Timestamp `json:"deliveryTime"`
	PriceFilter   struct {
		MinPrice string `json:"minPrice"`
		MaxPrice string `json:"maxPrice"`
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
	LotSizeFilter struct {
		BasePrecision    string       `json:"basePrecision"`
		QtyStep          string       `json:"qtyStep"`
		MinOrderQty      parse.Number `json:"minOrderQty"`
		MaxOrderQty      parse.Number `json:"maxOrderQty"`
		MinOrderAmt      parse.Number `json:"minOrderAmt"`
		MaxOrderAmt      parse.Number `json:"maxOrderAmt"`
		MinNotionalValue parse.Number `json:"minNotionalValue"`
	} `json:"lotSizeFilter"`
	LeverageFilter struct {
		MinLeverage parse.Number `json:"minLeverage"`
		MaxLeverage parse.Number `json:"maxLeverage"`
	} `json:"leverageFilter"`
}

// instruments pages through instruments-info for one category.
func (c *Client) instruments(ctx context.Context, category string, params exchanges.Params) ([]exchanges.Market, error) {
	var out []exchanges.Market
	cursor := ""
	for {
		q := url.Values{"category": {category}, "limit": {strconv.Itoa(pageLimit)}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var res struct {
			List           []json.RawMessage `json:"list"`
			NextPageCursor string            `json:"nextPageCursor"`
		}
		if err := c.result(ctx, call{method: http.MethodGet, path: "/v5/market/instruments-info", query: withParams(q, params), cost: 1}, &res); err != nil {
			return nil, err
		}
		for _, raw := range res.List {
			m, ok, err := parseMarket(category, raw)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, m)
			}
		}
		if res.NextPageCursor == "" || res.NextPageCursor == cursor || len(res.List) == 0 {
			return out, nil
		}
		cursor = res.NextPageCursor
	}
}

// parseMarket converts one instrument. Pre-launch and unknown contract
// types are skipped.
func parseMarket(category string, raw json.RawMessage) (exchanges.Market, bool, error) {
	var in instrument
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Market{}, false, unexpected("instrument", err)
	}
	if in.Status == "PreLaunch" {
		return exchanges.Market{}, false, nil
	}

	m := exchanges.Market{
		ID:      in.Symbol,
		BaseID:  in.BaseCoin,
		QuoteID: in.QuoteCoin,
		Base:    markets.CurrencyCode(in.BaseCoin, nil),
		Quote:   markets.CurrencyCode(in.QuoteCoin, nil),
		Active:  in.Status == "Trading",
		Info:    raw,
	}
	parts := markets.Parts{Base: m.Base, Quote: m.Quote}

	amountTick := in.LotSizeFilter.QtyStep
	if category == CategorySpot {
		m.Type = exchanges.MarketTypeSpot
		m.Margin = in.MarginTrading != "" && in.MarginTrading != "none"
		amountTick = in.LotSizeFilter.BasePrecision
		m.Limits.Cost = exchanges.MinMax{Min: in.LotSizeFilter.MinOrderAmt.Decimal(), Max: in.LotSizeFilter.MaxOrderAmt.Decimal()}
	} else {
		switch in.ContractType {
		case "LinearPerpetual", "InversePerpetual":
			m.Type = exchanges.MarketTypeSwap
		case "LinearFutures", "InverseFutures":
			m.Type = exchanges.MarketTypeFuture
		default:
			return exchanges.Market{}, false, nil
		}
		settle := in.SettleCoin
		if settle == "" && category == CategoryInverse {
			settle = in.BaseCoin
		}
		m.SettleID = settle
		m.Settle = markets.CurrencyCode(settle, nil)
		parts.Settle = m.Settle
		m.ContractSize = decimal.NewFromInt(1)
		m.Limits.Cost.Min = in.LotSizeFilter.MinNotionalValue.Decimal()
		m.Limits.Leverage = exchanges.MinMax{Min: in.LeverageFilter.MinLeverage.Decimal(), Max: in.LeverageFilter.MaxLeverage.Decimal()}
		if m.Type == exchanges.MarketTypeFuture {
			m.Expiry = in.DeliveryTime.Time()
			if !m.Expiry.IsZero() {
				m.ExpiryDatetime = m.Expiry.Format(time.RFC3339)
			}
			parts.Expiry = m.Expiry
		}
	}

	m.Precision = exchanges.Precision{
		Amount: markets.TickOrDecimals(amountTick, nil),
		Price:  markets.TickOrDecimals(in.PriceFilter.TickSize, nil),
	}
	m.Limits.Amount = exchanges.MinMax{Min: in.LotSizeFilter.MinOrderQty.Decimal(), Max: in.LotSizeFilter.MaxOrderQty.Decimal()}
	m.Limits.Price = exchanges.MinMax{Min: parse.Decimal(in.PriceFilter.MinPrice), Max: parse.Decimal(in.PriceFilter.MaxPrice)}

	markets.Flags(&m)
	m.Symbol = markets.Symbol(parts)
	return m, true, nil
}
