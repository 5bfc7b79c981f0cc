package okx

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/markets"
	"tradegate/internal/adapters/exchanges/parse"
	"tradegate/pkg/errors"
)

// FetchMarkets implements exchanges.MarketData. Instrument types are
// fetched concurrently and concatenated in configuration order.
func (c *Client) FetchMarkets(ctx context.Context, params exchanges.Params) ([]exchanges.Market, error) {
	slots := make([][]exchanges.Market, len(c.instTypes))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, typ := range c.instTypes {
		p.Go(func(ctx context.Context) error {
			q := withParams(url.Values{"instType": {typ}}, params)
			rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/public/instruments", query: q, cost: 1})
			if err != nil {
				return err
			}
			list := make([]exchanges.Market, 0, len(rows))
			for _, raw := range rows {
				m, ok, err := parseMarket(raw)
				if err != nil {
					return err
				}
				if ok {
					list = append(list, m)
				}
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
	InstType  string          `json:"instType"`
	InstID    string          `json:"instId"`
	Uly       string          `json:"uly"`
	BaseCcy   string          `json:"baseCcy"`
	QuoteCcy  string          `json:"quoteCcy"`
	SettleCcy string          `json:"settleCcy"`
	CtVal     parse.Number    `json:"ctVal"`
	ExpTime   parse.Timestamp `json:"expTime"`
	Lever     parse.Number    `json:"lever"`
	TickSz    string          `json:"tickSz"`
	LotSz     string          `json:"lotSz"`
	MinSz     parse.Number    `json:"minSz"`
	MaxLmtSz  parse.Number    `json:"maxLmtSz"`
	State     string          `json:"state"`
}

// parseMarket converts one instrument. Pre-open instruments and types
// other than spot, swap and futures are skipped. Derivatives take base and
// quote from the underlying, e.g. BTC-USD for inverse contracts settled
// in BTC.
func parseMarket(raw json.RawMessage) (exchanges.Market, bool, error) {
	var in instrument
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Market{}, false, unexpected("instrument", err)
	}
	if in.State == "preopen" {
		return exchanges.Market{}, false, nil
	}

	m := exchanges.Market{
		ID:      in.InstID,
		BaseID:  in.BaseCcy,
		QuoteID: in.QuoteCcy,
		Active:  in.State == "live",
		Info:    raw,
	}
	switch in.InstType {
	case InstSpot:
		m.Type = exchanges.MarketTypeSpot
		m.Margin = in.Lever.Decimal().IsPositive()
	case InstSwap:
		m.Type = exchanges.MarketTypeSwap
	case InstFutures:
		m.Type = exchanges.MarketTypeFuture
	default:
		return exchanges.Market{}, false, nil
	}
	if m.Type != exchanges.MarketTypeSpot {
		base, quote, found := strings.Cut(in.Uly, "-")
		if !found {
			return exchanges.Market{}, false, errors.Wrapf(errors.ErrUnexpectedResponse, "okx: instrument %s has no underlying", in.InstID)
		}
		m.BaseID, m.QuoteID = base, quote
	}
	m.Base = markets.CurrencyCode(m.BaseID, nil)
	m.Quote = markets.CurrencyCode(m.QuoteID, nil)
	parts := markets.Parts{Base: m.Base, Quote: m.Quote}

	if m.Type != exchanges.MarketTypeSpot {
		m.SettleID = in.SettleCcy
		m.Settle = markets.CurrencyCode(in.SettleCcy, nil)
		parts.Settle = m.Settle
		m.ContractSize = in.CtVal.Decimal()
		if m.ContractSize.IsZero() {
			m.ContractSize = decimal.NewFromInt(1)
		}
		m.Limits.Leverage = exchanges.MinMax{Min: decimal.NewFromInt(1), Max: in.Lever.Decimal()}
		if m.Type == exchanges.MarketTypeFuture {
			m.Expiry = in.ExpTime.Time()
			if !m.Expiry.IsZero() {
				m.ExpiryDatetime = m.Expiry.Format(time.RFC3339)
			}
			parts.Expiry = m.Expiry
		}
	}

	m.Precision = exchanges.Precision{
		Amount: markets.TickOrDecimals(in.LotSz, nil),
		Price:  markets.TickOrDecimals(in.TickSz, nil),
	}
	m.Limits.Amount = exchanges.MinMax{Min: in.MinSz.Decimal(), Max: in.MaxLmtSz.Decimal()}

	markets.Flags(&m)
	m.Symbol = markets.Symbol(parts)
	return m, true, nil
}
