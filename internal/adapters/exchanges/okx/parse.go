package okx

import (
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/markets"
	"tradegate/internal/adapters/exchanges/parse"
)

type resolver func(id string) exchanges.Market

var orderStatuses = parse.StatusTable{
	"live":             exchanges.OrderStatusOpen,
	"partially_filled": exchanges.OrderStatusOpen,
	"filled":           exchanges.OrderStatusClosed,
	"canceled":         exchanges.OrderStatusCanceled,
	"mmp_canceled":     exchanges.OrderStatusCanceled,
}

// billTypes names the numeric bill types of the account ledger.
var billTypes = map[string]string{
	"1":  "transfer",
	"2":  "trade",
	"3":  "delivery",
	"4":  "conversion",
	"5":  "liquidation",
	"6":  "margin",
	"7":  "interest",
	"8":  "funding",
	"9":  "adl",
	"10": "clawback",
	"11": "conversion",
	"12": "strategy",
	"13": "ddh",
}

var hundred = decimal.NewFromInt(100)

func currency(id string) string {
	if id == "" {
		return ""
	}
	return markets.CurrencyCode(id, nil)
}

// contracts returns the contract size, one for spot.
func contracts(m exchanges.Market) decimal.Decimal {
	if m.ContractSize.IsPositive() {
		return m.ContractSize
	}
	return decimal.NewFromInt(1)
}

// notional is price times amount in quote units; inverse contracts have no
// quote-denominated cost.
func notional(m exchanges.Market, price, amount decimal.Decimal) decimal.Decimal {
	if m.Inverse {
		return decimal.Zero
	}
	return price.Mul(amount).Mul(contracts(m))
}

type rawTicker struct {
	InstID    string          `json:"instId"`
	Last      parse.Number    `json:"last"`
	AskPx     parse.Number    `json:"askPx"`
	AskSz     parse.Number    `json:"askSz"`
	BidPx     parse.Number    `json:"bidPx"`
	BidSz     parse.Number    `json:"bidSz"`
	Open24h   parse.Number    `json:"open24h"`
	High24h   parse.Number    `json:"high24h"`
	Low24h    parse.Number    `json:"low24h"`
	Vol24h    parse.Number    `json:"vol24h"`
	VolCcy24h parse.Number    `json:"volCcy24h"`
	TS        parse.Timestamp `json:"ts"`
}

// parseTicker reads one ticker row. Spot reports vol24h in base and
// volCcy24h in quote; contracts report vol24h in contracts and volCcy24h
// in base.
func parseTicker(raw json.RawMessage, resolve resolver) (exchanges.Ticker, error) {
	var in rawTicker
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Ticker{}, unexpected("ticker", err)
	}
	m := resolve(in.InstID)
	t := exchanges.Ticker{
		Symbol:      m.Symbol,
		Last:        in.Last.Decimal(),
		Bid:         in.BidPx.Decimal(),
		BidVolume:   in.BidSz.Decimal(),
		Ask:         in.AskPx.Decimal(),
		AskVolume:   in.AskSz.Decimal(),
		High:        in.High24h.Decimal(),
		Low:         in.Low24h.Decimal(),
		Open:        in.Open24h.Decimal(),
		BaseVolume:  in.Vol24h.Decimal(),
		QuoteVolume: in.VolCcy24h.Decimal(),
		Timestamp:   in.TS.Time(),
		Info:        raw,
	}
	if m.Contract {
		t.BaseVolume = in.VolCcy24h.Decimal()
		t.QuoteVolume = t.BaseVolume.Mul(t.Last)
	}
	if t.Open.IsPositive() {
		t.Change = t.Last.Sub(t.Open)
		t.Percentage = t.Change.Div(t.Open).Mul(hundred)
	}
	return t, nil
}

func parseOrderBook(raw json.RawMessage, symbol string) (exchanges.OrderBook, error) {
	var in struct {
		Asks [][]parse.Number `json:"asks"`
		Bids [][]parse.Number `json:"bids"`
		TS   parse.Timestamp  `json:"ts"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.OrderBook{}, unexpected("order book", err)
	}
	return exchanges.OrderBook{
		Symbol:    symbol,
		Bids:      levels(in.Bids),
		Asks:      levels(in.Asks),
		Nonce:     int64(in.TS),
		Timestamp: in.TS.Time(),
	}, nil
}

// levels keeps price and size; the liquidated-order and order-count
// columns are dropped.
func levels(rows [][]parse.Number) []exchanges.OrderBookLevel {
	out := make([]exchanges.OrderBookLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, exchanges.OrderBookLevel{Price: row[0].Decimal(), Amount: row[1].Decimal()})
	}
	return out
}

type rawTrade struct {
	InstID   string          `json:"instId"`
	TradeID  string          `json:"tradeId"`
	OrdID    string          `json:"ordId"`
	Side     string          `json:"side"`
	Px       parse.Number    `json:"px"`
	Sz       parse.Number    `json:"sz"`
	FillPx   parse.Number    `json:"fillPx"`
	FillSz   parse.Number    `json:"fillSz"`
	Fee      parse.Number    `json:"fee"`
	FeeCcy   string          `json:"feeCcy"`
	ExecType string          `json:"execType"`
	TS       parse.Timestamp `json:"ts"`
}

// parseTrade reads public trades and private fills. Amounts of contract
// markets are in contracts.
func parseTrade(raw json.RawMessage, resolve resolver) (exchanges.Trade, error) {
	var in rawTrade
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Trade{}, unexpected("trade", err)
	}
	m := resolve(in.InstID)
	t := exchanges.Trade{
		ID:        in.TradeID,
		Order:     in.OrdID,
		Symbol:    m.Symbol,
		Side:      parse.Side(in.Side),
		Price:     in.Px.Decimal(),
		Amount:    in.Sz.Decimal(),
		Timestamp: in.TS.Time(),
		Info:      raw,
	}
	if t.Price.IsZero() {
		t.Price = in.FillPx.Decimal()
		t.Amount = in.FillSz.Decimal()
	}
	t.Cost = notional(m, t.Price, t.Amount)
	switch in.ExecType {
	case "T":
		t.TakerOrMaker = "taker"
	case "M":
		t.TakerOrMaker = "maker"
	}
	if fee := in.Fee.Decimal(); !fee.IsZero() {
		t.Fee = parse.Fee(fee, currency(in.FeeCcy), decimal.Zero)
	}
	return t, nil
}

type rawOrder struct {
	InstID     string          `json:"instId"`
	OrdID      string          `json:"ordId"`
	ClOrdID    string          `json:"clOrdId"`
	Side       string          `json:"side"`
	OrdType    string          `json:"ordType"`
	Px         parse.Number    `json:"px"`
	Sz         parse.Number    `json:"sz"`
	AvgPx      parse.Number    `json:"avgPx"`
	AccFillSz  parse.Number    `json:"accFillSz"`
	State      string          `json:"state"`
	Fee        parse.Number    `json:"fee"`
	FeeCcy     string          `json:"feeCcy"`
	ReduceOnly string          `json:"reduceOnly"`
	CTime      parse.Timestamp `json:"cTime"`
	UTime      parse.Timestamp `json:"uTime"`
}

func parseOrder(raw json.RawMessage, resolve resolver) (exchanges.Order, error) {
	var in rawOrder
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Order{}, unexpected("order", err)
	}
	m := resolve(in.InstID)
	o := exchanges.Order{
		ID:            in.OrdID,
		ClientOrderID: in.ClOrdID,
		Symbol:        m.Symbol,
		Side:          parse.Side(in.Side),
		Status:        orderStatuses.Map(in.State),
		Amount:        in.Sz.Decimal(),
		Price:         in.Px.Ptr(),
		Filled:        in.AccFillSz.Decimal(),
		Average:       in.AvgPx.Ptr(),
		ReduceOnly:    in.ReduceOnly == "true",
		Timestamp:     in.CTime.Time(),
		LastUpdate:    in.UTime.Time(),
		Info:          raw,
	}
	o.Type, o.TimeInForce, o.PostOnly = orderType(in.OrdType)
	if o.Type == exchanges.OrderTypeMarket {
		o.Price = nil
	}
	o.Cost = notional(m, in.AvgPx.Decimal(), o.Filled)
	if !o.Amount.IsZero() {
		remaining := o.Amount.Sub(o.Filled)
		if o.Status != exchanges.OrderStatusOpen {
			remaining = decimal.Zero
		}
		o.Remaining = &remaining
	}
	if fee := in.Fee.Decimal(); !fee.IsZero() {
		o.Fee = parse.Fee(fee, currency(in.FeeCcy), decimal.Zero)
	}
	return o, nil
}

// orderType splits the venue ordType, which folds time in force into the
// type.
func orderType(raw string) (exchanges.OrderType, exchanges.TimeInForce, bool) {
	switch raw {
	case "market":
		return exchanges.OrderTypeMarket, "", false
	case "post_only":
		return exchanges.OrderTypeLimit, exchanges.TimeInForcePO, true
	case "ioc", "optimal_limit_ioc":
		return exchanges.OrderTypeLimit, exchanges.TimeInForceIOC, false
	case "fok":
		return exchanges.OrderTypeLimit, exchanges.TimeInForceFOK, false
	default:
		return exchanges.OrderTypeLimit, exchanges.TimeInForceGTC, false
	}
}

type rawPosition struct {
	InstID      string          `json:"instId"`
	PosSide     string          `json:"posSide"`
	Pos         parse.Number    `json:"pos"`
	AvgPx       parse.Number    `json:"avgPx"`
	MarkPx      parse.Number    `json:"markPx"`
	LiqPx       parse.Number    `json:"liqPx"`
	NotionalUsd parse.Number    `json:"notionalUsd"`
	Lever       parse.Number    `json:"lever"`
	MgnMode     string          `json:"mgnMode"`
	Upl         parse.Number    `json:"upl"`
	RealizedPnl parse.Number    `json:"realizedPnl"`
	UTime       parse.Timestamp `json:"uTime"`
}

// parsePosition returns false for flat rows. In net mode the sign of pos
// gives the side.
func parsePosition(raw json.RawMessage, resolve resolver) (exchanges.Position, bool, error) {
	var in rawPosition
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Position{}, false, unexpected("position", err)
	}
	size := in.Pos.Decimal()
	if size.IsZero() {
		return exchanges.Position{}, false, nil
	}
	m := resolve(in.InstID)
	pos := exchanges.Position{
		Symbol:           m.Symbol,
		Side:             exchanges.PositionSideLong,
		Contracts:        size.Abs(),
		ContractSize:     m.ContractSize,
		EntryPrice:       in.AvgPx.Decimal(),
		MarkPrice:        in.MarkPx.Decimal(),
		Notional:         in.NotionalUsd.Decimal().Abs(),
		UnrealizedPnl:    in.Upl.Decimal(),
		RealizedPnl:      in.RealizedPnl.Decimal(),
		Leverage:         in.Lever.Decimal(),
		LiquidationPrice: in.LiqPx.Decimal(),
		MarginMode:       exchanges.MarginCross,
		Timestamp:        in.UTime.Time(),
		Info:             raw,
	}
	switch {
	case in.PosSide == "short":
		pos.Side = exchanges.PositionSideShort
	case in.PosSide != "long" && size.IsNegative():
		pos.Side = exchanges.PositionSideShort
	}
	if in.MgnMode == "isolated" {
		pos.MarginMode = exchanges.MarginIsolated
	}
	return pos, true, nil
}

type rawDetail struct {
	Ccy       string       `json:"ccy"`
	Eq        parse.Number `json:"eq"`
	CashBal   parse.Number `json:"cashBal"`
	AvailBal  parse.Number `json:"availBal"`
	FrozenBal parse.Number `json:"frozenBal"`
}

// balanceEntry reads one currency detail. Equity is the total when
// reported, else the cash balance.
func balanceEntry(in rawDetail) exchanges.BalanceEntry {
	total := in.Eq.Decimal()
	if total.IsZero() {
		total = in.CashBal.Decimal()
	}
	free := in.AvailBal.Decimal()
	used := in.FrozenBal.Decimal()
	if used.IsZero() {
		used = total.Sub(free)
	}
	return exchanges.BalanceEntry{Free: free, Used: used, Total: total}
}

type rawBill struct {
	BillID string          `json:"billId"`
	Ccy    string          `json:"ccy"`
	BalChg parse.Number    `json:"balChg"`
	Type   string          `json:"type"`
	InstID string          `json:"instId"`
	Fee    parse.Number    `json:"fee"`
	OrdID  string          `json:"ordId"`
	TS     parse.Timestamp `json:"ts"`
}

func parseLedgerEntry(raw json.RawMessage, resolve resolver) (exchanges.LedgerEntry, error) {
	var in rawBill
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.LedgerEntry{}, unexpected("bill", err)
	}
	dir, amount := parse.Direction(in.BalChg.Decimal())
	e := exchanges.LedgerEntry{
		ID:          in.BillID,
		Direction:   dir,
		Type:        billTypes[in.Type],
		Amount:      amount,
		Currency:    currency(in.Ccy),
		ReferenceID: in.OrdID,
		Timestamp:   in.TS.Time(),
		Info:        raw,
	}
	if e.Type == "" {
		e.Type = strings.ToLower(in.Type)
	}
	if in.InstID != "" {
		e.Symbol = resolve(in.InstID).Symbol
	}
	if fee := in.Fee.Decimal(); !fee.IsZero() {
		e.Fee = parse.Fee(fee, e.Currency, decimal.Zero)
	}
	return e, nil
}
