package bybit

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
	"Created":                 exchanges.OrderStatusOpen,
	"New":                     exchanges.OrderStatusOpen,
	"PartiallyFilled":         exchanges.OrderStatusOpen,
	"Untriggered":             exchanges.OrderStatusOpen,
	"Active":                  exchanges.OrderStatusOpen,
	"Triggered":               exchanges.OrderStatusOpen,
	"Filled":                  exchanges.OrderStatusClosed,
	"Cancelled":               exchanges.OrderStatusCanceled,
	"PartiallyFilledCanceled": exchanges.OrderStatusCanceled,
	"Deactivated":             exchanges.OrderStatusCanceled,
	"Rejected":                exchanges.OrderStatusRejected,
}

var timeInForces = map[string]exchanges.TimeInForce{
	"GTC":      exchanges.TimeInForceGTC,
	"IOC":      exchanges.TimeInForceIOC,
	"FOK":      exchanges.TimeInForceFOK,
	"PostOnly": exchanges.TimeInForcePO,
}

// Trigger directions: the order arms when the price rises to or falls to
// the trigger.
const (
	triggerRise = 1
	triggerFall = 2
)

func currency(id string) string {
	if id == "" {
		return ""
	}
	return markets.CurrencyCode(id, nil)
}

type rawTicker struct {
	Symbol          string          `json:"symbol"`
	LastPrice       parse.Number    `json:"lastPrice"`
	Bid1Price       parse.Number    `json:"bid1Price"`
	Bid1Size        parse.Number    `json:"bid1Size"`
	Ask1Price       parse.Number    `json:"ask1Price"`
	Ask1Size        parse.Number    `json:"ask1Size"`
	PrevPrice24h    parse.Number    `json:"prevPrice24h"`
	Price24hPcnt    parse.Number    `json:"price24hPcnt"`
	HighPrice24h    parse.Number    `json:"highPrice24h"`
	LowPrice24h     parse.Number    `json:"lowPrice24h"`
	Volume24h       parse.Number    `json:"volume24h"`
	Turnover24h     parse.Number    `json:"turnover24h"`
	MarkPrice       parse.Number    `json:"markPrice"`
	IndexPrice      parse.Number    `json:"indexPrice"`
	FundingRate     parse.Number    `json:"fundingRate"`
	NextFundingTime parse.Timestamp `json:"nextFundingTime"`
}

var hundred = decimal.NewFromInt(100)

// parseTicker reads one tickers row; price24hPcnt is a fraction. Inverse
// contracts report volume24h in contracts and turnover24h in base.
func parseTicker(raw json.RawMessage, category string, ts int64, resolve resolver) (exchanges.Ticker, error) {
	var in rawTicker
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Ticker{}, unexpected("ticker", err)
	}
	t := exchanges.Ticker{
		Symbol:      resolve(in.Symbol).Symbol,
		Last:        in.LastPrice.Decimal(),
		Bid:         in.Bid1Price.Decimal(),
		BidVolume:   in.Bid1Size.Decimal(),
		Ask:         in.Ask1Price.Decimal(),
		AskVolume:   in.Ask1Size.Decimal(),
		High:        in.HighPrice24h.Decimal(),
		Low:         in.LowPrice24h.Decimal(),
		Open:        in.PrevPrice24h.Decimal(),
		Percentage:  in.Price24hPcnt.Decimal().Mul(hundred),
		BaseVolume:  in.Volume24h.Decimal(),
		QuoteVolume: in.Turnover24h.Decimal(),
		Timestamp:   parse.Millis(ts),
		Info:        raw,
	}
	if !t.Open.IsZero() {
		t.Change = t.Last.Sub(t.Open)
	}
	if category == CategoryInverse {
		t.BaseVolume = in.Turnover24h.Decimal()
		t.QuoteVolume = in.Volume24h.Decimal()
	}
	return t, nil
}

func parseFundingRate(raw json.RawMessage, ts int64, resolve resolver) (exchanges.FundingRate, error) {
	var in rawTicker
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.FundingRate{}, unexpected("funding rate", err)
	}
	fr := exchanges.FundingRate{
		Symbol:           resolve(in.Symbol).Symbol,
		FundingRate:      in.FundingRate.Decimal(),
		FundingTimestamp: in.NextFundingTime.Time(),
		MarkPrice:        in.MarkPrice.Decimal(),
		IndexPrice:       in.IndexPrice.Decimal(),
		Interval:         fundingInterval,
		Timestamp:        parse.Millis(ts),
		Info:             raw,
	}
	if fr.FundingTimestamp.IsZero() {
		fr.FundingTimestamp = parse.NextFundingTime(fr.Timestamp, fundingInterval)
	}
	return fr, nil
}

func parseFundingHistory(raw json.RawMessage, resolve resolver) (exchanges.FundingRate, error) {
	var in struct {
		Symbol               string          `json:"symbol"`
		FundingRate          parse.Number    `json:"fundingRate"`
		FundingRateTimestamp parse.Timestamp `json:"fundingRateTimestamp"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.FundingRate{}, unexpected("funding history", err)
	}
	ts := in.FundingRateTimestamp.Time()
	return exchanges.FundingRate{
		Symbol:           resolve(in.Symbol).Symbol,
		FundingRate:      in.FundingRate.Decimal(),
		FundingTimestamp: ts,
		Interval:         fundingInterval,
		Timestamp:        ts,
		Info:             raw,
	}, nil
}

func parseOrderBook(raw json.RawMessage, symbol string) (exchanges.OrderBook, error) {
	var in struct {
		Bids   [][]parse.Number `json:"b"`
		Asks   [][]parse.Number `json:"a"`
		TS     parse.Timestamp  `json:"ts"`
		Update int64            `json:"u"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.OrderBook{}, unexpected("order book", err)
	}
	return exchanges.OrderBook{
		Symbol:    symbol,
		Bids:      levels(in.Bids),
		Asks:      levels(in.Asks),
		Nonce:     in.Update,
		Timestamp: in.TS.Time(),
	}, nil
}

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
	ExecID    string          `json:"execId"`
	OrderID   string          `json:"orderId"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Price     parse.Number    `json:"price"`
	Size      parse.Number    `json:"size"`
	Time      parse.Timestamp `json:"time"`
	ExecPrice parse.Number    `json:"execPrice"`
	ExecQty   parse.Number    `json:"execQty"`
	ExecValue parse.Number    `json:"execValue"`
	ExecFee   parse.Number    `json:"execFee"`
	FeeRate   parse.Number    `json:"feeRate"`
	ExecTime  parse.Timestamp `json:"execTime"`
	IsMaker   *bool           `json:"isMaker"`
}

// parseTrade reads public recent-trade rows and private execution rows.
func parseTrade(raw json.RawMessage, m exchanges.Market) (exchanges.Trade, error) {
	var in rawTrade
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Trade{}, unexpected("trade", err)
	}
	t := exchanges.Trade{
		ID:        in.ExecID,
		Order:     in.OrderID,
		Symbol:    m.Symbol,
		Side:      parse.Side(in.Side),
		Price:     in.Price.Decimal(),
		Amount:    in.Size.Decimal(),
		Timestamp: in.Time.Time(),
		Info:      raw,
	}
	if t.Price.IsZero() {
		t.Price = in.ExecPrice.Decimal()
		t.Amount = in.ExecQty.Decimal()
		t.Cost = in.ExecValue.Decimal()
		t.Timestamp = in.ExecTime.Time()
	}
	if t.Cost.IsZero() && !m.Inverse {
		t.Cost = t.Price.Mul(t.Amount)
	}
	if in.IsMaker != nil {
		t.TakerOrMaker = "taker"
		if *in.IsMaker {
			t.TakerOrMaker = "maker"
		}
	}
	if fee := in.ExecFee.Decimal(); !fee.IsZero() {
		t.Fee = parse.Fee(fee, feeCurrency(m, t.Side), in.FeeRate.Decimal().Abs())
	}
	return t, nil
}

// feeCurrency is the settle coin for contracts; spot charges in the coin
// received.
func feeCurrency(m exchanges.Market, side exchanges.OrderSide) string {
	switch {
	case m.Contract:
		return m.Settle
	case side == exchanges.OrderSideBuy:
		return m.Base
	default:
		return m.Quote
	}
}

type rawOrder struct {
	OrderID          string          `json:"orderId"`
	OrderLinkID      string          `json:"orderLinkId"`
	Symbol           string          `json:"symbol"`
	Side             string          `json:"side"`
	OrderType        string          `json:"orderType"`
	Price            parse.Number    `json:"price"`
	Qty              parse.Number    `json:"qty"`
	LeavesQty        parse.Number    `json:"leavesQty"`
	CumExecQty       parse.Number    `json:"cumExecQty"`
	CumExecValue     parse.Number    `json:"cumExecValue"`
	CumExecFee       parse.Number    `json:"cumExecFee"`
	AvgPrice         parse.Number    `json:"avgPrice"`
	OrderStatus      string          `json:"orderStatus"`
	TimeInForce      string          `json:"timeInForce"`
	TriggerPrice     parse.Number    `json:"triggerPrice"`
	TriggerDirection int             `json:"triggerDirection"`
	StopOrderType    string          `json:"stopOrderType"`
	ReduceOnly       bool            `json:"reduceOnly"`
	CreatedTime      parse.Timestamp `json:"createdTime"`
	UpdatedTime      parse.Timestamp `json:"updatedTime"`
}

func parseOrder(raw json.RawMessage, resolve resolver) (exchanges.Order, error) {
	var in rawOrder
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Order{}, unexpected("order", err)
	}
	m := resolve(in.Symbol)
	side := parse.Side(in.Side)
	o := exchanges.Order{
		ID:            in.OrderID,
		ClientOrderID: in.OrderLinkID,
		Symbol:        m.Symbol,
		Side:          side,
		Status:        orderStatuses.Map(in.OrderStatus),
		Amount:        in.Qty.Decimal(),
		Price:         in.Price.Ptr(),
		Filled:        in.CumExecQty.Decimal(),
		Cost:          in.CumExecValue.Decimal(),
		Average:       in.AvgPrice.Ptr(),
		TriggerPrice:  in.TriggerPrice.Ptr(),
		TimeInForce:   timeInForces[in.TimeInForce],
		PostOnly:      in.TimeInForce == "PostOnly",
		ReduceOnly:    in.ReduceOnly,
		Timestamp:     in.CreatedTime.Time(),
		LastUpdate:    in.UpdatedTime.Time(),
		Info:          raw,
	}
	o.Type = orderType(in.OrderType, side, in.TriggerDirection, in.StopOrderType, o.TriggerPrice != nil)
	if o.Type == exchanges.OrderTypeMarket {
		o.Price = nil
	}
	if !o.Amount.IsZero() {
		remaining := o.Amount.Sub(o.Filled)
		if in.LeavesQty.Decimal().IsPositive() || o.Status != exchanges.OrderStatusOpen {
			remaining = in.LeavesQty.Decimal()
		}
		o.Remaining = &remaining
	}
	if fee := in.CumExecFee.Decimal(); !fee.IsZero() {
		o.Fee = parse.Fee(fee, feeCurrency(m, side), decimal.Zero)
	}
	return o, nil
}

// orderType maps the venue type back to a canonical one. Conditional
// orders are stops when they arm against the position (a buy on a rise,
// a sell on a fall) and take-profits otherwise.
func orderType(raw string, side exchanges.OrderSide, direction int, stopType string, triggered bool) exchanges.OrderType {
	limit := strings.EqualFold(raw, "Limit")
	if !triggered {
		if limit {
			return exchanges.OrderTypeLimit
		}
		return exchanges.OrderTypeMarket
	}
	takeProfit := strings.Contains(stopType, "TakeProfit")
	if direction != 0 && !strings.Contains(stopType, "StopLoss") && !takeProfit {
		stop := (side == exchanges.OrderSideBuy) == (direction == triggerRise)
		takeProfit = !stop
	}
	switch {
	case limit && takeProfit:
		return exchanges.OrderTypeTakeProfitLimit
	case limit:
		return exchanges.OrderTypeStopLimit
	case takeProfit:
		return exchanges.OrderTypeTakeProfitMarket
	default:
		return exchanges.OrderTypeStopMarket
	}
}

type rawPosition struct {
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Size           parse.Number    `json:"size"`
	AvgPrice       parse.Number    `json:"avgPrice"`
	MarkPrice      parse.Number    `json:"markPrice"`
	LiqPrice       parse.Number    `json:"liqPrice"`
	PositionValue  parse.Number    `json:"positionValue"`
	Leverage       parse.Number    `json:"leverage"`
	UnrealisedPnl  parse.Number    `json:"unrealisedPnl"`
	CumRealisedPnl parse.Number    `json:"cumRealisedPnl"`
	TradeMode      int             `json:"tradeMode"`
	UpdatedTime    parse.Timestamp `json:"updatedTime"`
}

// parsePosition returns false for flat rows.
func parsePosition(raw json.RawMessage, resolve resolver) (exchanges.Position, bool, error) {
	var in rawPosition
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Position{}, false, unexpected("position", err)
	}
	size := in.Size.Decimal()
	if size.IsZero() {
		return exchanges.Position{}, false, nil
	}
	m := resolve(in.Symbol)
	pos := exchanges.Position{
		Symbol:           m.Symbol,
		Side:             exchanges.PositionSideLong,
		Contracts:        size.Abs(),
		ContractSize:     m.ContractSize,
		EntryPrice:       in.AvgPrice.Decimal(),
		MarkPrice:        in.MarkPrice.Decimal(),
		Notional:         in.PositionValue.Decimal().Abs(),
		UnrealizedPnl:    in.UnrealisedPnl.Decimal(),
		RealizedPnl:      in.CumRealisedPnl.Decimal(),
		Leverage:         in.Leverage.Decimal(),
		LiquidationPrice: in.LiqPrice.Decimal(),
		MarginMode:       exchanges.MarginCross,
		Timestamp:        in.UpdatedTime.Time(),
		Info:             raw,
	}
	if strings.EqualFold(in.Side, "Sell") {
		pos.Side = exchanges.PositionSideShort
	}
	if in.TradeMode == 1 {
		pos.MarginMode = exchanges.MarginIsolated
	}
	return pos, true, nil
}

type rawCoin struct {
	Coin                string       `json:"coin"`
	WalletBalance       parse.Number `json:"walletBalance"`
	Equity              parse.Number `json:"equity"`
	Locked              parse.Number `json:"locked"`
	TotalOrderIM        parse.Number `json:"totalOrderIM"`
	TotalPositionIM     parse.Number `json:"totalPositionIM"`
	AvailableToWithdraw parse.Number `json:"availableToWithdraw"`
}

// balanceEntry reads one wallet coin. Total is the wallet balance; used
// is what orders and positions lock.
func balanceEntry(in rawCoin) exchanges.BalanceEntry {
	total := in.WalletBalance.Decimal()
	used := in.Locked.Decimal().Add(in.TotalOrderIM.Decimal()).Add(in.TotalPositionIM.Decimal())
	free := total.Sub(used)
	if avail := in.AvailableToWithdraw.Decimal(); avail.IsPositive() {
		free = avail
		used = total.Sub(free)
	}
	return exchanges.BalanceEntry{Free: free, Used: used, Total: total}
}

type rawLog struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Category        string          `json:"category"`
	Type            string          `json:"type"`
	Currency        string          `json:"currency"`
	Change          parse.Number    `json:"change"`
	Fee             parse.Number    `json:"fee"`
	TradeID         string          `json:"tradeId"`
	TransactionTime parse.Timestamp `json:"transactionTime"`
}

func parseLedgerEntry(raw json.RawMessage, resolvers map[string]resolver) (exchanges.LedgerEntry, error) {
	var in rawLog
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.LedgerEntry{}, unexpected("transaction log", err)
	}
	dir, amount := parse.Direction(in.Change.Decimal())
	e := exchanges.LedgerEntry{
		ID:          in.ID,
		Direction:   dir,
		Type:        strings.ToLower(in.Type),
		Amount:      amount,
		Currency:    currency(in.Currency),
		Account:     in.Category,
		ReferenceID: in.TradeID,
		Timestamp:   in.TransactionTime.Time(),
		Info:        raw,
	}
	if in.Symbol != "" {
		if resolve, ok := resolvers[in.Category]; ok {
			e.Symbol = resolve(in.Symbol).Symbol
		} else {
			e.Symbol = in.Symbol
		}
	}
	if fee := in.Fee.Decimal(); !fee.IsZero() {
		e.Fee = parse.Fee(fee, e.Currency, decimal.Zero)
	}
	return e, nil
}
