package binance

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/markets"
	"tradegate/internal/adapters/exchanges/parse"
	"tradegate/pkg/errors"
)

type resolver func(id string) exchanges.Market

var orderStatuses = parse.StatusTable{
	"NEW":              exchanges.OrderStatusOpen,
	"PARTIALLY_FILLED": exchanges.OrderStatusOpen,
	"PENDING_NEW":      exchanges.OrderStatusOpen,
	"FILLED":           exchanges.OrderStatusClosed,
	"CANCELED":         exchanges.OrderStatusCanceled,
	"PENDING_CANCEL":   exchanges.OrderStatusCanceled,
	"REJECTED":         exchanges.OrderStatusRejected,
	"EXPIRED":          exchanges.OrderStatusExpired,
	"EXPIRED_IN_MATCH": exchanges.OrderStatusExpired,
}

var depositStatuses = parse.TransactionTable{
	"0": exchanges.TransactionPending,
	"6": exchanges.TransactionPending, // credited, not yet withdrawable
	"1": exchanges.TransactionOK,
	"7": exchanges.TransactionFailed, // wrong deposit
}

var withdrawalStatuses = parse.TransactionTable{
	"0": exchanges.TransactionPending, // email sent
	"1": exchanges.TransactionCanceled,
	"2": exchanges.TransactionPending, // awaiting approval
	"3": exchanges.TransactionFailed, // rejected
	"4": exchanges.TransactionPending, // processing
	"5": exchanges.TransactionFailed,
	"6": exchanges.TransactionOK,
}

var timeInForces = map[string]exchanges.TimeInForce{
	"GTC": exchanges.TimeInForceGTC,
	"IOC": exchanges.TimeInForceIOC,
	"FOK": exchanges.TimeInForceFOK,
	"GTX": exchanges.TimeInForcePO,
}

// walletTime is the layout of withdrawal applyTime values, in UTC.
const walletTime = "2006-01-02 15:04:05"

func unexpected(what string, err error) error {
	return errors.Wrapf(errors.ErrUnexpectedResponse, "binance: %s: %v", what, err)
}

func currency(id string) string {
	if id == "" {
		return ""
	}
	return markets.CurrencyCode(id, nil)
}

type rawTicker struct {
	Symbol             string          `json:"symbol"`
	LastPrice          parse.Number    `json:"lastPrice"`
	OpenPrice          parse.Number    `json:"openPrice"`
	HighPrice          parse.Number    `json:"highPrice"`
	LowPrice           parse.Number    `json:"lowPrice"`
	PriceChange        parse.Number    `json:"priceChange"`
	PriceChangePercent parse.Number    `json:"priceChangePercent"`
	BidPrice           parse.Number    `json:"bidPrice"`
	BidQty             parse.Number    `json:"bidQty"`
	AskPrice           parse.Number    `json:"askPrice"`
	AskQty             parse.Number    `json:"askQty"`
	Volume             parse.Number    `json:"volume"`
	BaseVolume         parse.Number    `json:"baseVolume"`
	QuoteVolume        parse.Number    `json:"quoteVolume"`
	CloseTime          parse.Timestamp `json:"closeTime"`
}

// parseTicker reads a 24hr ticker. COIN-M reports volume in contracts and
// the base amount as baseVolume.
func parseTicker(raw json.RawMessage, p Profile, resolve resolver) (exchanges.Ticker, error) {
	var in rawTicker
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Ticker{}, unexpected("ticker", err)
	}
	t := exchanges.Ticker{
		Symbol:      resolve(in.Symbol).Symbol,
		Last:        in.LastPrice.Decimal(),
		Open:        in.OpenPrice.Decimal(),
		High:        in.HighPrice.Decimal(),
		Low:         in.LowPrice.Decimal(),
		Change:      in.PriceChange.Decimal(),
		Percentage:  in.PriceChangePercent.Decimal(),
		Bid:         in.BidPrice.Decimal(),
		BidVolume:   in.BidQty.Decimal(),
		Ask:         in.AskPrice.Decimal(),
		AskVolume:   in.AskQty.Decimal(),
		BaseVolume:  in.Volume.Decimal(),
		QuoteVolume: in.QuoteVolume.Decimal(),
		Timestamp:   in.CloseTime.Time(),
		Info:        raw,
	}
	if p.Inverse {
		t.BaseVolume = in.BaseVolume.Decimal()
		t.QuoteVolume = decimal.Zero
	}
	return t, nil
}

func parseOrderBook(raw json.RawMessage, symbol string) (exchanges.OrderBook, error) {
	var in struct {
		LastUpdateID int64            `json:"lastUpdateId"`
		Bids         [][]parse.Number `json:"bids"`
		Asks         [][]parse.Number `json:"asks"`
		Time         parse.Timestamp  `json:"T"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.OrderBook{}, unexpected("order book", err)
	}
	return exchanges.OrderBook{
		Symbol:    symbol,
		Bids:      levels(in.Bids),
		Asks:      levels(in.Asks),
		Nonce:     in.LastUpdateID,
		Timestamp: in.Time.Time(),
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
	ID              parse.ID        `json:"id"`
	OrderID         parse.ID        `json:"orderId"`
	Symbol          string          `json:"symbol"`
	Price           parse.Number    `json:"price"`
	Qty             parse.Number    `json:"qty"`
	QuoteQty        parse.Number    `json:"quoteQty"`
	BaseQty         parse.Number    `json:"baseQty"`
	Commission      parse.Number    `json:"commission"`
	CommissionAsset string          `json:"commissionAsset"`
	Time            parse.Timestamp `json:"time"`
	IsBuyerMaker    bool            `json:"isBuyerMaker"`
	IsBuyer         *bool           `json:"isBuyer"`
	IsMaker         *bool           `json:"isMaker"`
	Buyer           *bool           `json:"buyer"`
	Maker           *bool           `json:"maker"`
	Side            string          `json:"side"`
}

// parseTrade reads public trades and the private myTrades/userTrades
// shapes. Public trades carry only the maker side; the taker side is the
// trade side.
func parseTrade(raw json.RawMessage, m exchanges.Market) (exchanges.Trade, error) {
	var in rawTrade
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Trade{}, unexpected("trade", err)
	}
	t := exchanges.Trade{
		ID:        string(in.ID),
		Order:     string(in.OrderID),
		Symbol:    m.Symbol,
		Price:     in.Price.Decimal(),
		Amount:    in.Qty.Decimal(),
		Cost:      in.QuoteQty.Decimal(),
		Timestamp: in.Time.Time(),
		Info:      raw,
	}
	if m.Inverse && !in.BaseQty.Decimal().IsZero() {
		t.Cost = in.BaseQty.Decimal()
	}
	if t.Cost.IsZero() && !m.Inverse {
		t.Cost = t.Price.Mul(t.Amount)
	}

	buyer := firstBool(in.IsBuyer, in.Buyer)
	maker := firstBool(in.IsMaker, in.Maker)
	switch {
	case in.Side != "":
		t.Side = parse.Side(in.Side)
	case buyer != nil:
		t.Side = exchanges.OrderSideSell
		if *buyer {
			t.Side = exchanges.OrderSideBuy
		}
	case in.IsBuyerMaker:
		t.Side = exchanges.OrderSideSell
	default:
		t.Side = exchanges.OrderSideBuy
	}
	if maker != nil {
		t.TakerOrMaker = "taker"
		if *maker {
			t.TakerOrMaker = "maker"
		}
	}
	t.Fee = parse.Fee(in.Commission.Decimal(), currency(in.CommissionAsset), decimal.Zero)
	return t, nil
}

func firstBool(values ...*bool) *bool {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

type rawOrder struct {
	Symbol              string          `json:"symbol"`
	OrderID             parse.ID        `json:"orderId"`
	ClientOrderID       string          `json:"clientOrderId"`
	Price               parse.Number    `json:"price"`
	AvgPrice            parse.Number    `json:"avgPrice"`
	OrigQty             parse.Number    `json:"origQty"`
	ExecutedQty         parse.Number    `json:"executedQty"`
	CummulativeQuoteQty parse.Number    `json:"cummulativeQuoteQty"`
	CumQuote            parse.Number    `json:"cumQuote"`
	CumBase             parse.Number    `json:"cumBase"`
	Status              string          `json:"status"`
	TimeInForce         string          `json:"timeInForce"`
	Type                string          `json:"type"`
	Side                string          `json:"side"`
	StopPrice           parse.Number    `json:"stopPrice"`
	ReduceOnly          bool            `json:"reduceOnly"`
	Time                parse.Timestamp `json:"time"`
	TransactTime        parse.Timestamp `json:"transactTime"`
	UpdateTime          parse.Timestamp `json:"updateTime"`
}

func parseOrder(raw json.RawMessage, p Profile, resolve resolver) (exchanges.Order, error) {
	var in rawOrder
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Order{}, unexpected("order", err)
	}
	m := resolve(in.Symbol)
	o := exchanges.Order{
		ID:            string(in.OrderID),
		ClientOrderID: in.ClientOrderID,
		Symbol:        m.Symbol,
		Type:          p.canonicalType(in.Type),
		Side:          parse.Side(in.Side),
		Status:        orderStatuses.Map(in.Status),
		Amount:        in.OrigQty.Decimal(),
		Price:         in.Price.Ptr(),
		Filled:        in.ExecutedQty.Decimal(),
		TriggerPrice:  in.StopPrice.Ptr(),
		TimeInForce:   timeInForces[in.TimeInForce],
		PostOnly:      in.TimeInForce == "GTX" || in.Type == "LIMIT_MAKER",
		ReduceOnly:    in.ReduceOnly,
		Timestamp:     in.Time.Time(),
		LastUpdate:    in.UpdateTime.Time(),
		Info:          raw,
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = in.TransactTime.Time()
	}
	if o.PostOnly {
		o.TimeInForce = exchanges.TimeInForcePO
	}

	switch {
	case !in.CummulativeQuoteQty.Decimal().IsZero():
		o.Cost = in.CummulativeQuoteQty.Decimal()
	case !in.CumQuote.Decimal().IsZero():
		o.Cost = in.CumQuote.Decimal()
	case !in.CumBase.Decimal().IsZero():
		o.Cost = in.CumBase.Decimal()
	}
	if !o.Amount.IsZero() {
		remaining := o.Amount.Sub(o.Filled)
		o.Remaining = &remaining
	}
	switch {
	case !in.AvgPrice.Decimal().IsZero():
		o.Average = in.AvgPrice.Ptr()
	case o.Filled.IsPositive() && !o.Cost.IsZero() && !p.Inverse:
		avg := o.Cost.DivRound(o.Filled, 16)
		o.Average = &avg
	}
	return o, nil
}

type rawBalance struct {
	Asset            string       `json:"asset"`
	Free             parse.Number `json:"free"`
	Locked           parse.Number `json:"locked"`
	Balance          parse.Number `json:"balance"`
	AvailableBalance parse.Number `json:"availableBalance"`
	CrossUnPnl       parse.Number `json:"crossUnPnl"`
}

// parseBalanceEntries reads spot balances (free/locked) or futures wallet
// rows (balance/availableBalance).
func parseBalanceEntries(rows []rawBalance, into map[string]exchanges.BalanceEntry) {
	for _, r := range rows {
		var e exchanges.BalanceEntry
		if r.Balance.Decimal().IsZero() && r.AvailableBalance.Decimal().IsZero() {
			e.Free = r.Free.Decimal()
			e.Used = r.Locked.Decimal()
			e.Total = e.Free.Add(e.Used)
		} else {
			e.Total = r.Balance.Decimal().Add(r.CrossUnPnl.Decimal())
			e.Free = r.AvailableBalance.Decimal()
			e.Used = e.Total.Sub(e.Free)
		}
		if e.Total.IsZero() && e.Free.IsZero() {
			continue
		}
		code := currency(r.Asset)
		prev := into[code]
		into[code] = exchanges.BalanceEntry{
			Free:  prev.Free.Add(e.Free),
			Used:  prev.Used.Add(e.Used),
			Total: prev.Total.Add(e.Total),
		}
	}
}

type rawPosition struct {
	Symbol           string          `json:"symbol"`
	PositionAmt      parse.Number    `json:"positionAmt"`
	EntryPrice       parse.Number    `json:"entryPrice"`
	MarkPrice        parse.Number    `json:"markPrice"`
	UnRealizedProfit parse.Number    `json:"unRealizedProfit"`
	LiquidationPrice parse.Number    `json:"liquidationPrice"`
	Leverage         parse.Number    `json:"leverage"`
	MarginType       string          `json:"marginType"`
	PositionSide     string          `json:"positionSide"`
	Notional         parse.Number    `json:"notional"`
	NotionalValue    parse.Number    `json:"notionalValue"`
	UpdateTime       parse.Timestamp `json:"updateTime"`
}

// parsePosition returns false for flat rows, which positionRisk lists for
// every symbol.
func parsePosition(raw json.RawMessage, resolve resolver) (exchanges.Position, bool, error) {
	var in rawPosition
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Position{}, false, unexpected("position", err)
	}
	amt := in.PositionAmt.Decimal()
	if amt.IsZero() {
		return exchanges.Position{}, false, nil
	}
	m := resolve(in.Symbol)
	pos := exchanges.Position{
		Symbol:           m.Symbol,
		Side:             exchanges.PositionSideLong,
		Contracts:        amt.Abs(),
		ContractSize:     m.ContractSize,
		EntryPrice:       in.EntryPrice.Decimal(),
		MarkPrice:        in.MarkPrice.Decimal(),
		Notional:         in.Notional.Decimal().Abs(),
		UnrealizedPnl:    in.UnRealizedProfit.Decimal(),
		Leverage:         in.Leverage.Decimal(),
		LiquidationPrice: in.LiquidationPrice.Decimal(),
		MarginMode:       exchanges.MarginMode(strings.ToLower(in.MarginType)),
		Timestamp:        in.UpdateTime.Time(),
		Info:             raw,
	}
	if pos.Notional.IsZero() {
		pos.Notional = in.NotionalValue.Decimal().Abs()
	}
	switch strings.ToUpper(in.PositionSide) {
	case "SHORT":
		pos.Side = exchanges.PositionSideShort
	case "LONG":
	default:
		if amt.IsNegative() {
			pos.Side = exchanges.PositionSideShort
		}
	}
	return pos, true, nil
}

type rawIncome struct {
	Symbol     string          `json:"symbol"`
	IncomeType string          `json:"incomeType"`
	Income     parse.Number    `json:"income"`
	Asset      string          `json:"asset"`
	Time       parse.Timestamp `json:"time"`
	TranID     parse.ID        `json:"tranId"`
	TradeID    parse.ID        `json:"tradeId"`
}

func parseIncome(raw json.RawMessage, resolve resolver) (exchanges.LedgerEntry, error) {
	var in rawIncome
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.LedgerEntry{}, unexpected("income", err)
	}
	dir, amount := parse.Direction(in.Income.Decimal())
	e := exchanges.LedgerEntry{
		ID:          string(in.TranID),
		Direction:   dir,
		Type:        strings.ToLower(in.IncomeType),
		Amount:      amount,
		Currency:    currency(in.Asset),
		ReferenceID: string(in.TradeID),
		Timestamp:   in.Time.Time(),
		Info:        raw,
	}
	if in.Symbol != "" {
		e.Symbol = resolve(in.Symbol).Symbol
	}
	return e, nil
}

type rawTransaction struct {
	ID             parse.ID        `json:"id"`
	TxID           string          `json:"txId"`
	Coin           string          `json:"coin"`
	Network        string          `json:"network"`
	Address        string          `json:"address"`
	AddressTag     string          `json:"addressTag"`
	Amount         parse.Number    `json:"amount"`
	TransactionFee parse.Number    `json:"transactionFee"`
	Status         parse.ID        `json:"status"`
	InsertTime     parse.Timestamp `json:"insertTime"`
	CompleteTime   string          `json:"completeTime"`
	ApplyTime      string          `json:"applyTime"`
}

func parseTransaction(raw json.RawMessage, kind exchanges.TransactionType) (exchanges.Transaction, error) {
	var in rawTransaction
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Transaction{}, unexpected("transaction", err)
	}
	tx := exchanges.Transaction{
		ID:        string(in.ID),
		TxID:      in.TxID,
		Type:      kind,
		Currency:  currency(in.Coin),
		Network:   in.Network,
		Address:   in.Address,
		Tag:       in.AddressTag,
		Amount:    in.Amount.Decimal(),
		Timestamp: in.InsertTime.Time(),
		Info:      raw,
	}
	switch kind {
	case exchanges.TransactionDeposit:
		tx.Status = depositStatuses.Map(string(in.Status))
	default:
		tx.Status = withdrawalStatuses.Map(string(in.Status))
		tx.Timestamp = walletTimestamp(in.ApplyTime)
		tx.Updated = walletTimestamp(in.CompleteTime)
		tx.Fee = parse.Fee(in.TransactionFee.Decimal(), tx.Currency, decimal.Zero)
	}
	return tx, nil
}

func walletTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(walletTime, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

type rawPremiumIndex struct {
	Symbol          string          `json:"symbol"`
	MarkPrice       parse.Number    `json:"markPrice"`
	IndexPrice      parse.Number    `json:"indexPrice"`
	LastFundingRate parse.Number    `json:"lastFundingRate"`
	NextFundingTime parse.Timestamp `json:"nextFundingTime"`
	Time            parse.Timestamp `json:"time"`
}

func parseFundingRate(raw json.RawMessage, resolve resolver) (exchanges.FundingRate, error) {
	var in rawPremiumIndex
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.FundingRate{}, unexpected("premium index", err)
	}
	fr := exchanges.FundingRate{
		Symbol:           resolve(in.Symbol).Symbol,
		FundingRate:      in.LastFundingRate.Decimal(),
		FundingTimestamp: in.NextFundingTime.Time(),
		MarkPrice:        in.MarkPrice.Decimal(),
		IndexPrice:       in.IndexPrice.Decimal(),
		Interval:         fundingInterval,
		Timestamp:        in.Time.Time(),
		Info:             raw,
	}
	if fr.FundingTimestamp.IsZero() {
		fr.FundingTimestamp = parse.NextFundingTime(fr.Timestamp, fundingInterval)
	}
	return fr, nil
}

func parseFundingHistory(raw json.RawMessage, resolve resolver) (exchanges.FundingRate, error) {
	var in struct {
		Symbol      string          `json:"symbol"`
		FundingRate parse.Number    `json:"fundingRate"`
		FundingTime parse.Timestamp `json:"fundingTime"`
		MarkPrice   parse.Number    `json:"markPrice"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.FundingRate{}, unexpected("funding rate", err)
	}
	ts := in.FundingTime.Time()
	return exchanges.FundingRate{
		Symbol:           resolve(in.Symbol).Symbol,
		FundingRate:      in.FundingRate.Decimal(),
		FundingTimestamp: ts,
		MarkPrice:        in.MarkPrice.Decimal(),
		Interval:         fundingInterval,
		Timestamp:        ts,
		Info:             raw,
	}, nil
}
