package cryptocom

import (
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/markets"
	"tradegate/internal/adapters/exchanges/parse"
	"tradegate/pkg/errors"
)

// resolver maps a venue instrument id to its market.
type resolver func(id string) exchanges.Market

var orderStatuses = parse.StatusTable{
	"NEW":      exchanges.OrderStatusOpen,
	"PENDING":  exchanges.OrderStatusOpen,
	"ACTIVE":   exchanges.OrderStatusOpen,
	"FILLED":   exchanges.OrderStatusClosed,
	"CANCELED": exchanges.OrderStatusCanceled,
	"REJECTED": exchanges.OrderStatusRejected,
	"EXPIRED":  exchanges.OrderStatusExpired,
}

var depositStatuses = parse.TransactionTable{
	"0": exchanges.TransactionPending,
	"1": exchanges.TransactionOK,
	"2": exchanges.TransactionFailed,
	"3": exchanges.TransactionPending,
}

var withdrawalStatuses = parse.TransactionTable{
	"0": exchanges.TransactionPending,
	"1": exchanges.TransactionPending,
	"2": exchanges.TransactionFailed,
	"3": exchanges.TransactionPending,
	"4": exchanges.TransactionFailed,
	"5": exchanges.TransactionOK,
	"6": exchanges.TransactionCanceled,
}

var orderTypes = map[string]exchanges.OrderType{
	"LIMIT":             exchanges.OrderTypeLimit,
	"MARKET":            exchanges.OrderTypeMarket,
	"STOP_LOSS":         exchanges.OrderTypeStopMarket,
	"STOP_LIMIT":        exchanges.OrderTypeStopLimit,
	"TAKE_PROFIT":       exchanges.OrderTypeTakeProfitMarket,
	"TAKE_PROFIT_LIMIT": exchanges.OrderTypeTakeProfitLimit,
}

// venueOrderTypes is the inverse of orderTypes.
var venueOrderTypes = map[exchanges.OrderType]string{
	exchanges.OrderTypeLimit:            "LIMIT",
	exchanges.OrderTypeMarket:           "MARKET",
	exchanges.OrderTypeStopMarket:       "STOP_LOSS",
	exchanges.OrderTypeStopLimit:        "STOP_LIMIT",
	exchanges.OrderTypeTakeProfitMarket: "TAKE_PROFIT",
	exchanges.OrderTypeTakeProfitLimit:  "TAKE_PROFIT_LIMIT",
}

var timeInForces = map[string]exchanges.TimeInForce{
	"GOOD_TILL_CANCEL":    exchanges.TimeInForceGTC,
	"IMMEDIATE_OR_CANCEL": exchanges.TimeInForceIOC,
	"FILL_OR_KILL":        exchanges.TimeInForceFOK,
}

func unexpected(what string, err error) error {
	return errors.Wrapf(errors.ErrUnexpectedResponse, "%s: %s: %v", ID, what, err)
}

func currency(id string) string {
	if id == "" {
		return ""
	}
	return markets.CurrencyCode(id, nil)
}

type rawTicker struct {
	Instrument string          `json:"i"`
	High       parse.Number    `json:"h"`
	Low        parse.Number    `json:"l"`
	Last       parse.Number    `json:"a"`
	Volume     parse.Number    `json:"v"`
	Turnover   parse.Number    `json:"vv"`
	Change     parse.Number    `json:"c"`
	Bid        parse.Number    `json:"b"`
	BidSize    parse.Number    `json:"bs"`
	Ask        parse.Number    `json:"k"`
	AskSize    parse.Number    `json:"ks"`
	Time       parse.Timestamp `json:"t"`
}

func parseTicker(raw json.RawMessage, resolve resolver) (exchanges.Ticker, error) {
	var in rawTicker
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Ticker{}, unexpected("ticker", err)
	}
	last := in.Last.Decimal()
	ratio := in.Change.Decimal()
	t := exchanges.Ticker{
		Symbol:      resolve(in.Instrument).Symbol,
		Last:        last,
		Bid:         in.Bid.Decimal(),
		BidVolume:   in.BidSize.Decimal(),
		Ask:         in.Ask.Decimal(),
		AskVolume:   in.AskSize.Decimal(),
		High:        in.High.Decimal(),
		Low:         in.Low.Decimal(),
		Percentage:  ratio.Mul(decimal.NewFromInt(100)),
		BaseVolume:  in.Volume.Decimal(),
		QuoteVolume: in.Turnover.Decimal(),
		Timestamp:   in.Time.Time(),
		Info:        raw,
	}
	// c is the 24h change as a ratio of the open price.
	if !last.IsZero() {
		if open := decimal.NewFromInt(1).Add(ratio); !open.IsZero() {
			t.Open = last.DivRound(open, 16)
			t.Change = last.Sub(t.Open)
		}
	}
	return t, nil
}

func parseOrderBook(raw json.RawMessage, symbol string) (exchanges.OrderBook, error) {
	var in struct {
		Asks [][]parse.Number `json:"asks"`
		Bids [][]parse.Number `json:"bids"`
		Time parse.Timestamp  `json:"t"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.OrderBook{}, unexpected("order book", err)
	}
	book := exchanges.OrderBook{Symbol: symbol, Timestamp: in.Time.Time()}
	book.Bids = levels(in.Bids)
	book.Asks = levels(in.Asks)
	return book, nil
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
	// public fields
	PublicID   parse.ID        `json:"d"`
	PublicSide string          `json:"s"`
	Price      parse.Number    `json:"p"`
	Quantity   parse.Number    `json:"q"`
	Time       parse.Timestamp `json:"t"`
	Instrument string          `json:"i"`

	// private fields
	TradeID           parse.ID        `json:"trade_id"`
	Side              string          `json:"side"`
	InstrumentName    string          `json:"instrument_name"`
	Fees              parse.Number    `json:"fees"`
	FeeInstrumentName string          `json:"fee_instrument_name"`
	CreateTime        parse.Timestamp `json:"create_time"`
	TradedPrice       parse.Number    `json:"traded_price"`
	TradedQuantity    parse.Number    `json:"traded_quantity"`
	TakerSide         string          `json:"taker_side"`
	OrderID           parse.ID        `json:"order_id"`
}

// parseTrade handles both the public tape shape and private fills.
func parseTrade(raw json.RawMessage, resolve resolver) (exchanges.Trade, error) {
	var in rawTrade
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Trade{}, unexpected("trade", err)
	}
	t := exchanges.Trade{
		ID:        string(in.PublicID),
		Order:     string(in.OrderID),
		Side:      parse.Side(in.PublicSide),
		Price:     in.Price.Decimal(),
		Amount:    in.Quantity.Decimal(),
		Timestamp: in.Time.Time(),
		Info:      raw,
	}
	instrument := in.Instrument
	if in.TradeID != "" {
		t.ID = string(in.TradeID)
		t.Side = parse.Side(in.Side)
		t.Price = in.TradedPrice.Decimal()
		t.Amount = in.TradedQuantity.Decimal()
		t.Timestamp = in.CreateTime.Time()
		instrument = in.InstrumentName
		t.Fee = parse.Fee(in.Fees.Decimal(), currency(in.FeeInstrumentName), decimal.Zero)
		t.TakerOrMaker = strings.ToLower(in.TakerSide)
	}
	t.Symbol = resolve(instrument).Symbol
	t.Cost = t.Price.Mul(t.Amount)
	return t, nil
}

func parseCandle(raw json.RawMessage) (exchanges.OHLCV, error) {
	var in struct {
		Open   parse.Number    `json:"o"`
		High   parse.Number    `json:"h"`
		Low    parse.Number    `json:"l"`
		Close  parse.Number    `json:"c"`
		Volume parse.Number    `json:"v"`
		Time   parse.Timestamp `json:"t"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.OHLCV{}, unexpected("candle", err)
	}
	return exchanges.OHLCV{
		Timestamp: in.Time.Time(),
		Open:      in.Open.Decimal(),
		High:      in.High.Decimal(),
		Low:       in.Low.Decimal(),
		Close:     in.Close.Decimal(),
		Volume:    in.Volume.Decimal(),
	}, nil
}

type rawOrder struct {
	OrderID            parse.ID        `json:"order_id"`
	ClientOid          parse.ID        `json:"client_oid"`
	OrderType          string          `json:"order_type"`
	TimeInForce        string          `json:"time_in_force"`
	Side               string          `json:"side"`
	ExecInst           []string        `json:"exec_inst"`
	Quantity           parse.Number    `json:"quantity"`
	LimitPrice         parse.Number    `json:"limit_price"`
	AvgPrice           parse.Number    `json:"avg_price"`
	CumulativeQuantity parse.Number    `json:"cumulative_quantity"`
	CumulativeValue    parse.Number    `json:"cumulative_value"`
	CumulativeFee      parse.Number    `json:"cumulative_fee"`
	FeeInstrumentName  string          `json:"fee_instrument_name"`
	Status             string          `json:"status"`
	InstrumentName     string          `json:"instrument_name"`
	CreateTime         parse.Timestamp `json:"create_time"`
	UpdateTime         parse.Timestamp `json:"update_time"`
	RefPrice           parse.Number    `json:"ref_price"`
}

func parseOrder(raw json.RawMessage, resolve resolver) (exchanges.Order, error) {
	var in rawOrder
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Order{}, unexpected("order", err)
	}

	o := exchanges.Order{
		ID:            string(in.OrderID),
		ClientOrderID: string(in.ClientOid),
		Side:          parse.Side(in.Side),
		Amount:        in.Quantity.Decimal(),
		Price:         in.LimitPrice.Ptr(),
		Filled:        in.CumulativeQuantity.Decimal(),
		Average:       in.AvgPrice.Ptr(),
		Cost:          in.CumulativeValue.Decimal(),
		TriggerPrice:  in.RefPrice.Ptr(),
		Timestamp:     in.CreateTime.Time(),
		LastUpdate:    in.UpdateTime.Time(),
		Info:          raw,
	}
	if in.InstrumentName != "" {
		o.Symbol = resolve(in.InstrumentName).Symbol
	}
	if in.Status != "" {
		o.Status = orderStatuses.Map(in.Status)
	}
	if t, ok := orderTypes[in.OrderType]; ok {
		o.Type = t
	} else if in.OrderType != "" {
		o.Type = exchanges.OrderType(strings.ToLower(in.OrderType))
	}
	if tif, ok := timeInForces[in.TimeInForce]; ok {
		o.TimeInForce = tif
	}
	for _, inst := range in.ExecInst {
		if inst == "POST_ONLY" || inst == "SMART_POST_ONLY" {
			o.PostOnly = true
		}
	}
	if !o.Amount.IsZero() {
		remaining := o.Amount.Sub(o.Filled)
		o.Remaining = &remaining
	}
	if fee := in.CumulativeFee.Decimal(); !fee.IsZero() || in.FeeInstrumentName != "" {
		o.Fee = parse.Fee(fee, currency(in.FeeInstrumentName), decimal.Zero)
	}
	return o, nil
}

func parseBalance(raw json.RawMessage) (exchanges.Balance, error) {
	var in struct {
		PositionBalances []struct {
			InstrumentName string       `json:"instrument_name"`
			Quantity       parse.Number `json:"quantity"`
			ReservedQty    parse.Number `json:"reserved_qty"`
		} `json:"position_balances"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Balance{}, unexpected("balance", err)
	}
	bal := exchanges.Balance{Assets: make(map[string]exchanges.BalanceEntry, len(in.PositionBalances)), Info: raw}
	for _, pb := range in.PositionBalances {
		total := pb.Quantity.Decimal()
		used := pb.ReservedQty.Decimal()
		bal.Assets[currency(pb.InstrumentName)] = exchanges.BalanceEntry{
			Free:  total.Sub(used),
			Used:  used,
			Total: total,
		}
	}
	return bal, nil
}

func parsePosition(raw json.RawMessage, resolve resolver) (exchanges.Position, error) {
	var in struct {
		InstrumentName  string          `json:"instrument_name"`
		Quantity        parse.Number    `json:"quantity"`
		Cost            parse.Number    `json:"cost"`
		OpenPositionPnl parse.Number    `json:"open_position_pnl"`
		OpenPosCost     parse.Number    `json:"open_pos_cost"`
		SessionPnl      parse.Number    `json:"session_pnl"`
		UpdateTime      parse.Timestamp `json:"update_timestamp_ms"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Position{}, unexpected("position", err)
	}
	m := resolve(in.InstrumentName)
	qty := in.Quantity.Decimal()
	p := exchanges.Position{
		Symbol:        m.Symbol,
		Side:          exchanges.PositionSideLong,
		Contracts:     qty.Abs(),
		ContractSize:  m.ContractSize,
		Notional:      in.Cost.Decimal().Abs(),
		UnrealizedPnl: in.OpenPositionPnl.Decimal(),
		RealizedPnl:   in.SessionPnl.Decimal(),
		MarginMode:    exchanges.MarginCross,
		Timestamp:     in.UpdateTime.Time(),
		Info:          raw,
	}
	if qty.IsNegative() {
		p.Side = exchanges.PositionSideShort
	}
	if !qty.IsZero() {
		p.EntryPrice = in.OpenPosCost.Decimal().Abs().DivRound(qty.Abs(), 16)
	}
	return p, nil
}

func parseLedgerEntry(raw json.RawMessage, resolve resolver) (exchanges.LedgerEntry, error) {
	var in struct {
		JournalID      parse.ID        `json:"journal_id"`
		JournalType    string          `json:"journal_type"`
		TransactionQty parse.Number    `json:"transaction_qty"`
		OrderID        parse.ID        `json:"order_id"`
		TradeID        parse.ID        `json:"trade_id"`
		InstrumentName string          `json:"instrument_name"`
		AccountID      string          `json:"account_id"`
		EventTime      parse.Timestamp `json:"event_timestamp_ms"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.LedgerEntry{}, unexpected("transaction", err)
	}
	dir, amount := parse.Direction(in.TransactionQty.Decimal())
	e := exchanges.LedgerEntry{
		ID:          string(in.JournalID),
		Direction:   dir,
		Type:        strings.ToLower(in.JournalType),
		Amount:      amount,
		Account:     in.AccountID,
		ReferenceID: string(in.OrderID),
		Timestamp:   in.EventTime.Time(),
		Info:        raw,
	}
	if e.ReferenceID == "" {
		e.ReferenceID = string(in.TradeID)
	}
	m := resolve(in.InstrumentName)
	if m.Base != "" {
		e.Symbol = m.Symbol
		e.Currency = m.Base
	} else {
		e.Currency = currency(in.InstrumentName)
	}
	return e, nil
}

type rawTransaction struct {
	ID         parse.ID        `json:"id"`
	Currency   string          `json:"currency"`
	Fee        parse.Number    `json:"fee"`
	CreateTime parse.Timestamp `json:"create_time"`
	UpdateTime parse.Timestamp `json:"update_time"`
	Amount     parse.Number    `json:"amount"`
	Address    string          `json:"address"`
	Status     parse.ID        `json:"status"`
	TxID       string          `json:"txid"`
	NetworkID  string          `json:"network_id"`
	ClientWID  string          `json:"client_wid"`
}

func parseTransaction(raw json.RawMessage, kind exchanges.TransactionType) (exchanges.Transaction, error) {
	var in rawTransaction
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Transaction{}, unexpected(string(kind), err)
	}
	address, tag := parse.SplitAddressTag(in.Address)
	code := currency(in.Currency)
	tx := exchanges.Transaction{
		ID:        string(in.ID),
		TxID:      in.TxID,
		Type:      kind,
		Currency:  code,
		Network:   in.NetworkID,
		Address:   address,
		Tag:       tag,
		Amount:    in.Amount.Decimal(),
		Timestamp: in.CreateTime.Time(),
		Updated:   in.UpdateTime.Time(),
		Info:      raw,
	}
	if in.Status != "" {
		table := depositStatuses
		if kind == exchanges.TransactionWithdrawal {
			table = withdrawalStatuses
		}
		tx.Status = table.Map(string(in.Status))
	}
	if fee := in.Fee.Decimal(); !fee.IsZero() {
		tx.Fee = parse.Fee(fee, code, decimal.Zero)
	}
	return tx, nil
}

func parseDepositAddress(raw json.RawMessage) (exchanges.DepositAddress, string, error) {
	var in struct {
		Currency string   `json:"currency"`
		Address  string   `json:"address"`
		Network  string   `json:"network"`
		Status   parse.ID `json:"status"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.DepositAddress{}, "", unexpected("deposit address", err)
	}
	address, tag := parse.SplitAddressTag(in.Address)
	return exchanges.DepositAddress{
		Currency: currency(in.Currency),
		Network:  in.Network,
		Address:  address,
		Tag:      tag,
		Info:     raw,
	}, string(in.Status), nil
}

type valuation struct {
	Value parse.Number    `json:"v"`
	Time  parse.Timestamp `json:"t"`
}

func parseFundingRate(raw json.RawMessage, symbol string) (exchanges.FundingRate, error) {
	var in valuation
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.FundingRate{}, unexpected("funding rate", err)
	}
	ts := in.Time.Time()
	return exchanges.FundingRate{
		Symbol:           symbol,
		FundingRate:      in.Value.Decimal(),
		FundingTimestamp: parse.NextFundingTime(ts, fundingInterval),
		Interval:         fundingInterval,
		Timestamp:        ts,
		Info:             raw,
	}, nil
}

func parseSettlement(raw json.RawMessage, resolve resolver) (exchanges.Settlement, string, error) {
	var in struct {
		Instrument string          `json:"i"`
		Expiry     parse.Timestamp `json:"x"`
		Value      parse.Number    `json:"v"`
		Time       parse.Timestamp `json:"t"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.Settlement{}, "", unexpected("settlement", err)
	}
	ts := in.Time.Time()
	if ts.IsZero() {
		ts = in.Expiry.Time()
	}
	return exchanges.Settlement{
		Symbol:    resolve(in.Instrument).Symbol,
		Price:     in.Value.Decimal(),
		Timestamp: ts,
		Info:      raw,
	}, in.Instrument, nil
}

func parseTradingFee(raw json.RawMessage, symbol string) (exchanges.TradingFee, error) {
	var in struct {
		Maker parse.Number `json:"effective_maker_rate_bps"`
		Taker parse.Number `json:"effective_taker_rate_bps"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return exchanges.TradingFee{}, unexpected("fee rate", err)
	}
	return exchanges.TradingFee{
		Symbol: symbol,
		Maker:  parse.BasisPoints(in.Maker.Decimal()),
		Taker:  parse.BasisPoints(in.Taker.Decimal()),
		Info:   raw,
	}, nil
}
