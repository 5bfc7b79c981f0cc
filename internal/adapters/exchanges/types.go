package exchanges

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// MarketType classifies an instrument.
type MarketType string

const (
	MarketTypeSpot   MarketType = "spot"
	MarketTypeSwap   MarketType = "swap"
	MarketTypeFuture MarketType = "future"
	MarketTypeOption MarketType = "option"
)

// OrderSide defines buy or sell direction.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// PositionSide differentiates long and short exposure.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// OrderType is the canonical order execution type.
type OrderType string

const (
	OrderTypeMarket           OrderType = "market"
	OrderTypeLimit            OrderType = "limit"
	OrderTypeStopMarket       OrderType = "stop_market"
	OrderTypeStopLimit        OrderType = "stop_limit"
	OrderTypeTakeProfitMarket OrderType = "take_profit_market"
	OrderTypeTakeProfitLimit  OrderType = "take_profit_limit"
)

// IsLimitLike reports whether the type rests with a limit price.
func (t OrderType) IsLimitLike() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLimit || t == OrderTypeTakeProfitLimit
}

// IsTrigger reports whether the type waits for a trigger price.
func (t OrderType) IsTrigger() bool {
	switch t {
	case OrderTypeStopMarket, OrderTypeStopLimit, OrderTypeTakeProfitMarket, OrderTypeTakeProfitLimit:
		return true
	}
	return false
}

// OrderStatus is the canonical order lifecycle state. Venue values that have
// no mapping are carried through unchanged.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusExpired  OrderStatus = "expired"
)

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusClosed, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// IsKnown reports whether s is one of the canonical statuses.
func (s OrderStatus) IsKnown() bool {
	return s == OrderStatusOpen || s.IsTerminal()
}

// AdvanceStatus applies an observed status to a previously known one.
// A terminal status is never replaced.
func AdvanceStatus(prev, next OrderStatus) OrderStatus {
	if prev.IsTerminal() {
		return prev
	}
	if next == "" {
		return prev
	}
	return next
}

// TimeInForce enumerates unified order time policies.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForcePO  TimeInForce = "PO"
)

// MarginMode defines derivatives/margin collateral configuration.
type MarginMode string

const (
	MarginCross    MarginMode = "cross"
	MarginIsolated MarginMode = "isolated"
)

// TransactionStatus is the canonical deposit/withdrawal state.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionOK       TransactionStatus = "ok"
	TransactionFailed   TransactionStatus = "failed"
	TransactionCanceled TransactionStatus = "canceled"
)

// TransactionType distinguishes deposits from withdrawals.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// Direction is the sign of a ledger movement.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// MinMax is an optional lower/upper bound pair; zero means unbounded.
type MinMax struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Precision holds tick sizes, the smallest representable increments.
type Precision struct {
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

// Limits bounds order parameters.
type Limits struct {
	Amount   MinMax `json:"amount"`
	Price    MinMax `json:"price"`
	Cost     MinMax `json:"cost"`
	Leverage MinMax `json:"leverage"`
}

// Market describes one tradable instrument on a venue.
type Market struct {
	ID       string     `json:"id"`
	Symbol   string     `json:"symbol"`
	Base     string     `json:"base"`
	Quote    string     `json:"quote"`
	Settle   string     `json:"settle,omitempty"`
	BaseID   string     `json:"baseId,omitempty"`
	QuoteID  string     `json:"quoteId,omitempty"`
	SettleID string     `json:"settleId,omitempty"`
	Type     MarketType `json:"type"`

	Spot     bool `json:"spot"`
	Swap     bool `json:"swap"`
	Future   bool `json:"future"`
	Option   bool `json:"option"`
	Contract bool `json:"contract"`
	Linear   bool `json:"linear"`
	Inverse  bool `json:"inverse"`
	Active   bool `json:"active"`
	Margin   bool `json:"margin"`

	Precision    Precision       `json:"precision"`
	Limits       Limits          `json:"limits"`
	ContractSize decimal.Decimal `json:"contractSize"`
	Taker        decimal.Decimal `json:"taker"`
	Maker        decimal.Decimal `json:"maker"`

	Expiry         time.Time       `json:"expiry"`
	ExpiryDatetime string          `json:"expiryDatetime,omitempty"`
	Strike         decimal.Decimal `json:"strike"`
	OptionType     string          `json:"optionType,omitempty"`

	Info json.RawMessage `json:"info,omitempty"`
}

// Validate checks the structural market invariants.
func (m Market) Validate() error {
	if m.Symbol == "" || m.ID == "" {
		return invalidMarket(m, "id and symbol are required")
	}
	if m.Contract == m.Spot {
		return invalidMarket(m, "contract must be the negation of spot")
	}
	if m.Contract && m.Linear == m.Inverse {
		return invalidMarket(m, "contract markets are either linear or inverse")
	}
	return nil
}

// Network describes one deposit/withdrawal chain for a currency.
type Network struct {
	ID       string          `json:"id"`
	Network  string          `json:"network"`
	Deposit  bool            `json:"deposit"`
	Withdraw bool            `json:"withdraw"`
	Fee      decimal.Decimal `json:"fee"`
	Limits   MinMax          `json:"limits"`
}

// Currency describes an asset on a venue.
type Currency struct {
	ID        string             `json:"id"`
	Code      string             `json:"code"`
	Name      string             `json:"name,omitempty"`
	Active    bool               `json:"active"`
	Deposit   bool               `json:"deposit"`
	Withdraw  bool               `json:"withdraw"`
	Fee       decimal.Decimal    `json:"fee"`
	Precision decimal.Decimal    `json:"precision"`
	Networks  map[string]Network `json:"networks,omitempty"`
	Info      json.RawMessage    `json:"info,omitempty"`
}

// Fee is a cost charged in a currency. Cost is never negative.
type Fee struct {
	Currency string          `json:"currency"`
	Cost     decimal.Decimal `json:"cost"`
	Rate     decimal.Decimal `json:"rate"`
}

// Order represents a normalized exchange order.
type Order struct {
	ID            string           `json:"id"`
	ClientOrderID string           `json:"clientOrderId,omitempty"`
	Symbol        string           `json:"symbol"`
	Type          OrderType        `json:"type"`
	Side          OrderSide        `json:"side"`
	Status        OrderStatus      `json:"status"`
	Amount        decimal.Decimal  `json:"amount"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Filled        decimal.Decimal  `json:"filled"`
	Remaining     *decimal.Decimal `json:"remaining,omitempty"`
	Average       *decimal.Decimal `json:"average,omitempty"`
	Cost          decimal.Decimal  `json:"cost"`
	TriggerPrice  *decimal.Decimal `json:"triggerPrice,omitempty"`
	TimeInForce   TimeInForce      `json:"timeInForce,omitempty"`
	PostOnly      bool             `json:"postOnly"`
	ReduceOnly    bool             `json:"reduceOnly"`
	Fee           *Fee             `json:"fee,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
	LastUpdate    time.Time        `json:"lastUpdate"`
	Info          json.RawMessage  `json:"info,omitempty"`
}

// Trade is a single fill, public or private.
type Trade struct {
	ID           string          `json:"id"`
	Order        string          `json:"order,omitempty"`
	Symbol       string          `json:"symbol"`
	Side         OrderSide       `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	Cost         decimal.Decimal `json:"cost"`
	Fee          *Fee            `json:"fee,omitempty"`
	TakerOrMaker string          `json:"takerOrMaker,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Info         json.RawMessage `json:"info,omitempty"`
}

// Ticker contains 24h stats for a symbol.
type Ticker struct {
	Symbol      string          `json:"symbol"`
	Last        decimal.Decimal `json:"last"`
	Bid         decimal.Decimal `json:"bid"`
	BidVolume   decimal.Decimal `json:"bidVolume"`
	Ask         decimal.Decimal `json:"ask"`
	AskVolume   decimal.Decimal `json:"askVolume"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Open        decimal.Decimal `json:"open"`
	Change      decimal.Decimal `json:"change"`
	Percentage  decimal.Decimal `json:"percentage"`
	BaseVolume  decimal.Decimal `json:"baseVolume"`
	QuoteVolume decimal.Decimal `json:"quoteVolume"`
	Timestamp   time.Time       `json:"timestamp"`
	Info        json.RawMessage `json:"info,omitempty"`
}

// OrderBookLevel represents a single price level.
type OrderBookLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// OrderBook captures aggregated bid/ask levels, bids descending and asks ascending.
type OrderBook struct {
	Symbol    string           `json:"symbol"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
	Nonce     int64            `json:"nonce,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// OHLCV candle.
type OHLCV struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Row returns the candle in fixed order: timestamp (ms), open, high, low, close, volume.
func (c OHLCV) Row() []any {
	return []any{c.Timestamp.UnixMilli(), c.Open, c.High, c.Low, c.Close, c.Volume}
}

// BalanceEntry holds per-asset balances.
type BalanceEntry struct {
	Free  decimal.Decimal `json:"free"`
	Used  decimal.Decimal `json:"used"`
	Total decimal.Decimal `json:"total"`
}

// Balance describes wallet balances keyed by currency code.
type Balance struct {
	Assets    map[string]BalanceEntry `json:"assets"`
	Timestamp time.Time               `json:"timestamp"`
	Info      json.RawMessage         `json:"info,omitempty"`
}

// Position represents a derivatives position snapshot.
type Position struct {
	Symbol           string          `json:"symbol"`
	Side             PositionSide    `json:"side"`
	Contracts        decimal.Decimal `json:"contracts"`
	ContractSize     decimal.Decimal `json:"contractSize"`
	EntryPrice       decimal.Decimal `json:"entryPrice"`
	MarkPrice        decimal.Decimal `json:"markPrice"`
	Notional         decimal.Decimal `json:"notional"`
	UnrealizedPnl    decimal.Decimal `json:"unrealizedPnl"`
	RealizedPnl      decimal.Decimal `json:"realizedPnl"`
	Leverage         decimal.Decimal `json:"leverage"`
	LiquidationPrice decimal.Decimal `json:"liquidationPrice"`
	MarginMode       MarginMode      `json:"marginMode,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
	Info             json.RawMessage `json:"info,omitempty"`
}

// Transaction is a deposit or withdrawal.
type Transaction struct {
	ID        string            `json:"id"`
	TxID      string            `json:"txid,omitempty"`
	Type      TransactionType   `json:"type"`
	Currency  string            `json:"currency"`
	Network   string            `json:"network,omitempty"`
	Address   string            `json:"address,omitempty"`
	Tag       string            `json:"tag,omitempty"`
	Status    TransactionStatus `json:"status"`
	Amount    decimal.Decimal   `json:"amount"`
	Fee       *Fee              `json:"fee,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Updated   time.Time         `json:"updated"`
	Info      json.RawMessage   `json:"info,omitempty"`
}

// LedgerEntry is one balance-affecting event. Amount is never negative;
// the sign lives in Direction.
type LedgerEntry struct {
	ID          string          `json:"id"`
	Direction   Direction       `json:"direction"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Account     string          `json:"account,omitempty"`
	ReferenceID string          `json:"referenceId,omitempty"`
	Symbol      string          `json:"symbol,omitempty"`
	Fee         *Fee            `json:"fee,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Info        json.RawMessage `json:"info,omitempty"`
}

// FundingRate is a perpetual swap funding snapshot.
type FundingRate struct {
	Symbol           string          `json:"symbol"`
	FundingRate      decimal.Decimal `json:"fundingRate"`
	FundingTimestamp time.Time       `json:"fundingTimestamp"`
	MarkPrice        decimal.Decimal `json:"markPrice"`
	IndexPrice       decimal.Decimal `json:"indexPrice"`
	Interval         time.Duration   `json:"interval"`
	Timestamp        time.Time       `json:"timestamp"`
	Info             json.RawMessage `json:"info,omitempty"`
}

// TradingFee holds maker/taker rates as fractions (0.001, not 0.1%).
type TradingFee struct {
	Symbol string          `json:"symbol"`
	Maker  decimal.Decimal `json:"maker"`
	Taker  decimal.Decimal `json:"taker"`
	Info   json.RawMessage `json:"info,omitempty"`
}

// DepositAddress is where a currency can be deposited.
type DepositAddress struct {
	Currency string          `json:"currency"`
	Network  string          `json:"network,omitempty"`
	Address  string          `json:"address"`
	Tag      string          `json:"tag,omitempty"`
	Info     json.RawMessage `json:"info,omitempty"`
}

// Transfer is an internal movement between accounts.
type Transfer struct {
	ID          string          `json:"id,omitempty"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	FromAccount string          `json:"fromAccount"`
	ToAccount   string          `json:"toAccount"`
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Info        json.RawMessage `json:"info,omitempty"`
}

// Settlement is the final price of an expired contract.
type Settlement struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
	Info      json.RawMessage `json:"info,omitempty"`
}
