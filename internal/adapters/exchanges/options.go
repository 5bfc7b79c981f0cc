package exchanges

import (
	"time"

	"github.com/shopspring/decimal"

	"tradegate/pkg/errors"
)

// Params carries venue-specific extras. They are merged into the venue
// request after the typed fields, so they can override them.
type Params map[string]any

// String returns the string value of key, or "" when absent or not a string.
func (p Params) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Without returns a copy of p without the given keys.
func (p Params) Without(keys ...string) Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// FetchOptions bounds list queries.
type FetchOptions struct {
	Since  time.Time
	Until  time.Time
	Limit  int
	Params Params
}

// OrderRequest is the unified payload for order placement and amendment.
type OrderRequest struct {
	Symbol string
	Type   OrderType // market or limit; trigger variants are inferred
	Side   OrderSide
	Amount decimal.Decimal
	Price  decimal.Decimal

	// At most one of the three may be set.
	TriggerPrice    decimal.Decimal
	StopLossPrice   decimal.Decimal
	TakeProfitPrice decimal.Decimal

	// Cost overrides the notional of a market buy.
	Cost decimal.Decimal

	TimeInForce   TimeInForce
	PostOnly      bool
	ReduceOnly    bool
	MarginMode    MarginMode
	ClientOrderID string
	Params        Params
}

// Validate checks that the mandatory arguments are present.
func (r OrderRequest) Validate(exchange string) error {
	switch {
	case r.Symbol == "":
		return NewError(exchange, KindArgumentsRequired, "createOrder() requires a symbol")
	case r.Side != OrderSideBuy && r.Side != OrderSideSell:
		return &Error{Kind: KindInvalidOrder, Exchange: exchange, Err: errors.NewValidationError("side", "must be buy or sell", r.Side)}
	case r.Type == "":
		return NewError(exchange, KindArgumentsRequired, "createOrder() requires a type")
	case r.Amount.IsNegative():
		return &Error{Kind: KindInvalidOrder, Exchange: exchange, Err: errors.NewValidationError("amount", "must not be negative", r.Amount)}
	case r.Type.IsLimitLike() && !r.Price.IsPositive():
		return NewError(exchange, KindArgumentsRequired, "createOrder() requires a price for %s orders", r.Type)
	}
	return nil
}

// WithdrawRequest describes an on-chain withdrawal.
type WithdrawRequest struct {
	Code     string
	Amount   decimal.Decimal
	Address  string
	Tag      string
	Network  string
	ClientID string
	Params   Params
}

// TransferRequest moves funds between accounts of the same user.
type TransferRequest struct {
	Code   string
	Amount decimal.Decimal
	From   string
	To     string
	Params Params
}
