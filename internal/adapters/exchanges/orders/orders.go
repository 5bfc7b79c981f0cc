// Package orders holds the venue-independent pieces of order request building.
package orders

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
	"tradegate/pkg/precise"
)

// TriggerInput is what trigger-type inference looks at.
type TriggerInput struct {
	Type            exchanges.OrderType // market or limit as requested
	Side            exchanges.OrderSide
	Price           string // submitted limit price, "" when absent
	TriggerPrice    string
	StopLossPrice   string
	TakeProfitPrice string
}

// Trigger is the inferred order type and the price that arms it.
type Trigger struct {
	Type  exchanges.OrderType
	Price string // "" when the order has no trigger
}

// ResolveTrigger infers the order type from the trigger parameters.
//
// A bare trigger price is disambiguated by comparing the submitted price with
// it: for a buy, price < trigger means take-profit, otherwise stop; for a sell
// the rule inverts. A missing price compares as false.
func ResolveTrigger(exchange string, in TriggerInput) (Trigger, error) {
	set := 0
	for _, p := range []string{in.TriggerPrice, in.StopLossPrice, in.TakeProfitPrice} {
		if p != "" {
			set++
		}
	}
	if set > 1 {
		return Trigger{}, exchanges.NewError(exchange, exchanges.KindInvalidOrder,
			"createOrder() only supports one of triggerPrice, stopLossPrice or takeProfitPrice")
	}

	limitLike := in.Type.IsLimitLike()

	switch {
	case in.TriggerPrice != "":
		below := precise.Lt(in.Price, in.TriggerPrice)
		takeProfit := below
		if in.Side == exchanges.OrderSideSell {
			takeProfit = !below
		}
		return Trigger{Type: triggerType(limitLike, takeProfit), Price: in.TriggerPrice}, nil
	case in.StopLossPrice != "":
		return Trigger{Type: triggerType(limitLike, false), Price: in.StopLossPrice}, nil
	case in.TakeProfitPrice != "":
		return Trigger{Type: triggerType(limitLike, true), Price: in.TakeProfitPrice}, nil
	}
	return Trigger{Type: in.Type}, nil
}

// ExplicitTrigger is ResolveTrigger without price inference: a bare trigger
// price always arms a stop.
func ExplicitTrigger(exchange string, in TriggerInput) (Trigger, error) {
	if in.TriggerPrice != "" && in.StopLossPrice == "" && in.TakeProfitPrice == "" {
		in.StopLossPrice, in.TriggerPrice = in.TriggerPrice, ""
	}
	return ResolveTrigger(exchange, in)
}

func triggerType(limitLike, takeProfit bool) exchanges.OrderType {
	switch {
	case limitLike && takeProfit:
		return exchanges.OrderTypeTakeProfitLimit
	case limitLike:
		return exchanges.OrderTypeStopLimit
	case takeProfit:
		return exchanges.OrderTypeTakeProfitMarket
	default:
		return exchanges.OrderTypeStopMarket
	}
}

// TimeInForceTable maps unified policies to venue strings.
type TimeInForceTable struct {
	GTC, IOC, FOK string
	// PostOnly is the venue execution instruction forced by PO.
	PostOnly string
}

// TimeInForce is the venue rendering of a unified time-in-force.
type TimeInForce struct {
	Value    string // "" when not sent
	PostOnly string // "" unless post-only was requested
}

// MapTimeInForce renders tif for the venue. PO, or postOnly, forces GTC plus
// the post-only instruction. Unknown values pass through upper-cased.
func MapTimeInForce(tif exchanges.TimeInForce, postOnly bool, table TimeInForceTable) TimeInForce {
	out := TimeInForce{}
	switch exchanges.TimeInForce(strings.ToUpper(string(tif))) {
	case "":
	case exchanges.TimeInForceGTC:
		out.Value = table.GTC
	case exchanges.TimeInForceIOC:
		out.Value = table.IOC
	case exchanges.TimeInForceFOK:
		out.Value = table.FOK
	case exchanges.TimeInForcePO:
		postOnly = true
	default:
		out.Value = strings.ToUpper(string(tif))
	}
	if postOnly {
		out.Value = table.GTC
		out.PostOnly = table.PostOnly
	}
	return out
}

// MarketBuyCost returns the quote notional to submit for a market buy billed
// by cost: an explicit cost wins, else amount x price. Without either, and
// when the venue requires a price, the request is rejected.
func MarketBuyCost(exchange string, amount, price, cost decimal.Decimal, requiresPrice bool) (decimal.Decimal, error) {
	if cost.IsPositive() {
		return cost, nil
	}
	if price.IsPositive() {
		return amount.Mul(price), nil
	}
	if requiresPrice {
		return decimal.Zero, exchanges.NewError(exchange, exchanges.KindInvalidOrder,
			"createOrder() requires the price argument for market buy orders to calculate the total cost to spend (amount * price), "+
				"alternatively set the cost parameter or disable the market buy price requirement")
	}
	return amount, nil
}

// ResolveMarginMode returns the explicit mode, else the default, else "".
// Modes outside supported fail with NotSupported.
func ResolveMarginMode(exchange string, explicit, fallback exchanges.MarginMode, supported ...exchanges.MarginMode) (exchanges.MarginMode, error) {
	mode := explicit
	if mode == "" {
		mode = fallback
	}
	if mode == "" {
		return "", nil
	}
	for _, s := range supported {
		if s == mode {
			return mode, nil
		}
	}
	return "", exchanges.NewError(exchange, exchanges.KindNotSupported, "margin mode %q is not supported", mode)
}

// AmountToPrecision truncates amount to the market amount tick.
func AmountToPrecision(m exchanges.Market, amount decimal.Decimal) string {
	return precise.Format(precise.RoundToTick(amount, m.Precision.Amount, precise.Truncate))
}

// PriceToPrecision rounds price to the market price tick.
func PriceToPrecision(m exchanges.Market, price decimal.Decimal) string {
	return precise.Format(precise.RoundToTick(price, m.Precision.Price, precise.Round))
}

// CostToPrecision truncates a quote notional to the price tick.
func CostToPrecision(m exchanges.Market, cost decimal.Decimal) string {
	return precise.Format(precise.RoundToTick(cost, m.Precision.Price, precise.Truncate))
}

// DecimalString renders d, or "" for zero, for optional trigger fields.
func DecimalString(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

// ClientOrderID returns prefix followed by a random uuid without dashes,
// cut to maxLen characters when maxLen > 0.
func ClientOrderID(prefix string, maxLen int) string {
	id := prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	if maxLen > 0 && len(id) > maxLen {
		id = id[:maxLen]
	}
	return id
}
