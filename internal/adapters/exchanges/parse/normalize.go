package parse

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
)

// StatusTable maps venue order statuses to canonical ones.
type StatusTable map[string]exchanges.OrderStatus

// Map returns the canonical status. Unknown statuses pass through unchanged
// so callers can still see what the venue said.
func (t StatusTable) Map(raw string) exchanges.OrderStatus {
	if s, ok := t[raw]; ok {
		return s
	}
	if s, ok := t[strings.ToUpper(raw)]; ok {
		return s
	}
	return exchanges.OrderStatus(raw)
}

// TransactionTable maps venue deposit or withdrawal states.
type TransactionTable map[string]exchanges.TransactionStatus

// Map returns the canonical status or the raw value when unknown.
func (t TransactionTable) Map(raw string) exchanges.TransactionStatus {
	if s, ok := t[raw]; ok {
		return s
	}
	return exchanges.TransactionStatus(raw)
}

// FeeCost returns the magnitude of a fee some venues report as negative.
func FeeCost(raw decimal.Decimal) decimal.Decimal {
	return raw.Abs()
}

// Direction derives the movement direction and magnitude from a signed
// quantity. Zero is treated as incoming.
func Direction(qty decimal.Decimal) (exchanges.Direction, decimal.Decimal) {
	if qty.IsNegative() {
		return exchanges.DirectionOut, qty.Abs()
	}
	return exchanges.DirectionIn, qty
}

// Side maps venue side strings to canonical sides case-insensitively.
func Side(raw string) exchanges.OrderSide {
	switch strings.ToLower(raw) {
	case "buy", "bid":
		return exchanges.OrderSideBuy
	case "sell", "ask":
		return exchanges.OrderSideSell
	}
	return exchanges.OrderSide(strings.ToLower(raw))
}

// NextFundingTime returns the first interval boundary strictly after t, or t
// itself when it already sits on a boundary.
func NextFundingTime(t time.Time, interval time.Duration) time.Time {
	if t.IsZero() || interval <= 0 {
		return t
	}
	floor := t.Truncate(interval)
	if floor.Equal(t) {
		return t
	}
	return floor.Add(interval)
}

// SortByTime orders items ascending by the timestamp key.
func SortByTime[T any](items []T, key func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return key(items[i]).Before(key(items[j]))
	})
}

// SortTickers orders tickers by symbol. Results gathered from several
// concurrent requests come back in this order.
func SortTickers(list []exchanges.Ticker) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Symbol < list[j].Symbol })
}

// Window keeps the items at or after since and before until, then the
// first limit of those, in their original order. Zero bounds and limit
// disable the filter.
func Window[T any](items []T, key func(T) time.Time, since, until time.Time, limit int) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		ts := key(item)
		if !since.IsZero() && ts.Before(since) {
			continue
		}
		if !until.IsZero() && !ts.Before(until) {
			continue
		}
		out = append(out, item)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SplitAddressTag splits addresses of the form "addr?memoId=tag" or
// "addr?tag".
func SplitAddressTag(raw string) (address, tag string) {
	address, query, found := strings.Cut(raw, "?")
	if !found {
		return raw, ""
	}
	for _, part := range strings.Split(query, "&") {
		key, value, hasValue := strings.Cut(part, "=")
		if !hasValue {
			return address, key
		}
		switch strings.ToLower(key) {
		case "memoid", "memo", "tag", "destinationtag":
			return address, value
		}
	}
	return address, ""
}

// Fee builds the fee of a trade or order from a possibly signed cost.
func Fee(cost decimal.Decimal, currency string, rate decimal.Decimal) *exchanges.Fee {
	if cost.IsZero() && currency == "" {
		return nil
	}
	return &exchanges.Fee{Cost: FeeCost(cost), Currency: currency, Rate: rate}
}

// BasisPoints converts a bps rate to a fraction.
func BasisPoints(bps decimal.Decimal) decimal.Decimal {
	return bps.Div(decimal.NewFromInt(10000))
}
