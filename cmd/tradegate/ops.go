package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
	"tradegate/pkg/errors"
)

// input is the parsed command line.
type input struct {
	Operation string
	Exchange  string
	Symbol    string
	Symbols   string
	Code      string
	ID        string
	Timeframe string
	Limit     int
	Since     time.Duration
	Reload    bool
	Params    string

	Side         string
	Type         string
	Amount       string
	Price        string
	TriggerPrice string
	StopLoss     string
	TakeProfit   string
	Cost         string
	TimeInForce  string
	PostOnly     bool
	ReduceOnly   bool
	MarginMode   string

	// tracker is set while watching one order across polls.
	tracker *exchanges.OrderTracker
}

type operation func(ctx context.Context, ex exchanges.Exchange, in input, params exchanges.Params) (any, error)

var operations = map[string]operation{
	"load-markets": func(ctx context.Context, ex exchanges.Exchange, in input, _ exchanges.Params) (any, error) {
		cache, err := ex.LoadMarkets(ctx, in.Reload)
		if err != nil {
			return nil, err
		}
		return cache.Markets(), nil
	},
	"markets": func(ctx context.Context, ex exchanges.Exchange, _ input, p exchanges.Params) (any, error) {
		return ex.FetchMarkets(ctx, p)
	},
	"currencies": func(ctx context.Context, ex exchanges.Exchange, _ input, p exchanges.Params) (any, error) {
		return ex.FetchCurrencies(ctx, p)
	},
	"ticker": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchTicker(ctx, in.Symbol, p)
	},
	"tickers": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchTickers(ctx, in.symbols(), p)
	},
	"orderbook": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchOrderBook(ctx, in.Symbol, in.Limit, p)
	},
	"trades": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchTrades(ctx, in.Symbol, in.fetchOptions(p))
	},
	"ohlcv": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchOHLCV(ctx, in.Symbol, in.Timeframe, in.fetchOptions(p))
	},
	"balance": func(ctx context.Context, ex exchanges.Exchange, _ input, p exchanges.Params) (any, error) {
		return ex.FetchBalance(ctx, p)
	},
	"positions": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchPositions(ctx, in.symbols(), p)
	},
	"ledger": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchLedger(ctx, in.Code, in.fetchOptions(p))
	},
	"fee": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchTradingFee(ctx, in.Symbol, p)
	},
	"fees": func(ctx context.Context, ex exchanges.Exchange, _ input, p exchanges.Params) (any, error) {
		return ex.FetchTradingFees(ctx, p)
	},
	"create-order": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		req, err := in.orderRequest(p)
		if err != nil {
			return nil, err
		}
		return ex.CreateOrder(ctx, req)
	},
	"edit-order": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		req, err := in.orderRequest(p)
		if err != nil {
			return nil, err
		}
		return ex.EditOrder(ctx, in.ID, req)
	},
	"cancel-order": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.CancelOrder(ctx, in.ID, in.Symbol, p)
	},
	"cancel-orders": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.CancelOrders(ctx, split(in.ID), in.Symbol, p)
	},
	"cancel-all": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.CancelAllOrders(ctx, in.Symbol, p)
	},
	"order": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		if in.tracker != nil {
			return exchanges.WatchOrder(ctx, ex, in.tracker, in.ID, in.Symbol, p)
		}
		return ex.FetchOrder(ctx, in.ID, in.Symbol, p)
	},
	"orders": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchOrders(ctx, in.Symbol, in.fetchOptions(p))
	},
	"open-orders": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchOpenOrders(ctx, in.Symbol, in.fetchOptions(p))
	},
	"my-trades": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchMyTrades(ctx, in.Symbol, in.fetchOptions(p))
	},
	"deposit-address": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchDepositAddress(ctx, in.Code, p)
	},
	"deposits": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchDeposits(ctx, in.Code, in.fetchOptions(p))
	},
	"withdrawals": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchWithdrawals(ctx, in.Code, in.fetchOptions(p))
	},
	"funding-rate": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchFundingRate(ctx, in.Symbol, p)
	},
	"funding-history": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchFundingRateHistory(ctx, in.Symbol, in.fetchOptions(p))
	},
	"settlements": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		return ex.FetchSettlementHistory(ctx, in.Symbol, in.fetchOptions(p))
	},
	"bracket": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		req, err := in.bracketRequest(p)
		if err != nil {
			return nil, err
		}
		return exchanges.ExecuteBracketOrder(ctx, ex, req)
	},
	"close-position": func(ctx context.Context, ex exchanges.Exchange, in input, p exchanges.Params) (any, error) {
		positions, err := ex.FetchPositions(ctx, in.symbols(), p)
		if err != nil {
			return nil, err
		}
		closed := make([]*exchanges.Order, 0, len(positions))
		for _, pos := range positions {
			order, err := exchanges.ClosePosition(ctx, ex, pos)
			if err != nil {
				return closed, err
			}
			closed = append(closed, order)
		}
		return closed, nil
	},
}

// finished reports whether a watched order reached a terminal status, which
// ends a -watch loop early.
func (in input) finished() bool {
	return in.tracker != nil && in.tracker.Done(in.ID)
}

func operationNames() []string {
	names := make([]string, 0, len(operations)+1)
	for name := range operations {
		names = append(names, name)
	}
	names = append(names, "exchanges")
	sort.Strings(names)
	return names
}

// run executes in against the factory, writes the JSON result to out and a
// one line summary to status.
func run(ctx context.Context, f exchanges.Factory, in input, out, status io.Writer) error {
	if in.Operation == "exchanges" {
		return writeJSON(out, f.ListExchanges())
	}
	op, ok := operations[in.Operation]
	if !ok {
		return errors.Wrapf(errors.ErrInvalidInput, "unknown operation %q", in.Operation)
	}
	if in.Exchange == "" {
		return errors.Wrap(errors.ErrInvalidInput, "-exchange is required")
	}
	params, err := parseParams(in.Params)
	if err != nil {
		return err
	}
	ex, err := f.GetClient(ctx, in.Exchange)
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := op(ctx, ex, in, params)
	if err != nil {
		return err
	}
	if err := writeJSON(out, result); err != nil {
		return err
	}
	fmt.Fprintln(status, summarize(in, result, time.Since(started)))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode result")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func parseParams(raw string) (exchanges.Params, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var p exchanges.Params
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "-params must be a JSON object")
	}
	return p, nil
}

func split(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (in input) symbols() []string {
	list := split(in.Symbols)
	if len(list) == 0 && in.Symbol != "" {
		list = []string{in.Symbol}
	}
	return list
}

func (in input) fetchOptions(p exchanges.Params) exchanges.FetchOptions {
	opts := exchanges.FetchOptions{Limit: in.Limit, Params: p}
	if in.Since > 0 {
		opts.Since = time.Now().Add(-in.Since)
	}
	return opts
}

func parseDecimal(name, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrInvalidInput, "-%s: %q is not a number", name, value)
	}
	return d, nil
}

func (in input) orderRequest(p exchanges.Params) (exchanges.OrderRequest, error) {
	req := exchanges.OrderRequest{
		Symbol:        in.Symbol,
		Type:          exchanges.OrderType(in.Type),
		Side:          exchanges.OrderSide(in.Side),
		TimeInForce:   exchanges.TimeInForce(strings.ToUpper(in.TimeInForce)),
		PostOnly:      in.PostOnly,
		ReduceOnly:    in.ReduceOnly,
		MarginMode:    exchanges.MarginMode(in.MarginMode),
		Params:        p,
		ClientOrderID: p.String("clientOrderId"),
	}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"amount", in.Amount, &req.Amount},
		{"price", in.Price, &req.Price},
		{"trigger", in.TriggerPrice, &req.TriggerPrice},
		{"stop-loss", in.StopLoss, &req.StopLossPrice},
		{"take-profit", in.TakeProfit, &req.TakeProfitPrice},
		{"cost", in.Cost, &req.Cost},
	}
	for _, f := range fields {
		d, err := parseDecimal(f.name, f.raw)
		if err != nil {
			return exchanges.OrderRequest{}, err
		}
		*f.dst = d
	}
	if req.ClientOrderID != "" {
		req.Params = p.Without("clientOrderId")
	}
	return req, nil
}

// bracketRequest turns -stop-loss and -take-profit into market exit legs
// of the entry order.
func (in input) bracketRequest(p exchanges.Params) (exchanges.BracketOrderRequest, error) {
	entry, err := in.orderRequest(p)
	if err != nil {
		return exchanges.BracketOrderRequest{}, err
	}
	req := exchanges.BracketOrderRequest{Entry: entry}
	if !entry.StopLossPrice.IsZero() {
		req.StopLoss = &exchanges.BracketLeg{Amount: entry.Amount, Price: entry.StopLossPrice, Type: exchanges.OrderTypeStopMarket}
	}
	if !entry.TakeProfitPrice.IsZero() {
		req.TakeProfit = []exchanges.BracketLeg{{Amount: entry.Amount, Price: entry.TakeProfitPrice, Type: exchanges.OrderTypeLimit}}
	}
	req.Entry.StopLossPrice = decimal.Zero
	req.Entry.TakeProfitPrice = decimal.Zero
	return req, nil
}

// summarize describes a result for humans, e.g.
// "bybit trades: 1,000 records, newest 3 seconds ago (241ms)".
func summarize(in input, result any, took time.Duration) string {
	var (
		count  int
		newest time.Time
	)
	track := func(ts time.Time) {
		if ts.After(newest) {
			newest = ts
		}
	}
	switch v := result.(type) {
	case []exchanges.Market:
		count = len(v)
	case []exchanges.Currency:
		count = len(v)
	case []exchanges.Ticker:
		count = len(v)
		for _, t := range v {
			track(t.Timestamp)
		}
	case []exchanges.Trade:
		count = len(v)
		for _, t := range v {
			track(t.Timestamp)
		}
	case []exchanges.OHLCV:
		count = len(v)
		for _, k := range v {
			track(k.Timestamp)
		}
	case []exchanges.Order:
		count = len(v)
		for _, o := range v {
			track(o.Timestamp)
		}
	case []exchanges.LedgerEntry:
		count = len(v)
		for _, e := range v {
			track(e.Timestamp)
		}
	case []exchanges.Transaction:
		count = len(v)
		for _, tx := range v {
			track(tx.Timestamp)
		}
	case []exchanges.FundingRate:
		count = len(v)
		for _, f := range v {
			track(f.Timestamp)
		}
	case []exchanges.Position:
		count = len(v)
	case []exchanges.TradingFee:
		count = len(v)
	case []exchanges.Settlement:
		count = len(v)
	case *exchanges.Ticker:
		count = 1
		track(v.Timestamp)
	case *exchanges.OrderBook:
		count = len(v.Bids) + len(v.Asks)
		track(v.Timestamp)
	case *exchanges.Balance:
		count = len(v.Assets)
		track(v.Timestamp)
	default:
		count = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s %s", in.Exchange, in.Operation, humanize.Comma(int64(count)), plural(count))
	if !newest.IsZero() {
		fmt.Fprintf(&b, ", newest %s", humanize.Time(newest))
	}
	fmt.Fprintf(&b, " (%s)", took.Round(time.Millisecond))
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return "record"
	}
	return "records"
}
