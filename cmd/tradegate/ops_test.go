package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/adapters/exchanges"
	"tradegate/pkg/errors"
)

type fakeExchange struct {
	exchanges.Exchange
	created  []exchanges.OrderRequest
	statuses []exchanges.OrderStatus
}

func (f *fakeExchange) ID() string { return "fake" }

func (f *fakeExchange) FetchTicker(_ context.Context, symbol string, _ exchanges.Params) (*exchanges.Ticker, error) {
	return &exchanges.Ticker{Symbol: symbol, Last: decimal.RequireFromString("42000.5"), Timestamp: time.Now().Add(-time.Minute)}, nil
}

func (f *fakeExchange) CreateOrder(_ context.Context, req exchanges.OrderRequest) (*exchanges.Order, error) {
	f.created = append(f.created, req)
	return &exchanges.Order{ID: "1", Symbol: req.Symbol, Side: req.Side, Type: req.Type, Amount: req.Amount}, nil
}

func (f *fakeExchange) FetchBalance(context.Context, exchanges.Params) (*exchanges.Balance, error) {
	return nil, exchanges.NewError("fake", exchanges.KindAuthentication, "invalid key")
}

func (f *fakeExchange) FetchOrder(_ context.Context, id, symbol string, _ exchanges.Params) (*exchanges.Order, error) {
	status := exchanges.OrderStatusOpen
	if len(f.statuses) > 0 {
		status, f.statuses = f.statuses[0], f.statuses[1:]
	}
	return &exchanges.Order{ID: id, Symbol: symbol, Status: status}, nil
}

type fakeFactory struct{ ex *fakeExchange }

func (f fakeFactory) GetClient(_ context.Context, venue string) (exchanges.Exchange, error) {
	if venue != "fake" {
		return nil, errors.ErrNotFound
	}
	return f.ex, nil
}

func (f fakeFactory) ListExchanges() []string { return []string{"fake"} }

func TestRunTicker(t *testing.T) {
	var out, status bytes.Buffer
	f := fakeFactory{ex: &fakeExchange{}}

	err := run(context.Background(), f, input{Operation: "ticker", Exchange: "fake", Symbol: "BTC/USDT"}, &out, &status)
	require.NoError(t, err)

	assert.Contains(t, out.String(), `"symbol": "BTC/USDT"`)
	assert.Contains(t, status.String(), "fake ticker: 1 record, newest 1 minute ago")
}

func TestRunExchanges(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), fakeFactory{}, input{Operation: "exchanges"}, &out, &bytes.Buffer{}))
	assert.JSONEq(t, `["fake"]`, out.String())
}

func TestRunCreateOrder(t *testing.T) {
	ex := &fakeExchange{}
	in := input{
		Operation: "create-order", Exchange: "fake", Symbol: "ETH/USDT",
		Side: "buy", Type: "limit", Amount: "0.5", Price: "2500", TimeInForce: "ioc",
		Params: `{"clientOrderId":"abc","foo":1}`,
	}

	require.NoError(t, run(context.Background(), fakeFactory{ex: ex}, in, &bytes.Buffer{}, &bytes.Buffer{}))

	require.Len(t, ex.created, 1)
	req := ex.created[0]
	assert.Equal(t, exchanges.OrderSideBuy, req.Side)
	assert.True(t, req.Amount.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, req.Price.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, exchanges.TimeInForceIOC, req.TimeInForce)
	assert.Equal(t, "abc", req.ClientOrderID)
	assert.NotContains(t, req.Params, "clientOrderId")
	assert.Contains(t, req.Params, "foo")
}

func TestRunBracket(t *testing.T) {
	ex := &fakeExchange{}
	in := input{
		Operation: "bracket", Exchange: "fake", Symbol: "BTC/USDT:USDT",
		Side: "buy", Type: "market", Amount: "1", StopLoss: "39000", TakeProfit: "45000",
	}

	require.NoError(t, run(context.Background(), fakeFactory{ex: ex}, in, &bytes.Buffer{}, &bytes.Buffer{}))

	require.Len(t, ex.created, 3)
	assert.True(t, ex.created[0].StopLossPrice.IsZero(), "entry carries no exit prices")
	assert.Equal(t, exchanges.OrderSideSell, ex.created[1].Side)
	assert.True(t, ex.created[1].StopLossPrice.Equal(decimal.NewFromInt(39000)))
	assert.True(t, ex.created[1].ReduceOnly)
	assert.True(t, ex.created[2].Price.Equal(decimal.NewFromInt(45000)))
}

func TestRunErrors(t *testing.T) {
	f := fakeFactory{ex: &fakeExchange{}}
	tests := []struct {
		name  string
		in    input
		check func(t *testing.T, err error)
	}{
		{"unknown operation", input{Operation: "nope", Exchange: "fake"}, func(t *testing.T, err error) {
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
		}},
		{"missing exchange", input{Operation: "ticker"}, func(t *testing.T, err error) {
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
		}},
		{"bad params", input{Operation: "ticker", Exchange: "fake", Params: "[1]"}, func(t *testing.T, err error) {
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
		}},
		{"bad amount", input{Operation: "create-order", Exchange: "fake", Amount: "lots"}, func(t *testing.T, err error) {
			assert.Contains(t, err.Error(), "-amount")
		}},
		{"unknown venue", input{Operation: "ticker", Exchange: "kraken"}, func(t *testing.T, err error) {
			assert.True(t, errors.Is(err, errors.ErrNotFound))
		}},
		{"venue error passes through", input{Operation: "balance", Exchange: "fake"}, func(t *testing.T, err error) {
			var exErr *exchanges.Error
			require.True(t, errors.As(err, &exErr))
			assert.Equal(t, exchanges.KindAuthentication, exErr.Kind)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), f, tt.in, &bytes.Buffer{}, &bytes.Buffer{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSummarizeCounts(t *testing.T) {
	trades := make([]exchanges.Trade, 1200)
	got := summarize(input{Exchange: "bybit", Operation: "trades"}, trades, 241*time.Millisecond)
	assert.Equal(t, "bybit trades: 1,200 records (241ms)", got)
}

func TestSymbolsFallsBackToSymbol(t *testing.T) {
	assert.Equal(t, []string{"A/B", "C/D"}, input{Symbols: "A/B, C/D,"}.symbols())
	assert.Equal(t, []string{"A/B"}, input{Symbol: "A/B"}.symbols())
	assert.Nil(t, input{}.symbols())
}

func TestWatchedOrderStaysTerminal(t *testing.T) {
	ex := &fakeExchange{statuses: []exchanges.OrderStatus{exchanges.OrderStatusOpen, exchanges.OrderStatusClosed, exchanges.OrderStatusOpen}}
	in := input{Operation: "order", Exchange: "fake", ID: "7", Symbol: "BTC/USDT", tracker: exchanges.NewOrderTracker()}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), fakeFactory{ex: ex}, in, &out, &bytes.Buffer{}))
	assert.False(t, in.finished())

	require.NoError(t, run(context.Background(), fakeFactory{ex: ex}, in, &out, &bytes.Buffer{}))
	assert.True(t, in.finished())

	out.Reset()
	require.NoError(t, run(context.Background(), fakeFactory{ex: ex}, in, &out, &bytes.Buffer{}))
	assert.Contains(t, out.String(), `"status": "closed"`)
}
