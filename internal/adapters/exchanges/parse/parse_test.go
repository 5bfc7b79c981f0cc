package parse

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/adapters/exchanges"
)

func TestNumberDecodesStringsAndNumbers(t *testing.T) {
	var payload struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		D Number `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1.50","b":2.25,"c":"","d":null}`), &payload))

	assert.Equal(t, "1.5", payload.A.Decimal().String())
	assert.Equal(t, "2.25", payload.B.Decimal().String())
	assert.True(t, payload.C.Decimal().IsZero())
	assert.Nil(t, payload.D.Ptr())
	assert.NotNil(t, payload.A.Ptr())

	var bad Number
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &bad))
}

func TestTimestamp(t *testing.T) {
	var payload struct {
		A Timestamp `json:"a"`
		B Timestamp `json:"b"`
		C Timestamp `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1669155300000","b":1669155300000.0,"c":null}`), &payload))

	want := time.UnixMilli(1669155300000).UTC()
	assert.Equal(t, want, payload.A.Time())
	assert.Equal(t, want, payload.B.Time())
	assert.True(t, payload.C.Time().IsZero())
	assert.Equal(t, int64(1669155300000), ToMillis(want))
	assert.Equal(t, int64(0), ToMillis(time.Time{}))
}

func TestIDAcceptsStringsAndNumbers(t *testing.T) {
	var payload struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"18342311","b":18342312,"c":null}`), &payload))
	assert.Equal(t, ID("18342311"), payload.A)
	assert.Equal(t, ID("18342312"), payload.B)
	assert.Equal(t, ID(""), payload.C)
}

func TestScalarHelpers(t *testing.T) {
	assert.Equal(t, "12.5", Decimal("12.5").String())
	assert.True(t, Decimal("").IsZero())
	assert.True(t, Decimal("x").IsZero())
	assert.Nil(t, DecimalPtr("0"))
	assert.Equal(t, int64(42), Int64("42"))
	assert.Equal(t, int64(0), Int64("4x"))
	assert.JSONEq(t, `{"k":"v"}`, string(Raw(map[string]string{"k": "v"})))
}

func TestStatusTablePassesUnknownThrough(t *testing.T) {
	table := StatusTable{
		"ACTIVE":   exchanges.OrderStatusOpen,
		"FILLED":   exchanges.OrderStatusClosed,
		"CANCELED": exchanges.OrderStatusCanceled,
	}
	assert.Equal(t, exchanges.OrderStatusOpen, table.Map("ACTIVE"))
	assert.Equal(t, exchanges.OrderStatusClosed, table.Map("filled"))
	assert.Equal(t, exchanges.OrderStatus("PARTIALLY_WEIRD"), table.Map("PARTIALLY_WEIRD"))

	tx := TransactionTable{"5": exchanges.TransactionOK}
	assert.Equal(t, exchanges.TransactionOK, tx.Map("5"))
	assert.Equal(t, exchanges.TransactionStatus("9"), tx.Map("9"))
}

func TestFeeAndDirection(t *testing.T) {
	assert.Equal(t, "0.0000000525", FeeCost(decimal.RequireFromString("-0.0000000525")).String())

	dir, amount := Direction(decimal.RequireFromString("-12.5"))
	assert.Equal(t, exchanges.DirectionOut, dir)
	assert.Equal(t, "12.5", amount.String())

	dir, amount = Direction(decimal.RequireFromString("3"))
	assert.Equal(t, exchanges.DirectionIn, dir)
	assert.Equal(t, "3", amount.String())

	fee := Fee(decimal.RequireFromString("-0.1"), "USD", decimal.Zero)
	require.NotNil(t, fee)
	assert.Equal(t, "0.1", fee.Cost.String())
	assert.Nil(t, Fee(decimal.Zero, "", decimal.Zero))

	assert.Equal(t, "0.001", BasisPoints(decimal.NewFromInt(10)).String())
}

func TestSide(t *testing.T) {
	assert.Equal(t, exchanges.OrderSideBuy, Side("BUY"))
	assert.Equal(t, exchanges.OrderSideSell, Side("Sell"))
	assert.Equal(t, exchanges.OrderSideSell, Side("ask"))
}

func TestNextFundingTime(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), NextFundingTime(at, time.Hour))
	assert.Equal(t, time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC), NextFundingTime(at, 8*time.Hour))

	onBoundary := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, onBoundary, NextFundingTime(onBoundary, time.Hour))
	assert.True(t, NextFundingTime(time.Time{}, time.Hour).IsZero())
}

func TestSortAndWindow(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []time.Time{base.Add(3 * time.Hour), base, base.Add(time.Hour), base.Add(2 * time.Hour)}
	key := func(t time.Time) time.Time { return t }

	SortByTime(items, key)
	assert.Equal(t, []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour), base.Add(3 * time.Hour)}, items)

	assert.Len(t, Window(items, key, time.Time{}, time.Time{}, 0), 4)
	assert.Equal(t, []time.Time{base.Add(time.Hour), base.Add(2 * time.Hour)}, Window(items, key, base.Add(time.Hour), base.Add(3*time.Hour), 0))
	assert.Equal(t, []time.Time{base}, Window(items, key, time.Time{}, time.Time{}, 1))
}

func TestWindowKeepsInputOrder(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []time.Time{base.Add(3 * time.Hour), base, base.Add(2 * time.Hour)}
	key := func(t time.Time) time.Time { return t }

	got := Window(items, key, base.Add(time.Hour), time.Time{}, 0)
	assert.Equal(t, []time.Time{base.Add(3 * time.Hour), base.Add(2 * time.Hour)}, got)
	assert.Equal(t, base.Add(3*time.Hour), items[0], "input is not reordered")
}

func TestSplitAddressTag(t *testing.T) {
	tests := []struct {
		raw, address, tag string
	}{
		{"rPEPPER7kfTD9w2To4CQk6UCfuHM9c6GDY?memoId=123", "rPEPPER7kfTD9w2To4CQk6UCfuHM9c6GDY", "123"},
		{"0xabc", "0xabc", ""},
		{"addr?other=1", "addr", ""},
		{"2NBqqD5GRJ8wHy1PYyCXTe9ke5226FhavBf?1234567890", "2NBqqD5GRJ8wHy1PYyCXTe9ke5226FhavBf", "1234567890"},
	}
	for _, tt := range tests {
		address, tag := SplitAddressTag(tt.raw)
		assert.Equal(t, tt.address, address, tt.raw)
		assert.Equal(t, tt.tag, tag, tt.raw)
	}
}

func TestCandlesDecodePositionalRows(t *testing.T) {
	rows, err := Candles([]byte(`[
		["1669155300000","1130.8","1130.81","1126.17","1127.1","0"],
		[1669155360000,"1127.1","1128","1127","1127.5","12.3","1669155419999","13800.1"]
	]`))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []any{int64(1669155300000), "1130.8", "1130.81", "1126.17", "1127.1", "0"}, rowStrings(rows[0]))
	assert.Equal(t, "12.3", rows[1].Volume.String())

	_, err = Candles([]byte(`[["1669155300000","1"]]`))
	assert.Error(t, err)
}

func rowStrings(c exchanges.OHLCV) []any {
	return []any{c.Timestamp.UnixMilli(), c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume.String()}
}

func TestSortTickers(t *testing.T) {
	list := []exchanges.Ticker{{Symbol: "ETH/USDT:USDT"}, {Symbol: "BTC/USD:BTC"}, {Symbol: "BTC/USDT"}}
	SortTickers(list)
	assert.Equal(t, "BTC/USD:BTC", list[0].Symbol)
	assert.Equal(t, "BTC/USDT", list[1].Symbol)
	assert.Equal(t, "ETH/USDT:USDT", list[2].Symbol)
}
