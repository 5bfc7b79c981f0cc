package orders

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/adapters/exchanges"
)

func TestResolveTrigger(t *testing.T) {
	tests := []struct {
		name      string
		in        TriggerInput
		wantType  exchanges.OrderType
		wantPrice string
	}{
		{"buy limit above trigger", TriggerInput{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideBuy, Price: "100", TriggerPrice: "90"}, exchanges.OrderTypeStopLimit, "90"},
		{"buy limit below trigger", TriggerInput{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideBuy, Price: "100", TriggerPrice: "110"}, exchanges.OrderTypeTakeProfitLimit, "110"},
		{"sell limit below trigger", TriggerInput{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideSell, Price: "100", TriggerPrice: "110"}, exchanges.OrderTypeStopLimit, "110"},
		{"sell limit above trigger", TriggerInput{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideSell, Price: "100", TriggerPrice: "90"}, exchanges.OrderTypeTakeProfitLimit, "90"},
		{"buy market with price below trigger", TriggerInput{Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideBuy, Price: "100", TriggerPrice: "110"}, exchanges.OrderTypeTakeProfitMarket, "110"},
		{"buy market without price", TriggerInput{Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideBuy, TriggerPrice: "110"}, exchanges.OrderTypeStopMarket, "110"},
		{"sell market without price", TriggerInput{Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideSell, TriggerPrice: "110"}, exchanges.OrderTypeTakeProfitMarket, "110"},
		{"equal prices count as not below", TriggerInput{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideBuy, Price: "100", TriggerPrice: "100"}, exchanges.OrderTypeStopLimit, "100"},
		{"explicit stop loss limit", TriggerInput{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideSell, Price: "100", StopLossPrice: "95"}, exchanges.OrderTypeStopLimit, "95"},
		{"explicit stop loss market", TriggerInput{Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideSell, StopLossPrice: "95"}, exchanges.OrderTypeStopMarket, "95"},
		{"explicit take profit limit", TriggerInput{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideSell, Price: "120", TakeProfitPrice: "118"}, exchanges.OrderTypeTakeProfitLimit, "118"},
		{"explicit take profit market", TriggerInput{Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideBuy, TakeProfitPrice: "80"}, exchanges.OrderTypeTakeProfitMarket, "80"},
		{"no trigger", TriggerInput{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideBuy, Price: "100"}, exchanges.OrderTypeLimit, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTrigger("test", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantPrice, got.Price)
		})
	}
}

func TestResolveTriggerRejectsConflicts(t *testing.T) {
	_, err := ResolveTrigger("test", TriggerInput{
		Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideBuy, Price: "100",
		StopLossPrice: "90", TakeProfitPrice: "110",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, exchanges.ErrInvalidOrder)
}

func TestExplicitTriggerNeverInfersTakeProfit(t *testing.T) {
	trig, err := ExplicitTrigger("test", TriggerInput{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideBuy, Price: "100", TriggerPrice: "110"})
	require.NoError(t, err)
	assert.Equal(t, exchanges.OrderTypeStopLimit, trig.Type)
	assert.Equal(t, "110", trig.Price)

	trig, err = ExplicitTrigger("test", TriggerInput{Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideSell, TakeProfitPrice: "120"})
	require.NoError(t, err)
	assert.Equal(t, exchanges.OrderTypeTakeProfitMarket, trig.Type)

	_, err = ExplicitTrigger("test", TriggerInput{Type: exchanges.OrderTypeMarket, TriggerPrice: "1", TakeProfitPrice: "2"})
	assert.ErrorIs(t, err, exchanges.ErrInvalidOrder)
}

func TestMapTimeInForce(t *testing.T) {
	table := TimeInForceTable{GTC: "GOOD_TILL_CANCEL", IOC: "IMMEDIATE_OR_CANCEL", FOK: "FILL_OR_KILL", PostOnly: "POST_ONLY"}

	assert.Equal(t, TimeInForce{Value: "GOOD_TILL_CANCEL"}, MapTimeInForce(exchanges.TimeInForceGTC, false, table))
	assert.Equal(t, TimeInForce{Value: "IMMEDIATE_OR_CANCEL"}, MapTimeInForce("ioc", false, table))
	assert.Equal(t, TimeInForce{Value: "FILL_OR_KILL"}, MapTimeInForce(exchanges.TimeInForceFOK, false, table))
	assert.Equal(t, TimeInForce{Value: "GOOD_TILL_CANCEL", PostOnly: "POST_ONLY"}, MapTimeInForce(exchanges.TimeInForcePO, false, table))
	assert.Equal(t, TimeInForce{Value: "GOOD_TILL_CANCEL", PostOnly: "POST_ONLY"}, MapTimeInForce(exchanges.TimeInForceIOC, true, table))
	assert.Equal(t, TimeInForce{}, MapTimeInForce("", false, table))
	assert.Equal(t, TimeInForce{Value: "GTX"}, MapTimeInForce("gtx", false, table))
}

func TestMarketBuyCost(t *testing.T) {
	d := decimal.RequireFromString

	cost, err := MarketBuyCost("test", d("2"), d("100"), d("150"), true)
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("150")), "explicit cost wins")

	cost, err = MarketBuyCost("test", d("2"), d("100.5"), decimal.Zero, true)
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("201")))

	_, err = MarketBuyCost("test", d("2"), decimal.Zero, decimal.Zero, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, exchanges.ErrInvalidOrder)
	assert.True(t, strings.Contains(err.Error(), "price"))

	cost, err = MarketBuyCost("test", d("2"), decimal.Zero, decimal.Zero, false)
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("2")), "amount is treated as cost")
}

func TestResolveMarginMode(t *testing.T) {
	mode, err := ResolveMarginMode("test", "", exchanges.MarginCross, exchanges.MarginCross)
	require.NoError(t, err)
	assert.Equal(t, exchanges.MarginCross, mode)

	mode, err = ResolveMarginMode("test", "", "", exchanges.MarginCross)
	require.NoError(t, err)
	assert.Empty(t, mode)

	_, err = ResolveMarginMode("test", exchanges.MarginIsolated, "", exchanges.MarginCross)
	assert.ErrorIs(t, err, exchanges.ErrNotSupported)
}

func TestPrecisionHelpers(t *testing.T) {
	d := decimal.RequireFromString
	m := exchanges.Market{Precision: exchanges.Precision{Amount: d("0.001"), Price: d("0.5")}}

	assert.Equal(t, "1.234", AmountToPrecision(m, d("1.23499")))
	assert.Equal(t, "100.5", PriceToPrecision(m, d("100.3")))
	assert.Equal(t, "100", PriceToPrecision(m, d("100.2")))
	assert.Equal(t, "100", CostToPrecision(m, d("100.4")))
	assert.Equal(t, "", DecimalString(decimal.Zero))
	assert.Equal(t, "1.5", DecimalString(d("1.5")))
}

func TestClientOrderID(t *testing.T) {
	a := ClientOrderID("tg-", 0)
	b := ClientOrderID("tg-", 0)
	assert.True(t, strings.HasPrefix(a, "tg-"))
	assert.Len(t, a, 35)
	assert.NotEqual(t, a, b)
	assert.Len(t, ClientOrderID("x", 20), 20)
}
