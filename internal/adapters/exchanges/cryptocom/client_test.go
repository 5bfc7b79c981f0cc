package cryptocom

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/clock"
	"tradegate/internal/adapters/exchanges/retry"
	"tradegate/internal/adapters/exchanges/sign"
	"tradegate/internal/adapters/exchanges/transport"
)

const instrumentsBody = `{"id":1,"method":"public/get-instruments","code":0,"result":{"data":[
 {"symbol":"BTC_USDT","inst_type":"CCY_PAIR","base_ccy":"BTC","quote_ccy":"USDT","quote_decimals":2,"quantity_decimals":5,"price_tick_size":"0.01","qty_tick_size":"0.00001","max_leverage":"10","tradable":true,"margin_buy_enabled":true},
 {"symbol":"BTCUSD-PERP","inst_type":"PERPETUAL_SWAP","base_ccy":"BTC","quote_ccy":"USD","price_tick_size":"0.1","qty_tick_size":"0.0001","max_leverage":"100","tradable":true,"contract_size":"1"},
 {"symbol":"BTCUSD-240329","inst_type":"FUTURE","base_ccy":"BTC","quote_ccy":"USD","price_tick_size":"0.1","qty_tick_size":"0.0001","tradable":true,"expiry_timestamp_ms":1711699200000},
 {"symbol":"BTC_WARRANT","inst_type":"WARRANT","base_ccy":"BTC","quote_ccy":"USD","tradable":true}
]}}`

const currenciesBody = `{"id":2,"method":"private/get-currency-networks","code":0,"result":{"currency_map":{
 "BTC":{"full_name":"Bitcoin","network_list":[{"network_id":"BTC","withdrawal_fee":"0.0005","withdraw_enabled":true,"min_withdrawal_amount":"0.001","deposit_enabled":true}]}
}}}`

type fakeVenue struct {
	t      *testing.T
	mu     sync.Mutex
	routes map[string]string
	status map[string]int
	bodies map[string][]byte
	hits   map[string]int
}

func (f *fakeVenue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/")
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.bodies[method] = body
	f.hits[method]++
	resp, ok := f.routes[method]
	status := f.status[method]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":40401,"message":"NOT_FOUND"}`))
		return
	}
	if status != 0 {
		w.WriteHeader(status)
	}
	_, _ = w.Write([]byte(resp))
}

func (f *fakeVenue) envelope(method string) sign.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var env sign.Envelope
	require.NoError(f.t, json.Unmarshal(f.bodies[method], &env))
	return env
}

func (f *fakeVenue) hitCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[method]
}

func ok(method, result string) string {
	return `{"id":1,"method":"` + method + `","code":0,"result":` + result + `}`
}

func newTestClient(t *testing.T, cfg Config, routes map[string]string) (*Client, *fakeVenue) {
	t.Helper()
	venue := &fakeVenue{
		t:      t,
		routes: map[string]string{"public/get-instruments": instrumentsBody, "private/get-currency-networks": currenciesBody},
		status: map[string]int{},
		bodies: map[string][]byte{},
		hits:   map[string]int{},
	}
	for k, v := range routes {
		venue.routes[k] = v
	}
	srv := httptest.NewServer(venue)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.Credentials.Empty() {
		cfg.Credentials = exchanges.Credentials{APIKey: "key", Secret: "secret"}
	}
	tr := transport.New(ID, transport.Config{
		Timeout:   time.Second,
		GlobalRPM: 60000,
		Retry:     retry.Config{MaxRetries: -1},
	}, nil)
	return New(cfg, Deps{Transport: tr, Clock: clock.Fixed(1700000000000)}), venue
}

func decEq(t *testing.T, want string, got any) {
	t.Helper()
	var d decimal.Decimal
	switch v := got.(type) {
	case string:
		d = decimal.RequireFromString(v)
	case decimal.Decimal:
		d = v
	case *decimal.Decimal:
		require.NotNil(t, v)
		d = *v
	default:
		t.Fatalf("unexpected value %T", got)
	}
	assert.True(t, decimal.RequireFromString(want).Equal(d), "want %s, got %s", want, d)
}

func TestFetchMarkets(t *testing.T) {
	c, _ := newTestClient(t, Config{}, nil)

	list, err := c.FetchMarkets(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, list, 3)

	spot := list[0]
	assert.Equal(t, "BTC/USDT", spot.Symbol)
	assert.True(t, spot.Spot)
	assert.True(t, spot.Margin)
	decEq(t, "0.00001", spot.Precision.Amount)
	decEq(t, "0.01", spot.Precision.Price)
	decEq(t, "10", spot.Limits.Leverage.Max)

	swap := list[1]
	assert.Equal(t, "BTC/USD:USD", swap.Symbol)
	assert.True(t, swap.Swap)
	assert.True(t, swap.Linear)
	decEq(t, "1", swap.ContractSize)

	future := list[2]
	assert.Equal(t, "BTC/USD:USD-240329", future.Symbol)
	assert.Equal(t, time.Date(2024, 3, 29, 8, 0, 0, 0, time.UTC), future.Expiry)

	for _, m := range list {
		assert.NoError(t, m.Validate())
	}
}

func TestFetchCurrencies(t *testing.T) {
	c, _ := newTestClient(t, Config{}, nil)

	list, err := c.FetchCurrencies(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "BTC", list[0].Code)
	assert.True(t, list[0].Deposit)
	decEq(t, "0.0005", list[0].Fee)
	decEq(t, "0.001", list[0].Networks["BTC"].Limits.Min)
}

func TestFetchCurrenciesWithoutWalletPermissionIsEmpty(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"private/get-currency-networks": `{"id":2,"method":"private/get-currency-networks","code":10002,"message":"UNAUTHORIZED"}`,
	})

	list, err := c.FetchCurrencies(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoadMarketsFillsCache(t *testing.T) {
	c, venue := newTestClient(t, Config{}, nil)

	cache, err := c.LoadMarkets(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, cache.Markets(), 3)
	assert.Len(t, cache.Currencies(), 1)

	_, err = c.LoadMarkets(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, venue.hitCount("public/get-instruments"))

	_, err = c.LoadMarkets(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, venue.hitCount("public/get-instruments"))
}

func TestPrivateCallsNeedCredentials(t *testing.T) {
	c, _ := newTestClient(t, Config{}, nil)
	c.cfg.Credentials = exchanges.Credentials{}

	_, err := c.FetchBalance(context.Background(), nil)
	assert.ErrorIs(t, err, exchanges.ErrAuthentication)
}

func TestCreateOrderInfersTriggerType(t *testing.T) {
	created := ok("private/create-order", `{"client_oid":"c-1","order_id":"123"}`)

	tests := []struct {
		name     string
		req      exchanges.OrderRequest
		wantType string
		wantRef  string
		wantTIF  string
	}{
		{
			name:     "buy limit below trigger is take profit",
			req:      exchanges.OrderRequest{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideBuy, Amount: decimal.RequireFromString("0.5"), Price: decimal.NewFromInt(100), TriggerPrice: decimal.NewFromInt(110)},
			wantType: "TAKE_PROFIT_LIMIT",
			wantRef:  "110",
		},
		{
			name:     "buy limit above trigger is stop",
			req:      exchanges.OrderRequest{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideBuy, Amount: decimal.RequireFromString("0.5"), Price: decimal.NewFromInt(100), TriggerPrice: decimal.NewFromInt(90)},
			wantType: "STOP_LIMIT",
			wantRef:  "90",
		},
		{
			name:     "sell market stop loss",
			req:      exchanges.OrderRequest{Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideSell, Amount: decimal.RequireFromString("0.5"), StopLossPrice: decimal.NewFromInt(90)},
			wantType: "STOP_LOSS",
			wantRef:  "90",
		},
		{
			name:     "sell market take profit",
			req:      exchanges.OrderRequest{Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideSell, Amount: decimal.RequireFromString("0.5"), TakeProfitPrice: decimal.NewFromInt(120)},
			wantType: "TAKE_PROFIT",
			wantRef:  "120",
		},
		{
			name:     "post only forces good till cancel",
			req:      exchanges.OrderRequest{Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideSell, Amount: decimal.RequireFromString("0.5"), Price: decimal.NewFromInt(100), TimeInForce: exchanges.TimeInForcePO},
			wantType: "LIMIT",
			wantTIF:  "GOOD_TILL_CANCEL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, venue := newTestClient(t, Config{}, map[string]string{"private/create-order": created})
			tt.req.Symbol = "BTC/USDT"

			order, err := c.CreateOrder(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, "123", order.ID)
			assert.Equal(t, "c-1", order.ClientOrderID)
			assert.Equal(t, "BTC/USDT", order.Symbol)
			assert.Equal(t, orderTypes[tt.wantType], order.Type)

			env := venue.envelope("private/create-order")
			assert.Equal(t, "private/create-order", env.Method)
			assert.Equal(t, "BTC_USDT", env.Params["instrument_name"])
			assert.Equal(t, tt.wantType, env.Params["type"])
			assert.Equal(t, strings.ToUpper(string(tt.req.Side)), env.Params["side"])
			assert.Equal(t, "SPOT", env.Params["spot_margin"])
			decEq(t, "0.5", env.Params["quantity"])
			if tt.wantRef != "" {
				decEq(t, tt.wantRef, env.Params["ref_price"])
			} else {
				assert.NotContains(t, env.Params, "ref_price")
			}
			if tt.wantTIF != "" {
				assert.Equal(t, tt.wantTIF, env.Params["time_in_force"])
				assert.Equal(t, []any{"POST_ONLY"}, env.Params["exec_inst"])
				assert.True(t, order.PostOnly)
			}
		})
	}
}

func TestCreateOrderSignsBody(t *testing.T) {
	c, venue := newTestClient(t, Config{}, map[string]string{
		"private/create-order": ok("private/create-order", `{"client_oid":"c-1","order_id":"123"}`),
	})

	_, err := c.CreateOrder(context.Background(), exchanges.OrderRequest{
		Symbol: "BTC/USDT", Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideBuy,
		Amount: decimal.RequireFromString("0.01"), Price: decimal.RequireFromString("100.5"),
		ClientOrderID: "my-id",
	})
	require.NoError(t, err)

	env := venue.envelope("private/create-order")
	assert.Equal(t, "key", env.APIKey)
	assert.Equal(t, "my-id", env.Params["client_oid"])
	assert.Equal(t, env.ID, env.Nonce)
	assert.GreaterOrEqual(t, env.Nonce, int64(1700000000000))

	signer := sign.Payload{APIKey: "key", Secret: "secret"}
	assert.Equal(t, signer.Signature(env.Method, env.ID, env.Nonce, env.Params), env.Signature)
}

func TestCreateOrderPrecision(t *testing.T) {
	c, venue := newTestClient(t, Config{}, map[string]string{
		"private/create-order": ok("private/create-order", `{"order_id":"1"}`),
	})

	_, err := c.CreateOrder(context.Background(), exchanges.OrderRequest{
		Symbol: "BTC/USDT", Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideSell,
		Amount: decimal.RequireFromString("0.123456789"), Price: decimal.RequireFromString("100.456"),
	})
	require.NoError(t, err)

	env := venue.envelope("private/create-order")
	decEq(t, "0.12345", env.Params["quantity"])
	decEq(t, "100.46", env.Params["price"])
	clientID, _ := env.Params["client_oid"].(string)
	assert.NotEmpty(t, clientID)
	assert.LessOrEqual(t, len(clientID), clientOrderIDLength)
}

func TestCreateMarketBuy(t *testing.T) {
	created := ok("private/create-order", `{"order_id":"1"}`)

	t.Run("requires price when configured", func(t *testing.T) {
		c, venue := newTestClient(t, Config{MarketBuyRequiresPrice: true}, map[string]string{"private/create-order": created})
		_, err := c.CreateOrder(context.Background(), exchanges.OrderRequest{
			Symbol: "BTC/USDT", Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideBuy, Amount: decimal.NewFromInt(2),
		})
		assert.ErrorIs(t, err, exchanges.ErrInvalidOrder)
		assert.Contains(t, err.Error(), "price")
		assert.Equal(t, 0, venue.hitCount("private/create-order"))
	})

	t.Run("amount times price becomes notional", func(t *testing.T) {
		c, venue := newTestClient(t, Config{MarketBuyRequiresPrice: true}, map[string]string{"private/create-order": created})
		_, err := c.CreateOrder(context.Background(), exchanges.OrderRequest{
			Symbol: "BTC/USDT", Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideBuy,
			Amount: decimal.NewFromInt(2), Price: decimal.RequireFromString("25.5"),
		})
		require.NoError(t, err)
		env := venue.envelope("private/create-order")
		decEq(t, "51", env.Params["notional"])
		assert.NotContains(t, env.Params, "quantity")
		assert.NotContains(t, env.Params, "price")
	})

	t.Run("cost wins", func(t *testing.T) {
		c, venue := newTestClient(t, Config{MarketBuyRequiresPrice: true}, map[string]string{"private/create-order": created})
		_, err := c.CreateOrder(context.Background(), exchanges.OrderRequest{
			Symbol: "BTC/USDT", Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideBuy,
			Amount: decimal.NewFromInt(2), Price: decimal.NewFromInt(30), Cost: decimal.NewFromInt(50),
		})
		require.NoError(t, err)
		decEq(t, "50", venue.envelope("private/create-order").Params["notional"])
	})
}

func TestCreateOrderMargin(t *testing.T) {
	created := ok("private/create-order", `{"order_id":"1"}`)
	base := exchanges.OrderRequest{
		Symbol: "BTC/USDT", Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideBuy,
		Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(100),
	}

	c, venue := newTestClient(t, Config{}, map[string]string{"private/create-order": created})
	req := base
	req.MarginMode = exchanges.MarginCross
	_, err := c.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "MARGIN", venue.envelope("private/create-order").Params["spot_margin"])

	req.MarginMode = exchanges.MarginIsolated
	_, err = c.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, exchanges.ErrNotSupported)
}

func TestCreateOrderConflictingTriggers(t *testing.T) {
	c, venue := newTestClient(t, Config{}, nil)
	_, err := c.CreateOrder(context.Background(), exchanges.OrderRequest{
		Symbol: "BTC/USDT", Type: exchanges.OrderTypeMarket, Side: exchanges.OrderSideSell, Amount: decimal.NewFromInt(1),
		StopLossPrice: decimal.NewFromInt(90), TakeProfitPrice: decimal.NewFromInt(120),
	})
	assert.ErrorIs(t, err, exchanges.ErrInvalidOrder)
	assert.Equal(t, 0, venue.hitCount("private/create-order"))
}

func TestCreateOrderClassifiesVenueErrors(t *testing.T) {
	tests := []struct {
		body   string
		status int
		want   *exchanges.Error
	}{
		{`{"code":20002,"message":"INSUFFICIENT_AVAILABLE_BALANCE"}`, http.StatusOK, exchanges.ErrInsufficientFunds},
		{`{"code":30003,"message":"SYMBOL_NOT_FOUND"}`, http.StatusBadRequest, exchanges.ErrBadSymbol},
		{`{"code":42901,"message":"TOO_MANY_REQUESTS"}`, http.StatusTooManyRequests, exchanges.ErrRateLimited},
		{`{"code":123456,"message":"SYSTEM_MAINTENANCE in progress"}`, http.StatusOK, exchanges.ErrOnMaintenance},
		{`<html>bad gateway</html>`, http.StatusBadGateway, exchanges.ErrExchangeNotAvailable},
	}

	for _, tt := range tests {
		c, venue := newTestClient(t, Config{}, map[string]string{"private/create-order": tt.body})
		venue.status["private/create-order"] = tt.status

		_, err := c.CreateOrder(context.Background(), exchanges.OrderRequest{
			Symbol: "BTC/USDT", Type: exchanges.OrderTypeLimit, Side: exchanges.OrderSideBuy,
			Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(100),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, tt.want, tt.body)

		var venueErr *exchanges.Error
		require.ErrorAs(t, err, &venueErr)
		assert.Equal(t, ID, venueErr.Exchange)
		assert.Equal(t, tt.body, venueErr.Body)
	}
}

func TestClassifierExactTable(t *testing.T) {
	tests := map[string]*exchanges.Error{
		"219":     exchanges.ErrInvalidOrder,
		"10002":   exchanges.ErrPermissionDenied,
		"10006":   exchanges.ErrDDoSProtection,
		"10007":   exchanges.ErrInvalidNonce,
		"20005":   exchanges.ErrAccountNotEnabled,
		"40101":   exchanges.ErrAuthentication,
		"40401":   exchanges.ErrOrderNotFound,
		"40801":   exchanges.ErrRequestTimeout,
		"43012":   exchanges.ErrBadRequest,
		"9010001": exchanges.ErrOnMaintenance,
	}
	for code, want := range tests {
		err := classifier.Error(code, "", 0, nil)
		assert.ErrorIs(t, err, want, code)
	}
	for code, kind := range classifier.Exact {
		assert.NotEqual(t, exchanges.KindExchangeError, kind, "code %s falls back to the generic kind", code)
	}
	assert.ErrorIs(t, classifier.Error("10001", "SYS_ERROR", 0, nil), exchanges.ErrExchangeNotAvailable)
	assert.ErrorIs(t, classifier.Error("50001", "", 0, nil), exchanges.ErrOperationFailed)
	assert.ErrorIs(t, classifier.Error("10006", "", 0, nil), exchanges.ErrNetwork)
}

func TestCancelOrders(t *testing.T) {
	c, venue := newTestClient(t, Config{}, map[string]string{
		"private/cancel-order-list": ok("private/cancel-order-list", `{"result_list":[{"index":0,"code":0},{"index":1,"code":0}]}`),
	})

	out, err := c.CancelOrders(context.Background(), []string{"1", "2"}, "BTC/USDT", nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "2", out[1].ID)

	env := venue.envelope("private/cancel-order-list")
	assert.Equal(t, "LIST", env.Params["contingency_type"])
	list, _ := env.Params["order_list"].([]any)
	assert.Len(t, list, 2)
}

func TestCancelOrdersSurfacesRejectedEntry(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"private/cancel-order-list": ok("private/cancel-order-list", `{"result_list":[{"index":0,"code":40401,"message":"ORDER_NOT_FOUND"}]}`),
	})

	_, err := c.CancelOrders(context.Background(), []string{"1"}, "BTC/USDT", nil)
	assert.ErrorIs(t, err, exchanges.ErrOrderNotFound)
}

func TestFetchOrder(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"private/get-order-detail": ok("private/get-order-detail", `{
			"order_id":"19848525","client_oid":"1613571154900","order_type":"LIMIT","time_in_force":"GOOD_TILL_CANCEL",
			"side":"BUY","exec_inst":["POST_ONLY"],"quantity":"0.0100","limit_price":"50000.0","avg_price":"50000.0",
			"cumulative_quantity":"0.0040","cumulative_value":"200","cumulative_fee":"-0.0000000525","fee_instrument_name":"BTC",
			"status":"ACTIVE","instrument_name":"BTC_USDT","create_time":1613575617173,"update_time":1613575617200}`),
	})

	o, err := c.FetchOrder(context.Background(), "19848525", "BTC/USDT", nil)
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", o.Symbol)
	assert.Equal(t, exchanges.OrderStatusOpen, o.Status)
	assert.Equal(t, exchanges.OrderTypeLimit, o.Type)
	assert.Equal(t, exchanges.OrderSideBuy, o.Side)
	assert.Equal(t, exchanges.TimeInForceGTC, o.TimeInForce)
	assert.True(t, o.PostOnly)
	decEq(t, "0.006", o.Remaining)
	require.NotNil(t, o.Fee)
	decEq(t, "0.0000000525", o.Fee.Cost)
	assert.Equal(t, "BTC", o.Fee.Currency)
	assert.Equal(t, int64(1613575617173), o.Timestamp.UnixMilli())
}

func TestFetchMyTradesFeeIsNonNegative(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"private/get-trades": ok("private/get-trades", `{"data":[
			{"trade_id":"2","side":"SELL","instrument_name":"BTC_USDT","fees":"-0.0000000525","fee_instrument_name":"BTC","create_time":1613640800000,"traded_price":"50000","traded_quantity":"0.001","taker_side":"TAKER","order_id":"9"},
			{"trade_id":"1","side":"BUY","instrument_name":"BTC_USDT","fees":"0.01","fee_instrument_name":"USDT","create_time":1613640700000,"traded_price":"49000","traded_quantity":"0.002","taker_side":"MAKER","order_id":"8"}
		]}`),
	})

	trades, err := c.FetchMyTrades(context.Background(), "BTC/USDT", exchanges.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "2", trades[0].ID, "venue order is kept")
	sell, buy := trades[0], trades[1]
	assert.Equal(t, "maker", buy.TakerOrMaker)
	decEq(t, "98", buy.Cost)

	assert.Equal(t, exchanges.OrderSideSell, sell.Side)
	assert.Equal(t, "9", sell.Order)
	require.NotNil(t, sell.Fee)
	decEq(t, "0.0000000525", sell.Fee.Cost)
	assert.Equal(t, "taker", sell.TakerOrMaker)
}

func TestFetchLedgerDirection(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"private/get-transactions": ok("private/get-transactions", `{"data":[
			{"journal_id":"1","journal_type":"TRADING","transaction_qty":"-12.5","instrument_name":"USDT","event_timestamp_ms":1700000000000,"order_id":"77"},
			{"journal_id":"2","journal_type":"DEPOSIT","transaction_qty":"3","instrument_name":"BTC","event_timestamp_ms":1700000001000}
		]}`),
	})

	entries, err := c.FetchLedger(context.Background(), "", exchanges.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, exchanges.DirectionOut, entries[0].Direction)
	decEq(t, "12.5", entries[0].Amount)
	assert.Equal(t, "USDT", entries[0].Currency)
	assert.Equal(t, "77", entries[0].ReferenceID)
	assert.Equal(t, "trading", entries[0].Type)

	assert.Equal(t, exchanges.DirectionIn, entries[1].Direction)
	decEq(t, "3", entries[1].Amount)

	onlyBTC, err := c.FetchLedger(context.Background(), "BTC", exchanges.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, onlyBTC, 1)
	assert.Equal(t, "2", onlyBTC[0].ID)
}

func TestFetchTicker(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"public/get-tickers": ok("public/get-tickers", `{"data":[{"i":"BTC_USDT","h":"120","l":"90","a":"110","v":"5","vv":"550","c":"0.1","b":"109.9","bs":"1","k":"110.1","ks":"2","t":1700000000000}]}`),
	})

	ticker, err := c.FetchTicker(context.Background(), "BTC/USDT", nil)
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", ticker.Symbol)
	decEq(t, "110", ticker.Last)
	decEq(t, "100", ticker.Open)
	decEq(t, "10", ticker.Change)
	decEq(t, "10", ticker.Percentage)
	decEq(t, "550", ticker.QuoteVolume)
}

func TestFetchOHLCV(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"public/get-candlestick": ok("public/get-candlestick", `{"data":[{"o":"1","h":"3","l":"0.5","c":"2","v":"10","t":1700000000000}]}`),
	})

	candles, err := c.FetchOHLCV(context.Background(), "BTC/USDT", "1h", exchanges.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(1700000000000), candles[0].Row()[0])
	decEq(t, "2", candles[0].Close)

	_, err = c.FetchOHLCV(context.Background(), "BTC/USDT", "7m", exchanges.FetchOptions{})
	assert.ErrorIs(t, err, exchanges.ErrBadRequest)
}

func TestFetchFundingRate(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"public/get-valuations": ok("public/get-valuations", `{"data":[{"v":"0.00001","t":1700000000500}]}`),
	})

	fr, err := c.FetchFundingRate(context.Background(), "BTC/USD:USD", nil)
	require.NoError(t, err)
	decEq(t, "0.00001", fr.FundingRate)
	assert.Equal(t, int64(1700002800000), fr.FundingTimestamp.UnixMilli())
	assert.Equal(t, time.Hour, fr.Interval)

	_, err = c.FetchFundingRate(context.Background(), "BTC/USDT", nil)
	assert.ErrorIs(t, err, exchanges.ErrBadSymbol)
}

func TestFetchFundingRateHistorySorted(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"public/get-valuations": ok("public/get-valuations", `{"data":[{"v":"0.2","t":1700003600000},{"v":"0.1","t":1700000000000}]}`),
	})

	list, err := c.FetchFundingRateHistory(context.Background(), "BTC/USD:USD", exchanges.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	decEq(t, "0.1", list[0].FundingRate)
	assert.Equal(t, list[0].Timestamp, list[0].FundingTimestamp)
}

func TestFetchSettlementHistory(t *testing.T) {
	c, venue := newTestClient(t, Config{}, map[string]string{
		"public/get-expired-settlement-price": ok("public/get-expired-settlement-price", `{"data":[
			{"i":"BTCUSD-231201","x":1701417600000,"v":"38000.5","t":1701417660000},
			{"i":"BTCUSD-231124","x":1700812800000,"v":"37000","t":1700812860000}
		]}`),
	})

	list, err := c.FetchSettlementHistory(context.Background(), "", exchanges.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "BTC/USD:USD-231124", list[0].Symbol)
	assert.Equal(t, "BTC/USD:USD-231201", list[1].Symbol)
	decEq(t, "38000.5", list[1].Price)
	assert.Equal(t, 0, venue.hitCount("public/get-instruments"))
}

func TestContractFromID(t *testing.T) {
	m, ok := contractFromID("BTCUSD-240329-C50000")
	require.True(t, ok)
	assert.Equal(t, "BTC/USD:USD-240329-50000-C", m.Symbol)
	assert.True(t, m.Option)
	assert.False(t, m.Active)
	assert.Equal(t, 8, m.Expiry.Hour())

	_, ok = contractFromID("BTCUSD-PERP")
	assert.False(t, ok)
}

func TestFetchDepositAddress(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"private/get-deposit-address": ok("private/get-deposit-address", `{"deposit_address_list":[
			{"currency":"XRP","address":"rXYZ?destinationTag=123","network":"XRP","status":"1"},
			{"currency":"XRP","address":"rABC","network":"BEP20","status":"1"}
		]}`),
	})

	addr, err := c.FetchDepositAddress(context.Background(), "XRP", nil)
	require.NoError(t, err)
	assert.Equal(t, "rXYZ", addr.Address)
	assert.Equal(t, "123", addr.Tag)

	addr, err = c.FetchDepositAddress(context.Background(), "XRP", exchanges.Params{"network": "BEP20"})
	require.NoError(t, err)
	assert.Equal(t, "rABC", addr.Address)
	assert.Empty(t, addr.Tag)

	_, err = c.FetchDepositAddress(context.Background(), "XRP", exchanges.Params{"network": "SOL"})
	assert.ErrorIs(t, err, exchanges.ErrInvalidAddress)
}

func TestFetchWithdrawals(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"private/get-withdrawal-history": ok("private/get-withdrawal-history", `{"withdrawal_list":[
			{"id":"42","currency":"XRP","fee":1.0,"create_time":1700000000000,"amount":100,"address":"rXYZ?1234","status":"5","txid":"abc","network_id":"XRP"}
		]}`),
	})

	list, err := c.FetchWithdrawals(context.Background(), "XRP", exchanges.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	tx := list[0]
	assert.Equal(t, exchanges.TransactionWithdrawal, tx.Type)
	assert.Equal(t, exchanges.TransactionOK, tx.Status)
	assert.Equal(t, "rXYZ", tx.Address)
	assert.Equal(t, "1234", tx.Tag)
	require.NotNil(t, tx.Fee)
	decEq(t, "1", tx.Fee.Cost)
}

func TestWithdraw(t *testing.T) {
	c, venue := newTestClient(t, Config{}, map[string]string{
		"private/create-withdrawal": ok("private/create-withdrawal", `{"id":2220,"amount":1,"fee":0.0004,"symbol":"BTC","address":"2NBqqD5GRJ8wHy1PYyCXTe9ke5226FhavBf","client_wid":"my_withdrawal_002","create_time":1607063412000}`),
	})

	tx, err := c.Withdraw(context.Background(), exchanges.WithdrawRequest{
		Code: "BTC", Amount: decimal.NewFromInt(1), Address: "2NBqqD5GRJ8wHy1PYyCXTe9ke5226FhavBf", ClientID: "my_withdrawal_002",
	})
	require.NoError(t, err)
	assert.Equal(t, "2220", tx.ID)
	assert.Equal(t, exchanges.TransactionWithdrawal, tx.Type)

	env := venue.envelope("private/create-withdrawal")
	assert.Equal(t, "BTC", env.Params["currency"])
	assert.Equal(t, "my_withdrawal_002", env.Params["client_wid"])
	assert.NotContains(t, env.Params, "address_tag")

	_, err = c.Withdraw(context.Background(), exchanges.WithdrawRequest{Code: "BTC"})
	assert.ErrorIs(t, err, exchanges.ErrArgumentsRequired)
}

func TestFetchTradingFees(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"private/get-fee-rate": ok("private/get-fee-rate", `{"spot_tier":"3","deriv_tier":"3",
			"effective_spot_maker_rate_bps":"6.5","effective_spot_taker_rate_bps":"6.9",
			"effective_deriv_maker_rate_bps":"1.1","effective_deriv_taker_rate_bps":"3"}`),
	})

	fees, err := c.FetchTradingFees(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, fees, 3)
	for _, f := range fees {
		if f.Symbol == "BTC/USDT" {
			decEq(t, "0.00065", f.Maker)
			decEq(t, "0.00069", f.Taker)
		} else {
			decEq(t, "0.00011", f.Maker)
			decEq(t, "0.0003", f.Taker)
		}
	}
}

func TestFetchBalanceAndPositions(t *testing.T) {
	c, _ := newTestClient(t, Config{}, map[string]string{
		"private/user-balance": ok("private/user-balance", `{"data":[{"position_balances":[
			{"instrument_name":"BTC","quantity":"1.5","reserved_qty":"0.5"}
		]}]}`),
		"private/get-positions": ok("private/get-positions", `{"data":[
			{"instrument_name":"BTCUSD-PERP","quantity":"-0.5","cost":"-15000","open_pos_cost":"-15000","open_position_pnl":"12","session_pnl":"1","update_timestamp_ms":1700000000000}
		]}`),
	})

	bal, err := c.FetchBalance(context.Background(), nil)
	require.NoError(t, err)
	decEq(t, "1", bal.Assets["BTC"].Free)
	decEq(t, "0.5", bal.Assets["BTC"].Used)

	positions, err := c.FetchPositions(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	p := positions[0]
	assert.Equal(t, "BTC/USD:USD", p.Symbol)
	assert.Equal(t, exchanges.PositionSideShort, p.Side)
	decEq(t, "0.5", p.Contracts)
	decEq(t, "30000", p.EntryPrice)
	assert.Equal(t, exchanges.MarginCross, p.MarginMode)
}
