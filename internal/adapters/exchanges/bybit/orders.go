package bybit

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/orders"
	"tradegate/internal/adapters/exchanges/parse"
	"tradegate/internal/adapters/exchanges/ratelimit"
	"tradegate/pkg/errors"
)

var tifTable = orders.TimeInForceTable{
	GTC:      "GTC",
	IOC:      "IOC",
	FOK:      "FOK",
	PostOnly: "PostOnly",
}

var sides = map[exchanges.OrderSide]string{
	exchanges.OrderSideBuy:  "Buy",
	exchanges.OrderSideSell: "Sell",
}

// tradeModes are the switch-isolated values per margin mode.
var tradeModes = map[exchanges.MarginMode]int{
	exchanges.MarginCross:    0,
	exchanges.MarginIsolated: 1,
}

// orderBody builds the create payload. A bare trigger price always places
// a stop; take-profits need TakeProfitPrice.
func (c *Client) orderBody(m exchanges.Market, cat string, req exchanges.OrderRequest) (map[string]any, exchanges.MarginMode, error) {
	if err := req.Validate(ID); err != nil {
		return nil, "", err
	}
	trig, err := orders.ExplicitTrigger(ID, orders.TriggerInput{
		Type:            req.Type,
		Side:            req.Side,
		Price:           orders.DecimalString(req.Price),
		TriggerPrice:    orders.DecimalString(req.TriggerPrice),
		StopLossPrice:   orders.DecimalString(req.StopLossPrice),
		TakeProfitPrice: orders.DecimalString(req.TakeProfitPrice),
	})
	if err != nil {
		return nil, "", err
	}

	postOnly := req.PostOnly || req.TimeInForce == exchanges.TimeInForcePO
	if postOnly && trig.Type != exchanges.OrderTypeLimit {
		return nil, "", exchanges.NewError(ID, exchanges.KindInvalidOrder, "postOnly orders must be plain limit orders")
	}
	if req.ReduceOnly && !m.Contract {
		return nil, "", exchanges.NewError(ID, exchanges.KindInvalidOrder, "reduceOnly is only valid for contract markets")
	}

	var mode exchanges.MarginMode
	if m.Contract {
		mode, err = orders.ResolveMarginMode(ID, req.MarginMode, c.cfg.DefaultMarginMode, exchanges.MarginCross, exchanges.MarginIsolated)
		if err != nil {
			return nil, "", err
		}
	} else if req.MarginMode != "" {
		return nil, "", exchanges.NewError(ID, exchanges.KindNotSupported, "margin mode on spot orders is not supported")
	}

	body := map[string]any{
		"category":  cat,
		"symbol":    m.ID,
		"side":      sides[req.Side],
		"orderType": "Market",
	}
	if trig.Type.IsLimitLike() {
		body["orderType"] = "Limit"
		body["price"] = orders.PriceToPrecision(m, req.Price)
		tif := orders.MapTimeInForce(req.TimeInForce, postOnly, tifTable)
		switch {
		case tif.PostOnly != "":
			body["timeInForce"] = tif.PostOnly
		case tif.Value != "":
			body["timeInForce"] = tif.Value
		default:
			body["timeInForce"] = tifTable.GTC
		}
	} else if tif := orders.MapTimeInForce(req.TimeInForce, false, tifTable); tif.Value != "" && tif.Value != tifTable.GTC {
		body["timeInForce"] = tif.Value
	}

	if trig.Price != "" {
		body["triggerPrice"] = orders.PriceToPrecision(m, decimal.RequireFromString(trig.Price))
		if m.Contract {
			body["triggerDirection"] = triggerDirection(req.Side, trig.Type)
		} else {
			body["orderFilter"] = "StopOrder"
		}
	}

	switch {
	case m.Spot && trig.Type == exchanges.OrderTypeMarket && req.Side == exchanges.OrderSideBuy && req.Cost.IsPositive():
		body["marketUnit"] = "quoteCoin"
		body["qty"] = orders.CostToPrecision(m, req.Cost)
	case m.Spot && trig.Type == exchanges.OrderTypeMarket:
		body["marketUnit"] = "baseCoin"
		body["qty"] = orders.AmountToPrecision(m, req.Amount)
	default:
		body["qty"] = orders.AmountToPrecision(m, req.Amount)
	}
	if req.ReduceOnly {
		body["reduceOnly"] = true
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = orders.ClientOrderID(c.cfg.ClientOrderIDPrefix, clientOrderIDLength)
	}
	body["orderLinkId"] = clientID

	return withBody(body, req.Params.Without("leverage")), mode, nil
}

// triggerDirection arms stops against the position and take-profits with
// it: a buy stop fires on a rise, a buy take-profit on a fall.
func triggerDirection(side exchanges.OrderSide, typ exchanges.OrderType) int {
	takeProfit := typ == exchanges.OrderTypeTakeProfitMarket || typ == exchanges.OrderTypeTakeProfitLimit
	if (side == exchanges.OrderSideBuy) != takeProfit {
		return triggerRise
	}
	return triggerFall
}

// setMarginMode switches the symbol to mode before an order. The venue
// wants leverage with the switch and answers 110026 when the symbol already
// uses the mode.
func (c *Client) setMarginMode(ctx context.Context, m exchanges.Market, cat string, mode exchanges.MarginMode, params exchanges.Params) error {
	leverage := stringify(params["leverage"])
	if leverage == "" {
		return exchanges.NewError(ID, exchanges.KindArgumentsRequired, "setting margin mode %s requires a leverage param", mode)
	}
	body := map[string]any{
		"category":     cat,
		"symbol":       m.ID,
		"tradeMode":    tradeModes[mode],
		"buyLeverage":  leverage,
		"sellLeverage": leverage,
	}
	_, err := c.do(ctx, call{method: http.MethodPost, path: "/v5/position/switch-isolated", body: body, signed: true, bucket: ratelimit.KeyOrder, cost: 1})
	var venueErr *exchanges.Error
	if errors.As(err, &venueErr) && venueErr.Code == "110026" {
		return nil
	}
	return err
}

type ack struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// CreateOrder implements exchanges.Trading. The venue acknowledges with
// ids only; the rest of the order is what was submitted.
func (c *Client) CreateOrder(ctx context.Context, req exchanges.OrderRequest) (*exchanges.Order, error) {
	m, cat, err := c.market(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	body, mode, err := c.orderBody(m, cat, req)
	if err != nil {
		return nil, err
	}
	if mode != "" {
		if err := c.setMarginMode(ctx, m, cat, mode, req.Params); err != nil {
			return nil, err
		}
	}

	var res ack
	if err := c.result(ctx, call{method: http.MethodPost, path: "/v5/order/create", body: body, signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &res); err != nil {
		return nil, err
	}
	o := fromRequest(res, m, req, body)
	c.log.Infow("order placed", "symbol", m.Symbol, "id", o.ID, "type", o.Type, "side", o.Side)
	return &o, nil
}

// fromRequest builds the order an acknowledgement refers to.
func fromRequest(res ack, m exchanges.Market, req exchanges.OrderRequest, body map[string]any) exchanges.Order {
	o := exchanges.Order{
		ID:            res.OrderID,
		ClientOrderID: res.OrderLinkID,
		Symbol:        m.Symbol,
		Side:          req.Side,
		Status:        exchanges.OrderStatusOpen,
		Amount:        req.Amount,
		ReduceOnly:    req.ReduceOnly,
		PostOnly:      body["timeInForce"] == tifTable.PostOnly,
	}
	if o.ClientOrderID == "" {
		o.ClientOrderID, _ = body["orderLinkId"].(string)
	}
	price, _ := body["price"].(string)
	o.Price = parse.DecimalPtr(price)
	trigger, _ := body["triggerPrice"].(string)
	o.TriggerPrice = parse.DecimalPtr(trigger)
	if tif, ok := body["timeInForce"].(string); ok {
		o.TimeInForce = timeInForces[tif]
	}
	direction, ok := body["triggerDirection"].(int)
	if !ok && o.TriggerPrice != nil {
		// Spot conditionals carry no direction.
		kind := exchanges.OrderTypeStopMarket
		if req.TakeProfitPrice.IsPositive() {
			kind = exchanges.OrderTypeTakeProfitMarket
		}
		direction = triggerDirection(req.Side, kind)
	}
	o.Type = orderType(body["orderType"].(string), req.Side, direction, "", o.TriggerPrice != nil)
	return o
}

// EditOrder implements exchanges.Trading by amending in place.
func (c *Client) EditOrder(ctx context.Context, id string, req exchanges.OrderRequest) (*exchanges.Order, error) {
	if id == "" {
		return nil, exchanges.NewError(ID, exchanges.KindArgumentsRequired, "editOrder() requires an order id")
	}
	if !req.Price.IsPositive() || !req.Amount.IsPositive() {
		return nil, exchanges.NewError(ID, exchanges.KindArgumentsRequired, "editOrder() requires both a price and an amount")
	}
	m, cat, err := c.requireMarket(ctx, req.Symbol, "editOrder")
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"category": cat,
		"symbol":   m.ID,
		"orderId":  id,
		"qty":      orders.AmountToPrecision(m, req.Amount),
		"price":    orders.PriceToPrecision(m, req.Price),
	}
	if trigger := req.TriggerPrice; trigger.IsPositive() {
		body["triggerPrice"] = orders.PriceToPrecision(m, trigger)
	}
	var res ack
	if err := c.result(ctx, call{method: http.MethodPost, path: "/v5/order/amend", body: withBody(body, req.Params), signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &res); err != nil {
		return nil, err
	}
	body["orderType"] = "Limit"
	o := fromRequest(res, m, req, body)
	if o.ID == "" {
		o.ID = id
	}
	return &o, nil
}

// canceled builds the order a cancel acknowledgement refers to.
func canceled(res ack, symbol string) exchanges.Order {
	return exchanges.Order{
		ID:            res.OrderID,
		ClientOrderID: res.OrderLinkID,
		Symbol:        symbol,
		Status:        exchanges.OrderStatusCanceled,
	}
}

// CancelOrder implements exchanges.Trading. A clientOrderId param cancels
// by orderLinkId instead of id.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string, params exchanges.Params) (*exchanges.Order, error) {
	m, cat, err := c.requireMarket(ctx, symbol, "cancelOrder")
	if err != nil {
		return nil, err
	}
	body := map[string]any{"category": cat, "symbol": m.ID}
	if cid := params.String("clientOrderId"); cid != "" {
		body["orderLinkId"] = cid
		params = params.Without("clientOrderId")
	} else {
		body["orderId"] = id
	}
	var res ack
	if err := c.result(ctx, call{method: http.MethodPost, path: "/v5/order/cancel", body: withBody(body, params), signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &res); err != nil {
		return nil, err
	}
	o := canceled(res, m.Symbol)
	return &o, nil
}

type batchInfo struct {
	List []struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"list"`
}

// CancelOrders implements exchanges.Trading through the batch endpoint. It
// fails on the first rejected entry.
func (c *Client) CancelOrders(ctx context.Context, ids []string, symbol string, params exchanges.Params) ([]exchanges.Order, error) {
	m, cat, err := c.requireMarket(ctx, symbol, "cancelOrders")
	if err != nil {
		return nil, err
	}
	entries := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, map[string]any{"symbol": m.ID, "orderId": id})
	}
	body := withBody(map[string]any{"category": cat, "request": entries}, params)
	env, err := c.do(ctx, call{method: http.MethodPost, path: "/v5/order/cancel-batch", body: body, signed: true, bucket: ratelimit.KeyOrder, cost: 1})
	if err != nil {
		return nil, err
	}
	var info batchInfo
	if len(env.RetExtInfo) > 0 {
		if err := json.Unmarshal(env.RetExtInfo, &info); err != nil {
			return nil, unexpected("cancel-batch info", err)
		}
	}
	for _, entry := range info.List {
		if entry.Code != 0 {
			return nil, c.fail(classifier.Error(strconv.Itoa(entry.Code), entry.Msg, 0, env.RetExtInfo))
		}
	}
	var res struct {
		List []ack `json:"list"`
	}
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return nil, unexpected("cancel-batch", err)
	}
	out := make([]exchanges.Order, 0, len(res.List))
	for _, a := range res.List {
		out = append(out, canceled(a, m.Symbol))
	}
	return out, nil
}

// CancelAllOrders implements exchanges.Trading.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string, params exchanges.Params) ([]exchanges.Order, error) {
	m, cat, err := c.requireMarket(ctx, symbol, "cancelAllOrders")
	if err != nil {
		return nil, err
	}
	body := withBody(map[string]any{"category": cat, "symbol": m.ID}, params)
	var res struct {
		List []ack `json:"list"`
	}
	if err := c.result(ctx, call{method: http.MethodPost, path: "/v5/order/cancel-all", body: body, signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &res); err != nil {
		return nil, err
	}
	out := make([]exchanges.Order, 0, len(res.List))
	for _, a := range res.List {
		out = append(out, canceled(a, m.Symbol))
	}
	return out, nil
}

// orderList runs one signed order query and parses the rows.
func (c *Client) orderList(ctx context.Context, cat, path string, q url.Values, cost int) ([]exchanges.Order, error) {
	res, _, err := c.listPage(ctx, call{method: http.MethodGet, path: path, query: q, signed: true, cost: cost})
	if err != nil {
		return nil, err
	}
	out := make([]exchanges.Order, 0, len(res.List))
	for _, raw := range res.List {
		o, err := parseOrder(raw, c.resolver(cat))
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// FetchOrder implements exchanges.Trading. Open orders are looked up first,
// then the history.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string, params exchanges.Params) (*exchanges.Order, error) {
	m, cat, err := c.requireMarket(ctx, symbol, "fetchOrder")
	if err != nil {
		return nil, err
	}
	q := withParams(url.Values{"category": {cat}, "symbol": {m.ID}, "orderId": {id}}, params)
	for _, path := range []string{"/v5/order/realtime", "/v5/order/history"} {
		list, err := c.orderList(ctx, cat, path, q, 1)
		if err != nil {
			return nil, err
		}
		if len(list) > 0 {
			return &list[0], nil
		}
	}
	return nil, exchanges.NewError(ID, exchanges.KindOrderNotFound, "order %s not found", id)
}

func windowed(list []exchanges.Order, opts exchanges.FetchOptions) []exchanges.Order {
	key := func(o exchanges.Order) time.Time { return o.Timestamp }
	return parse.Window(list, key, opts.Since, opts.Until, opts.Limit)
}

// FetchOrders implements exchanges.Trading from the order history.
func (c *Client) FetchOrders(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Order, error) {
	m, cat, err := c.requireMarket(ctx, symbol, "fetchOrders")
	if err != nil {
		return nil, err
	}
	q := window(url.Values{"category": {cat}, "symbol": {m.ID}}, opts)
	list, err := c.orderList(ctx, cat, "/v5/order/history", withParams(q, opts.Params), 1)
	if err != nil {
		return nil, err
	}
	return windowed(list, opts), nil
}

// FetchOpenOrders implements exchanges.Trading. Without a symbol the "type"
// param picks the category; linear queries default to USDT settlement.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Order, error) {
	var (
		cat string
		q   url.Values
	)
	if symbol == "" {
		if _, err := c.LoadMarkets(ctx, false); err != nil {
			return nil, err
		}
		var err error
		if cat, err = c.categoryFor(opts.Params); err != nil {
			return nil, err
		}
		q = url.Values{"category": {cat}}
		if cat == CategoryLinear && opts.Params.String("settleCoin") == "" {
			q.Set("settleCoin", "USDT")
		}
	} else {
		m, mcat, err := c.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		cat = mcat
		q = url.Values{"category": {cat}, "symbol": {m.ID}}
	}
	list, err := c.orderList(ctx, cat, "/v5/order/realtime", withParams(q, opts.Params.Without("type")), 1)
	if err != nil {
		return nil, err
	}
	return windowed(list, opts), nil
}

// FetchMyTrades implements exchanges.Trading from the execution list.
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Trade, error) {
	m, cat, err := c.requireMarket(ctx, symbol, "fetchMyTrades")
	if err != nil {
		return nil, err
	}
	q := window(url.Values{"category": {cat}, "symbol": {m.ID}}, opts)
	res, _, err := c.listPage(ctx, call{method: http.MethodGet, path: "/v5/execution/list", query: withParams(q, opts.Params), signed: true, cost: 1})
	if err != nil {
		return nil, err
	}
	return trades(res.List, m, opts)
}
