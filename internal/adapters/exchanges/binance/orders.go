package binance

import (
	"context"
	"net/http"
	"net/url"
	"strings"
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
	PostOnly: "GTX",
}

var marginTypes = map[exchanges.MarginMode]string{
	exchanges.MarginCross:    "CROSSED",
	exchanges.MarginIsolated: "ISOLATED",
}

// orderParams builds the order payload for m on profile p. A bare trigger
// price always places a stop; take-profits need TakeProfitPrice.
func (c *Client) orderParams(m exchanges.Market, p Profile, req exchanges.OrderRequest) (url.Values, exchanges.MarginMode, error) {
	if err := req.Validate(c.venue); err != nil {
		return nil, "", err
	}
	trig, err := orders.ExplicitTrigger(c.venue, orders.TriggerInput{
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
		return nil, "", exchanges.NewError(c.venue, exchanges.KindInvalidOrder, "postOnly orders must be plain limit orders")
	}
	if req.ReduceOnly && !m.Contract {
		return nil, "", exchanges.NewError(c.venue, exchanges.KindInvalidOrder, "reduceOnly is only valid for contract markets")
	}

	var mode exchanges.MarginMode
	if m.Contract {
		mode, err = orders.ResolveMarginMode(c.venue, req.MarginMode, c.cfg.DefaultMarginMode, exchanges.MarginCross, exchanges.MarginIsolated)
		if err != nil {
			return nil, "", err
		}
	} else if req.MarginMode != "" {
		return nil, "", exchanges.NewError(c.venue, exchanges.KindNotSupported, "margin mode on spot orders is not supported, use the margin API")
	}

	q := url.Values{
		"symbol": {m.ID},
		"side":   {strings.ToUpper(string(req.Side))},
		"type":   {p.orderType(trig.Type, postOnly)},
	}
	if trig.Type.IsLimitLike() {
		q.Set("price", orders.PriceToPrecision(m, req.Price))
		tif := orders.MapTimeInForce(req.TimeInForce, postOnly, tifTable)
		switch {
		case tif.PostOnly != "" && p.LimitMaker != "":
			// LIMIT_MAKER carries no time in force.
		case tif.PostOnly != "":
			q.Set("timeInForce", tif.PostOnly)
		case tif.Value != "":
			q.Set("timeInForce", tif.Value)
		default:
			q.Set("timeInForce", tifTable.GTC)
		}
	} else if tif := orders.MapTimeInForce(req.TimeInForce, false, tifTable); tif.Value != "" && tif.Value != tifTable.GTC {
		q.Set("timeInForce", tif.Value)
	}
	if trig.Price != "" {
		q.Set("stopPrice", orders.PriceToPrecision(m, decimal.RequireFromString(trig.Price)))
	}

	if trig.Type == exchanges.OrderTypeMarket && req.Side == exchanges.OrderSideBuy && m.Spot && req.Cost.IsPositive() {
		q.Set("quoteOrderQty", orders.CostToPrecision(m, req.Cost))
	} else {
		q.Set("quantity", orders.AmountToPrecision(m, req.Amount))
	}
	if req.ReduceOnly {
		q.Set("reduceOnly", "true")
	}
	if m.Spot {
		q.Set("newOrderRespType", "RESULT")
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = orders.ClientOrderID(c.cfg.ClientOrderIDPrefix, clientOrderIDLength)
	}
	q.Set("newClientOrderId", clientID)

	return query(q, req.Params), mode, nil
}

// setMarginType switches the symbol to mode before an order. The venue
// answers -4046 when the symbol already uses it.
func (c *Client) setMarginType(ctx context.Context, m exchanges.Market, p Profile, mode exchanges.MarginMode) error {
	q := url.Values{"symbol": {m.ID}, "marginType": {marginTypes[mode]}}
	err := c.do(ctx, call{profile: p, method: http.MethodPost, path: p.Prefix + "/marginType", params: q, signed: true, bucket: ratelimit.KeyOrder, cost: 1}, nil)
	var venueErr *exchanges.Error
	if errors.As(err, &venueErr) && venueErr.Code == "-4046" {
		return nil
	}
	return err
}

// CreateOrder implements exchanges.Trading.
func (c *Client) CreateOrder(ctx context.Context, req exchanges.OrderRequest) (*exchanges.Order, error) {
	m, p, err := c.market(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	q, mode, err := c.orderParams(m, p, req)
	if err != nil {
		return nil, err
	}
	if mode != "" {
		if err := c.setMarginType(ctx, m, p, mode); err != nil {
			return nil, err
		}
	}

	var raw json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodPost, path: p.Prefix + "/order", params: q, signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &raw); err != nil {
		return nil, err
	}
	o, err := parseOrder(raw, p, c.resolver(p))
	if err != nil {
		return nil, err
	}
	fillFromRequest(&o, m, req, q)
	c.log.Infow("order placed", "symbol", m.Symbol, "id", o.ID, "type", o.Type, "side", o.Side)
	return &o, nil
}

// fillFromRequest completes an acknowledgement with what was submitted.
func fillFromRequest(o *exchanges.Order, m exchanges.Market, req exchanges.OrderRequest, q url.Values) {
	o.Symbol = m.Symbol
	if o.Side == "" {
		o.Side = req.Side
	}
	if o.Amount.IsZero() {
		o.Amount = req.Amount
	}
	if o.Price == nil {
		o.Price = parse.DecimalPtr(q.Get("price"))
	}
	if o.TriggerPrice == nil {
		o.TriggerPrice = parse.DecimalPtr(q.Get("stopPrice"))
	}
	o.PostOnly = o.PostOnly || req.PostOnly || req.TimeInForce == exchanges.TimeInForcePO
	if o.PostOnly {
		o.TimeInForce = exchanges.TimeInForcePO
	}
	o.ReduceOnly = o.ReduceOnly || req.ReduceOnly
	if o.ClientOrderID == "" {
		o.ClientOrderID = q.Get("newClientOrderId")
	}
	if o.Status == "" {
		o.Status = exchanges.OrderStatusOpen
	}
}

// EditOrder implements exchanges.Trading. Futures amend in place; spot
// cancels and replaces atomically, which assigns a new order id.
func (c *Client) EditOrder(ctx context.Context, id string, req exchanges.OrderRequest) (*exchanges.Order, error) {
	if id == "" {
		return nil, exchanges.NewError(c.venue, exchanges.KindArgumentsRequired, "editOrder() requires an order id")
	}
	if !req.Price.IsPositive() || !req.Amount.IsPositive() {
		return nil, exchanges.NewError(c.venue, exchanges.KindArgumentsRequired, "editOrder() requires both a price and an amount")
	}
	m, p, err := c.market(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	if m.Contract {
		q := url.Values{
			"symbol":   {m.ID},
			"orderId":  {id},
			"side":     {strings.ToUpper(string(req.Side))},
			"quantity": {orders.AmountToPrecision(m, req.Amount)},
			"price":    {orders.PriceToPrecision(m, req.Price)},
		}
		var raw json.RawMessage
		if err := c.do(ctx, call{profile: p, method: http.MethodPut, path: p.Prefix + "/order", params: query(q, req.Params), signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &raw); err != nil {
			return nil, err
		}
		o, err := parseOrder(raw, p, c.resolver(p))
		if err != nil {
			return nil, err
		}
		fillFromRequest(&o, m, req, q)
		return &o, nil
	}

	q, _, err := c.orderParams(m, p, req)
	if err != nil {
		return nil, err
	}
	q.Set("cancelReplaceMode", "STOP_ON_FAILURE")
	q.Set("cancelOrderId", id)
	var res struct {
		NewOrderResponse json.RawMessage `json:"newOrderResponse"`
	}
	if err := c.do(ctx, call{profile: p, method: http.MethodPost, path: p.Prefix + "/order/cancelReplace", params: q, signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &res); err != nil {
		return nil, err
	}
	o, err := parseOrder(res.NewOrderResponse, p, c.resolver(p))
	if err != nil {
		return nil, err
	}
	fillFromRequest(&o, m, req, q)
	return &o, nil
}

func (c *Client) requireMarket(ctx context.Context, symbol, op string) (exchanges.Market, Profile, error) {
	if symbol == "" {
		return exchanges.Market{}, Profile{}, exchanges.NewError(c.venue, exchanges.KindArgumentsRequired, "%s() requires a symbol", op)
	}
	return c.market(ctx, symbol)
}

// CancelOrder implements exchanges.Trading.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string, params exchanges.Params) (*exchanges.Order, error) {
	m, p, err := c.requireMarket(ctx, symbol, "cancelOrder")
	if err != nil {
		return nil, err
	}
	q := url.Values{"symbol": {m.ID}}
	if cid := params.String("clientOrderId"); cid != "" {
		q.Set("origClientOrderId", cid)
		params = params.Without("clientOrderId")
	} else {
		q.Set("orderId", id)
	}
	var raw json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodDelete, path: p.Prefix + "/order", params: query(q, params), signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &raw); err != nil {
		return nil, err
	}
	o, err := parseOrder(raw, p, c.resolver(p))
	if err != nil {
		return nil, err
	}
	o.Symbol = m.Symbol
	return &o, nil
}

// CancelOrders implements exchanges.Trading. Futures use the batch
// endpoint and fail on the first rejected entry; spot cancels one by one.
func (c *Client) CancelOrders(ctx context.Context, ids []string, symbol string, params exchanges.Params) ([]exchanges.Order, error) {
	m, p, err := c.requireMarket(ctx, symbol, "cancelOrders")
	if err != nil {
		return nil, err
	}
	if !m.Contract {
		out := make([]exchanges.Order, 0, len(ids))
		for _, id := range ids {
			o, err := c.CancelOrder(ctx, id, symbol, params)
			if err != nil {
				return nil, err
			}
			out = append(out, *o)
		}
		return out, nil
	}

	list, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	q := url.Values{"symbol": {m.ID}, "orderIdList": {string(list)}}
	var rows []json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodDelete, path: p.Prefix + "/batchOrders", params: query(q, params), signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &rows); err != nil {
		return nil, err
	}
	out := make([]exchanges.Order, 0, len(rows))
	for i, raw := range rows {
		var entry apiError
		if err := json.Unmarshal(raw, &entry); err == nil && entry.Code.String() != "" && entry.Code.String() != "200" {
			return nil, c.fail(classifier(c.venue).Error(entry.Code.String(), entry.Msg, 0, raw))
		}
		o, err := parseOrder(raw, p, c.resolver(p))
		if err != nil {
			return nil, err
		}
		if o.ID == "" && i < len(ids) {
			o.ID = ids[i]
		}
		o.Symbol = m.Symbol
		out = append(out, o)
	}
	return out, nil
}

// CancelAllOrders implements exchanges.Trading. Spot returns the canceled
// orders; futures only acknowledge, giving an empty list.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string, params exchanges.Params) ([]exchanges.Order, error) {
	m, p, err := c.requireMarket(ctx, symbol, "cancelAllOrders")
	if err != nil {
		return nil, err
	}
	q := query(url.Values{"symbol": {m.ID}}, params)
	if m.Contract {
		if err := c.do(ctx, call{profile: p, method: http.MethodDelete, path: p.Prefix + "/allOpenOrders", params: q, signed: true, bucket: ratelimit.KeyOrder, cost: 1}, nil); err != nil {
			return nil, err
		}
		return []exchanges.Order{}, nil
	}
	var rows []json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodDelete, path: p.Prefix + "/openOrders", params: q, signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &rows); err != nil {
		return nil, err
	}
	out := make([]exchanges.Order, 0, len(rows))
	for _, raw := range rows {
		o, err := parseOrder(raw, p, c.resolver(p))
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// FetchOrder implements exchanges.Trading.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string, params exchanges.Params) (*exchanges.Order, error) {
	m, p, err := c.requireMarket(ctx, symbol, "fetchOrder")
	if err != nil {
		return nil, err
	}
	q := query(url.Values{"symbol": {m.ID}, "orderId": {id}}, params)
	var raw json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + "/order", params: q, signed: true, cost: 4}, &raw); err != nil {
		return nil, err
	}
	o, err := parseOrder(raw, p, c.resolver(p))
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) orderList(ctx context.Context, p Profile, path string, q url.Values, opts exchanges.FetchOptions, cost int) ([]exchanges.Order, error) {
	var rows []json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + path, params: query(q, opts.Params.Without("type")), signed: true, cost: cost}, &rows); err != nil {
		return nil, err
	}
	out := make([]exchanges.Order, 0, len(rows))
	for _, raw := range rows {
		o, err := parseOrder(raw, p, c.resolver(p))
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	key := func(o exchanges.Order) time.Time { return o.Timestamp }
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}

// FetchOrders implements exchanges.Trading.
func (c *Client) FetchOrders(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Order, error) {
	m, p, err := c.requireMarket(ctx, symbol, "fetchOrders")
	if err != nil {
		return nil, err
	}
	return c.orderList(ctx, p, "/allOrders", window(url.Values{"symbol": {m.ID}}, opts), opts, 20)
}

// FetchOpenOrders implements exchanges.Trading. Without a symbol the
// "type" param picks the profile.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Order, error) {
	if symbol == "" {
		if _, err := c.LoadMarkets(ctx, false); err != nil {
			return nil, err
		}
		p, err := c.profileFor(opts.Params)
		if err != nil {
			return nil, err
		}
		return c.orderList(ctx, p, "/openOrders", url.Values{}, opts, 40)
	}
	m, p, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return c.orderList(ctx, p, "/openOrders", url.Values{"symbol": {m.ID}}, opts, 6)
}

// FetchMyTrades implements exchanges.Trading.
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Trade, error) {
	m, p, err := c.requireMarket(ctx, symbol, "fetchMyTrades")
	if err != nil {
		return nil, err
	}
	path := "/myTrades"
	if p.Contract {
		path = "/userTrades"
	}
	q := window(url.Values{"symbol": {m.ID}}, opts)
	var rows []json.RawMessage
	if err := c.do(ctx, call{profile: p, method: http.MethodGet, path: p.Prefix + path, params: query(q, opts.Params), signed: true, cost: 20}, &rows); err != nil {
		return nil, err
	}
	return trades(rows, m, opts)
}
