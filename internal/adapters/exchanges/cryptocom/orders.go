package cryptocom

import (
	"context"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/orders"
	"tradegate/internal/adapters/exchanges/parse"
	"tradegate/internal/adapters/exchanges/ratelimit"
)

var tifTable = orders.TimeInForceTable{
	GTC:      "GOOD_TILL_CANCEL",
	IOC:      "IMMEDIATE_OR_CANCEL",
	FOK:      "FILL_OR_KILL",
	PostOnly: "POST_ONLY",
}

// orderParams builds the private/create-order payload for m.
func (c *Client) orderParams(m exchanges.Market, req exchanges.OrderRequest) (map[string]any, error) {
	if err := req.Validate(ID); err != nil {
		return nil, err
	}
	trig, err := orders.ResolveTrigger(ID, orders.TriggerInput{
		Type:            req.Type,
		Side:            req.Side,
		Price:           orders.DecimalString(req.Price),
		TriggerPrice:    orders.DecimalString(req.TriggerPrice),
		StopLossPrice:   orders.DecimalString(req.StopLossPrice),
		TakeProfitPrice: orders.DecimalString(req.TakeProfitPrice),
	})
	if err != nil {
		return nil, err
	}
	venueType, ok := venueOrderTypes[trig.Type]
	if !ok {
		return nil, exchanges.NewError(ID, exchanges.KindInvalidOrder, "unsupported order type %q", req.Type)
	}

	params := map[string]any{
		"instrument_name": m.ID,
		"side":            strings.ToUpper(string(req.Side)),
		"type":            venueType,
	}
	if trig.Type.IsLimitLike() {
		params["price"] = orders.PriceToPrecision(m, req.Price)
	}
	if trig.Price != "" {
		params["ref_price"] = orders.PriceToPrecision(m, decimal.RequireFromString(trig.Price))
	}

	if trig.Type == exchanges.OrderTypeMarket && req.Side == exchanges.OrderSideBuy && m.Spot {
		cost, err := orders.MarketBuyCost(ID, req.Amount, req.Price, req.Cost, c.cfg.MarketBuyRequiresPrice)
		if err != nil {
			return nil, err
		}
		params["notional"] = orders.CostToPrecision(m, cost)
	} else {
		params["quantity"] = orders.AmountToPrecision(m, req.Amount)
	}

	tif := orders.MapTimeInForce(req.TimeInForce, req.PostOnly, tifTable)
	if tif.Value != "" {
		params["time_in_force"] = tif.Value
	}
	var execInst []string
	if tif.PostOnly != "" {
		execInst = append(execInst, tif.PostOnly)
	}
	if req.ReduceOnly && m.Contract {
		execInst = append(execInst, "REDUCE_ONLY")
	}
	if len(execInst) > 0 {
		params["exec_inst"] = execInst
	}

	mode, err := orders.ResolveMarginMode(ID, req.MarginMode, c.cfg.DefaultMarginMode, exchanges.MarginCross)
	if err != nil {
		return nil, err
	}
	if m.Spot {
		params["spot_margin"] = "SPOT"
		if mode != "" {
			params["spot_margin"] = "MARGIN"
		}
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = orders.ClientOrderID(c.cfg.ClientOrderIDPrefix, clientOrderIDLength)
	}
	params["client_oid"] = clientID

	return merge(params, req.Params), nil
}

// CreateOrder implements exchanges.Trading. Trigger orders are inferred from
// the trigger, stop-loss and take-profit prices.
func (c *Client) CreateOrder(ctx context.Context, req exchanges.OrderRequest) (*exchanges.Order, error) {
	m, err := c.market(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	params, err := c.orderParams(m, req)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.privatePost(ctx, "private/create-order", params, ratelimit.KeyOrder, &raw); err != nil {
		return nil, err
	}
	o, err := parseOrder(raw, c.resolve)
	if err != nil {
		return nil, err
	}
	o.Symbol = m.Symbol
	o.Side = req.Side
	o.Type = orderTypes[params["type"].(string)]
	o.Amount = req.Amount
	o.Price = nonZero(req.Price)
	o.PostOnly = req.PostOnly || req.TimeInForce == exchanges.TimeInForcePO
	o.ReduceOnly = req.ReduceOnly
	if ref, ok := params["ref_price"].(string); ok {
		o.TriggerPrice = parse.DecimalPtr(ref)
	}
	if v, ok := params["time_in_force"].(string); ok {
		o.TimeInForce = timeInForces[v]
	}
	if o.ClientOrderID == "" {
		o.ClientOrderID, _ = params["client_oid"].(string)
	}
	c.log.Infow("order placed", "symbol", m.Symbol, "id", o.ID, "type", o.Type, "side", o.Side)
	return &o, nil
}

func nonZero(d decimal.Decimal) *decimal.Decimal {
	if d.IsZero() {
		return nil
	}
	return &d
}

// EditOrder implements exchanges.Trading. The venue amends price and
// quantity together, so both are required.
func (c *Client) EditOrder(ctx context.Context, id string, req exchanges.OrderRequest) (*exchanges.Order, error) {
	if !req.Price.IsPositive() || !req.Amount.IsPositive() {
		return nil, exchanges.NewError(ID, exchanges.KindArgumentsRequired, "editOrder() requires both price and amount")
	}
	m, err := c.market(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	params := merge(map[string]any{
		"order_id":     id,
		"new_price":    orders.PriceToPrecision(m, req.Price),
		"new_quantity": orders.AmountToPrecision(m, req.Amount),
	}, req.Params)
	if req.ClientOrderID != "" {
		params["client_oid"] = req.ClientOrderID
	}

	var raw json.RawMessage
	if err := c.privatePost(ctx, "private/amend-order", params, ratelimit.KeyOrder, &raw); err != nil {
		return nil, err
	}
	o, err := parseOrder(raw, c.resolve)
	if err != nil {
		return nil, err
	}
	if o.ID == "" {
		o.ID = id
	}
	o.Symbol = m.Symbol
	o.Amount = req.Amount
	o.Price = nonZero(req.Price)
	return &o, nil
}

// CancelOrder implements exchanges.Trading.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string, params exchanges.Params) (*exchanges.Order, error) {
	o := &exchanges.Order{ID: id}
	body := map[string]any{"order_id": id}
	if symbol != "" {
		m, err := c.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		o.Symbol = m.Symbol
		body["instrument_name"] = m.ID
	}

	var raw json.RawMessage
	if err := c.privatePost(ctx, "private/cancel-order", merge(body, params), ratelimit.KeyOrder, &raw); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		parsed, err := parseOrder(raw, c.resolve)
		if err != nil {
			return nil, err
		}
		if parsed.ClientOrderID != "" {
			o.ClientOrderID = parsed.ClientOrderID
		}
	}
	o.Info = raw
	return o, nil
}

// CancelOrders implements exchanges.Trading with one batch request. Any
// rejected entry fails the call with that entry's classified error.
func (c *Client) CancelOrders(ctx context.Context, ids []string, symbol string, params exchanges.Params) ([]exchanges.Order, error) {
	if symbol == "" {
		return nil, exchanges.NewError(ID, exchanges.KindArgumentsRequired, "cancelOrders() requires a symbol")
	}
	m, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	list := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		list = append(list, map[string]any{"instrument_name": m.ID, "order_id": id})
	}
	body := merge(map[string]any{"contingency_type": "LIST", "order_list": list}, params)

	var res struct {
		ResultList []struct {
			Index   int         `json:"index"`
			Code    json.Number `json:"code"`
			Message string      `json:"message"`
			OrderID parse.ID    `json:"order_id"`
		} `json:"result_list"`
	}
	if err := c.privatePost(ctx, "private/cancel-order-list", body, ratelimit.KeyOrder, &res); err != nil {
		return nil, err
	}

	out := make([]exchanges.Order, 0, len(ids))
	for _, r := range res.ResultList {
		if code := r.Code.String(); code != "" && code != "0" {
			return nil, c.fail(classifier.Error(code, r.Message, 0, nil))
		}
		id := string(r.OrderID)
		if id == "" && r.Index >= 0 && r.Index < len(ids) {
			id = ids[r.Index]
		}
		out = append(out, exchanges.Order{ID: id, Symbol: m.Symbol})
	}
	return out, nil
}

// CancelAllOrders implements exchanges.Trading. The venue acknowledges
// without listing the canceled orders, so the result is empty.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string, params exchanges.Params) ([]exchanges.Order, error) {
	body := map[string]any{}
	if symbol != "" {
		m, err := c.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		body["instrument_name"] = m.ID
	}
	if err := c.privatePost(ctx, "private/cancel-all-orders", merge(body, params), ratelimit.KeyOrder, nil); err != nil {
		return nil, err
	}
	return []exchanges.Order{}, nil
}

// FetchOrder implements exchanges.Trading.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string, params exchanges.Params) (*exchanges.Order, error) {
	if symbol != "" {
		if _, err := c.market(ctx, symbol); err != nil {
			return nil, err
		}
	} else if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.privatePost(ctx, "private/get-order-detail", merge(map[string]any{"order_id": id}, params), "", &raw); err != nil {
		return nil, err
	}
	o, err := parseOrder(raw, c.resolve)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) listOrders(ctx context.Context, method, symbol string, opts exchanges.FetchOptions, windowed bool) ([]exchanges.Order, error) {
	body := map[string]any{}
	if symbol != "" {
		m, err := c.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		body["instrument_name"] = m.ID
	} else if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	if windowed {
		windowBody(body, opts)
	}

	var res listResult
	if err := c.privatePost(ctx, method, merge(body, opts.Params), "", &res); err != nil {
		return nil, err
	}
	out := make([]exchanges.Order, 0, len(res.Data))
	for _, raw := range res.Data {
		o, err := parseOrder(raw, c.resolve)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	key := func(o exchanges.Order) time.Time { return o.Timestamp }
	return parse.Window(out, key, opts.Since, opts.Until, opts.Limit), nil
}

// windowBody sets the start_time/end_time/limit window used by private
// history endpoints.
func windowBody(body map[string]any, opts exchanges.FetchOptions) {
	if !opts.Since.IsZero() {
		body["start_time"] = opts.Since.UnixMilli()
	}
	if !opts.Until.IsZero() {
		body["end_time"] = opts.Until.UnixMilli()
	}
	if opts.Limit > 0 {
		body["limit"] = opts.Limit
	}
}

// FetchOrders implements exchanges.Trading using the order history.
func (c *Client) FetchOrders(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Order, error) {
	return c.listOrders(ctx, "private/get-order-history", symbol, opts, true)
}

// FetchOpenOrders implements exchanges.Trading.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Order, error) {
	return c.listOrders(ctx, "private/get-open-orders", symbol, opts, false)
}

// FetchMyTrades implements exchanges.Trading.
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Trade, error) {
	body := map[string]any{}
	if symbol != "" {
		m, err := c.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		body["instrument_name"] = m.ID
	} else if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	windowBody(body, opts)

	var res listResult
	if err := c.privatePost(ctx, "private/get-trades", merge(body, opts.Params), "", &res); err != nil {
		return nil, err
	}
	trades, err := parseTrades(res.Data, c.resolve)
	if err != nil {
		return nil, err
	}
	key := func(t exchanges.Trade) time.Time { return t.Timestamp }
	return parse.Window(trades, key, opts.Since, opts.Until, opts.Limit), nil
}
