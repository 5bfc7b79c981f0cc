package okx

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/orders"
	"tradegate/internal/adapters/exchanges/parse"
	"tradegate/internal/adapters/exchanges/ratelimit"
)

// batchLimit caps the orders of one batch cancel.
const batchLimit = 20

var tifTable = orders.TimeInForceTable{
	GTC:      "limit",
	IOC:      "ioc",
	FOK:      "fok",
	PostOnly: "post_only",
}

var sides = map[exchanges.OrderSide]string{
	exchanges.OrderSideBuy:  "buy",
	exchanges.OrderSideSell: "sell",
}

// placement is a built create request. Triggered orders go to the algo
// endpoint.
type placement struct {
	body map[string]any
	algo bool
	mode exchanges.MarginMode
}

// orderBody builds the create payload. The venue folds time in force into
// ordType and takes the margin mode per order as tdMode.
func (c *Client) orderBody(m exchanges.Market, req exchanges.OrderRequest) (placement, error) {
	if err := req.Validate(ID); err != nil {
		return placement{}, err
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
		return placement{}, err
	}

	postOnly := req.PostOnly || req.TimeInForce == exchanges.TimeInForcePO
	if postOnly && trig.Type != exchanges.OrderTypeLimit {
		return placement{}, exchanges.NewError(ID, exchanges.KindInvalidOrder, "postOnly orders must be plain limit orders")
	}
	if req.ReduceOnly && !m.Contract {
		return placement{}, exchanges.NewError(ID, exchanges.KindInvalidOrder, "reduceOnly is only valid for contract markets")
	}

	out := placement{}
	tdMode := "cash"
	if m.Contract {
		out.mode, err = orders.ResolveMarginMode(ID, req.MarginMode, c.cfg.DefaultMarginMode, exchanges.MarginCross, exchanges.MarginIsolated)
		if err != nil {
			return placement{}, err
		}
		if out.mode == "" {
			out.mode = exchanges.MarginCross
		}
		tdMode = string(out.mode)
	} else if req.MarginMode != "" {
		return placement{}, exchanges.NewError(ID, exchanges.KindNotSupported, "margin mode on spot orders is not supported")
	}

	body := map[string]any{
		"instId": m.ID,
		"tdMode": tdMode,
		"side":   sides[req.Side],
		"sz":     orders.AmountToPrecision(m, req.Amount),
	}
	if m.Spot && trig.Type == exchanges.OrderTypeMarket && req.Side == exchanges.OrderSideBuy && req.Cost.IsPositive() {
		body["tgtCcy"] = "quote_ccy"
		body["sz"] = orders.CostToPrecision(m, req.Cost)
	}
	if req.ReduceOnly {
		body["reduceOnly"] = true
	}
	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = orders.ClientOrderID(c.cfg.ClientOrderIDPrefix, clientOrderIDLength)
	}

	if trig.Price != "" {
		out.algo = true
		prefix := "sl"
		if trig.Type == exchanges.OrderTypeTakeProfitMarket || trig.Type == exchanges.OrderTypeTakeProfitLimit {
			prefix = "tp"
		}
		body["ordType"] = "conditional"
		body[prefix+"TriggerPx"] = orders.PriceToPrecision(m, decimal.RequireFromString(trig.Price))
		body[prefix+"OrdPx"] = "-1"
		if trig.Type.IsLimitLike() {
			body[prefix+"OrdPx"] = orders.PriceToPrecision(m, req.Price)
		}
		body["algoClOrdId"] = clientID
	} else {
		body["ordType"] = "market"
		if trig.Type.IsLimitLike() {
			tif := orders.MapTimeInForce(req.TimeInForce, postOnly, tifTable)
			switch {
			case tif.PostOnly != "":
				body["ordType"] = tif.PostOnly
			case tif.Value != "":
				body["ordType"] = tif.Value
			default:
				body["ordType"] = tifTable.GTC
			}
			body["px"] = orders.PriceToPrecision(m, req.Price)
		}
		body["clOrdId"] = clientID
	}

	out.body = withBody(body, req.Params.Without("leverage"))
	return out, nil
}

// setLeverage applies the leverage param before a contract order.
func (c *Client) setLeverage(ctx context.Context, m exchanges.Market, mode exchanges.MarginMode, leverage string) error {
	body := map[string]any{"instId": m.ID, "lever": leverage, "mgnMode": string(mode)}
	_, err := c.do(ctx, call{method: http.MethodPost, path: "/api/v5/account/set-leverage", body: body, signed: true, bucket: ratelimit.KeyOrder, cost: 1})
	return err
}

type ack struct {
	OrdID       string `json:"ordId"`
	ClOrdID     string `json:"clOrdId"`
	AlgoID      string `json:"algoId"`
	AlgoClOrdID string `json:"algoClOrdId"`
}

func (a ack) id() string {
	if a.OrdID != "" {
		return a.OrdID
	}
	return a.AlgoID
}

func (a ack) clientID() string {
	if a.ClOrdID != "" {
		return a.ClOrdID
	}
	return a.AlgoClOrdID
}

// acks posts an order write and returns its per-entry acknowledgements.
func (c *Client) acks(ctx context.Context, path string, body any) ([]ack, error) {
	var out []ack
	err := c.result(ctx, call{method: http.MethodPost, path: path, body: body, signed: true, bucket: ratelimit.KeyOrder, cost: 1}, &out)
	return out, err
}

// CreateOrder implements exchanges.Trading. A leverage param is applied to
// the instrument first. The venue acknowledges with ids only; the rest of
// the order is what was submitted.
func (c *Client) CreateOrder(ctx context.Context, req exchanges.OrderRequest) (*exchanges.Order, error) {
	m, err := c.market(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	p, err := c.orderBody(m, req)
	if err != nil {
		return nil, err
	}
	if leverage := stringify(req.Params["leverage"]); leverage != "" && m.Contract {
		if err := c.setLeverage(ctx, m, p.mode, leverage); err != nil {
			return nil, err
		}
	}

	path := "/api/v5/trade/order"
	if p.algo {
		path = "/api/v5/trade/order-algo"
	}
	res, err := c.acks(ctx, path, p.body)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, exchanges.NewError(ID, exchanges.KindOperationFailed, "order placement returned no acknowledgement")
	}
	o := fromRequest(res[0], m, req, p)
	c.log.Infow("order placed", "symbol", m.Symbol, "id", o.ID, "type", o.Type, "side", o.Side)
	return &o, nil
}

// fromRequest builds the order an acknowledgement refers to.
func fromRequest(res ack, m exchanges.Market, req exchanges.OrderRequest, p placement) exchanges.Order {
	o := exchanges.Order{
		ID:            res.id(),
		ClientOrderID: res.clientID(),
		Symbol:        m.Symbol,
		Side:          req.Side,
		Status:        exchanges.OrderStatusOpen,
		Amount:        req.Amount,
		ReduceOnly:    req.ReduceOnly,
	}
	if o.ClientOrderID == "" {
		o.ClientOrderID, _ = p.body["clOrdId"].(string)
	}
	if o.ClientOrderID == "" {
		o.ClientOrderID, _ = p.body["algoClOrdId"].(string)
	}
	ordType, _ := p.body["ordType"].(string)
	if !p.algo {
		o.Type, o.TimeInForce, o.PostOnly = orderType(ordType)
		px, _ := p.body["px"].(string)
		o.Price = parse.DecimalPtr(px)
		return o
	}
	for _, prefix := range []string{"sl", "tp"} {
		trigger, _ := p.body[prefix+"TriggerPx"].(string)
		if trigger == "" {
			continue
		}
		o.TriggerPrice = parse.DecimalPtr(trigger)
		limit, _ := p.body[prefix+"OrdPx"].(string)
		if limit != "-1" {
			o.Price = parse.DecimalPtr(limit)
		}
		switch {
		case prefix == "tp" && o.Price != nil:
			o.Type = exchanges.OrderTypeTakeProfitLimit
		case prefix == "tp":
			o.Type = exchanges.OrderTypeTakeProfitMarket
		case o.Price != nil:
			o.Type = exchanges.OrderTypeStopLimit
		default:
			o.Type = exchanges.OrderTypeStopMarket
		}
	}
	return o
}

// EditOrder implements exchanges.Trading by amending in place.
func (c *Client) EditOrder(ctx context.Context, id string, req exchanges.OrderRequest) (*exchanges.Order, error) {
	if id == "" {
		return nil, exchanges.NewError(ID, exchanges.KindArgumentsRequired, "editOrder() requires an order id")
	}
	if !req.Price.IsPositive() && !req.Amount.IsPositive() {
		return nil, exchanges.NewError(ID, exchanges.KindArgumentsRequired, "editOrder() requires a price or an amount")
	}
	m, err := c.requireMarket(ctx, req.Symbol, "editOrder")
	if err != nil {
		return nil, err
	}
	body := map[string]any{"instId": m.ID, "ordId": id}
	if req.Amount.IsPositive() {
		body["newSz"] = orders.AmountToPrecision(m, req.Amount)
	}
	if req.Price.IsPositive() {
		body["newPx"] = orders.PriceToPrecision(m, req.Price)
	}
	res, err := c.acks(ctx, "/api/v5/trade/amend-order", withBody(body, req.Params))
	if err != nil {
		return nil, err
	}
	o := exchanges.Order{ID: id, Symbol: m.Symbol, Type: exchanges.OrderTypeLimit, Side: req.Side, Status: exchanges.OrderStatusOpen, Amount: req.Amount}
	if req.Price.IsPositive() {
		price := req.Price
		o.Price = &price
	}
	if len(res) > 0 {
		o.ClientOrderID = res[0].clientID()
	}
	return &o, nil
}

// canceled builds the order a cancel acknowledgement refers to.
func canceled(res ack, symbol string) exchanges.Order {
	return exchanges.Order{
		ID:            res.id(),
		ClientOrderID: res.clientID(),
		Symbol:        symbol,
		Status:        exchanges.OrderStatusCanceled,
	}
}

// CancelOrder implements exchanges.Trading. A clientOrderId param cancels
// by clOrdId instead of id; a trigger param cancels an algo order.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string, params exchanges.Params) (*exchanges.Order, error) {
	m, err := c.requireMarket(ctx, symbol, "cancelOrder")
	if err != nil {
		return nil, err
	}
	if trigger, _ := params["trigger"].(bool); trigger {
		res, err := c.acks(ctx, "/api/v5/trade/cancel-algos", []map[string]any{{"algoId": id, "instId": m.ID}})
		if err != nil {
			return nil, err
		}
		o := canceled(ack{AlgoID: id}, m.Symbol)
		if len(res) > 0 && res[0].id() != "" {
			o = canceled(res[0], m.Symbol)
		}
		return &o, nil
	}
	body := map[string]any{"instId": m.ID}
	if cid := params.String("clientOrderId"); cid != "" {
		body["clOrdId"] = cid
		params = params.Without("clientOrderId")
	} else {
		body["ordId"] = id
	}
	res, err := c.acks(ctx, "/api/v5/trade/cancel-order", withBody(body, params))
	if err != nil {
		return nil, err
	}
	o := canceled(ack{OrdID: id}, m.Symbol)
	if len(res) > 0 {
		o = canceled(res[0], m.Symbol)
	}
	return &o, nil
}

// CancelOrders implements exchanges.Trading through the batch endpoint, at
// most batchLimit ids per request. It fails on the first rejected entry.
func (c *Client) CancelOrders(ctx context.Context, ids []string, symbol string, params exchanges.Params) ([]exchanges.Order, error) {
	m, err := c.requireMarket(ctx, symbol, "cancelOrders")
	if err != nil {
		return nil, err
	}
	out := make([]exchanges.Order, 0, len(ids))
	for start := 0; start < len(ids); start += batchLimit {
		end := min(start+batchLimit, len(ids))
		entries := make([]map[string]any, 0, end-start)
		for _, id := range ids[start:end] {
			entries = append(entries, withBody(map[string]any{"instId": m.ID, "ordId": id}, params))
		}
		res, err := c.acks(ctx, "/api/v5/trade/cancel-batch-orders", entries)
		if err != nil {
			return nil, err
		}
		for _, a := range res {
			out = append(out, canceled(a, m.Symbol))
		}
	}
	return out, nil
}

// CancelAllOrders implements exchanges.Trading. The venue has no
// cancel-all for regular orders, so the open orders of the symbol are
// canceled in batches.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string, params exchanges.Params) ([]exchanges.Order, error) {
	if symbol == "" {
		return nil, exchanges.NewError(ID, exchanges.KindArgumentsRequired, "cancelAllOrders() requires a symbol")
	}
	open, err := c.FetchOpenOrders(ctx, symbol, exchanges.FetchOptions{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(open))
	for _, o := range open {
		ids = append(ids, o.ID)
	}
	if len(ids) == 0 {
		return []exchanges.Order{}, nil
	}
	return c.CancelOrders(ctx, ids, symbol, params)
}

// orderList runs one signed order query and parses the rows.
func (c *Client) orderList(ctx context.Context, path string, q url.Values) ([]exchanges.Order, error) {
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: path, query: q, signed: true, cost: 1})
	if err != nil {
		return nil, err
	}
	out := make([]exchanges.Order, 0, len(rows))
	for _, raw := range rows {
		o, err := parseOrder(raw, c.resolve)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// FetchOrder implements exchanges.Trading. A clientOrderId param looks the
// order up by clOrdId.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string, params exchanges.Params) (*exchanges.Order, error) {
	m, err := c.requireMarket(ctx, symbol, "fetchOrder")
	if err != nil {
		return nil, err
	}
	q := url.Values{"instId": {m.ID}}
	if cid := params.String("clientOrderId"); cid != "" {
		q.Set("clOrdId", cid)
		params = params.Without("clientOrderId")
	} else {
		q.Set("ordId", id)
	}
	list, err := c.orderList(ctx, "/api/v5/trade/order", withParams(q, params))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, exchanges.NewError(ID, exchanges.KindOrderNotFound, "order %s not found", id)
	}
	return &list[0], nil
}

func windowed(list []exchanges.Order, opts exchanges.FetchOptions) []exchanges.Order {
	key := func(o exchanges.Order) time.Time { return o.Timestamp }
	return parse.Window(list, key, opts.Since, opts.Until, opts.Limit)
}

// scope returns the instType and, for a symbol, the instId of a list query.
// Without a symbol the "type" param picks the instrument type.
func (c *Client) scope(ctx context.Context, symbol string, params exchanges.Params) (url.Values, error) {
	if symbol == "" {
		if _, err := c.LoadMarkets(ctx, false); err != nil {
			return nil, err
		}
		typ, err := c.instTypeFor(params)
		if err != nil {
			return nil, err
		}
		return url.Values{"instType": {typ}}, nil
	}
	m, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return url.Values{"instType": {instTypeOf(m)}, "instId": {m.ID}}, nil
}

// FetchOrders implements exchanges.Trading from the last seven days of
// order history.
func (c *Client) FetchOrders(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Order, error) {
	q, err := c.scope(ctx, symbol, opts.Params)
	if err != nil {
		return nil, err
	}
	q = window(q, opts)
	list, err := c.orderList(ctx, "/api/v5/trade/orders-history", withParams(q, opts.Params.Without("type")))
	if err != nil {
		return nil, err
	}
	return windowed(list, opts), nil
}

// FetchOpenOrders implements exchanges.Trading.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Order, error) {
	q, err := c.scope(ctx, symbol, opts.Params)
	if err != nil {
		return nil, err
	}
	list, err := c.orderList(ctx, "/api/v5/trade/orders-pending", withParams(q, opts.Params.Without("type")))
	if err != nil {
		return nil, err
	}
	return windowed(list, opts), nil
}

// FetchMyTrades implements exchanges.Trading from the fills of the last
// three days.
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, opts exchanges.FetchOptions) ([]exchanges.Trade, error) {
	q, err := c.scope(ctx, symbol, opts.Params)
	if err != nil {
		return nil, err
	}
	q = window(q, opts)
	rows, err := c.rows(ctx, call{method: http.MethodGet, path: "/api/v5/trade/fills", query: withParams(q, opts.Params.Without("type")), signed: true, cost: 1})
	if err != nil {
		return nil, err
	}
	return c.trades(rows, opts)
}
