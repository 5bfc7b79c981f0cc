package exchanges

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// BracketLeg defines one exit leg of a bracket order.
type BracketLeg struct {
	Amount      decimal.Decimal
	Price       decimal.Decimal
	Type        OrderType
	TimeInForce TimeInForce
}

// BracketOrderRequest orchestrates entry + exit orders.
type BracketOrderRequest struct {
	Entry      OrderRequest
	StopLoss   *BracketLeg
	TakeProfit []BracketLeg
}

// BracketOrderResponse summarizes placed orders.
type BracketOrderResponse struct {
	Entry      *Order
	StopLoss   *Order
	TakeProfit []*Order
}

// ExecuteBracketOrder places the entry, then a reduce-only stop-loss and any
// take-profit legs. It stops at the first failure and returns what was placed.
func ExecuteBracketOrder(ctx context.Context, ex Trading, req BracketOrderRequest) (*BracketOrderResponse, error) {
	if req.Entry.Symbol == "" || !req.Entry.Amount.IsPositive() {
		return nil, ErrArgumentsRequired
	}

	entry, err := ex.CreateOrder(ctx, req.Entry)
	if err != nil {
		return nil, err
	}
	resp := &BracketOrderResponse{Entry: entry}
	exitSide := oppositeSide(req.Entry.Side)

	if req.StopLoss != nil {
		sl := deriveExitRequest(req.Entry, *req.StopLoss, exitSide)
		sl.StopLossPrice = req.StopLoss.Price
		if !sl.Type.IsLimitLike() {
			sl.Price = decimal.Zero
		}
		order, err := ex.CreateOrder(ctx, sl)
		if err != nil {
			return resp, err
		}
		resp.StopLoss = order
	}

	for _, leg := range req.TakeProfit {
		tp := deriveExitRequest(req.Entry, leg, exitSide)
		order, err := ex.CreateOrder(ctx, tp)
		if err != nil {
			return resp, err
		}
		resp.TakeProfit = append(resp.TakeProfit, order)
	}

	return resp, nil
}

// LadderStep represents one rung in a ladder order.
type LadderStep struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// ExecuteLadderOrder breaks a large order into limit orders at each step.
func ExecuteLadderOrder(ctx context.Context, ex Trading, template OrderRequest, steps []LadderStep) ([]*Order, error) {
	if template.Symbol == "" || len(steps) == 0 {
		return nil, ErrArgumentsRequired
	}
	for _, step := range steps {
		if !step.Amount.IsPositive() || !step.Price.IsPositive() {
			return nil, ErrInvalidOrder
		}
	}

	placed := make([]*Order, 0, len(steps))
	for _, step := range steps {
		req := template
		req.Type = OrderTypeLimit
		req.Price = step.Price
		req.Amount = step.Amount
		order, err := ex.CreateOrder(ctx, req)
		if err != nil {
			return placed, err
		}
		placed = append(placed, order)
	}
	return placed, nil
}

// ClosePosition submits a reduce-only market order against a position.
func ClosePosition(ctx context.Context, ex Trading, pos Position) (*Order, error) {
	if pos.Symbol == "" || pos.Contracts.IsZero() {
		return nil, ErrArgumentsRequired
	}
	return ex.CreateOrder(ctx, OrderRequest{
		Symbol:      pos.Symbol,
		Type:        OrderTypeMarket,
		Side:        oppositeSide(positionSideToOrderSide(pos.Side)),
		Amount:      pos.Contracts.Abs(),
		TimeInForce: TimeInForceIOC,
		ReduceOnly:  true,
		MarginMode:  pos.MarginMode,
	})
}

// ProtectionRequest places stop-loss and take-profit orders for a position.
type ProtectionRequest struct {
	Position        Position
	StopLossPrice   decimal.Decimal
	TakeProfitPrice decimal.Decimal
	LimitOffset     decimal.Decimal // when set, legs are limit orders offset from the trigger
}

// ProtectionResponse returns any created protective orders.
type ProtectionResponse struct {
	StopLoss   *Order
	TakeProfit *Order
}

// UpdateProtectionOrders creates reduce-only protective orders for a position.
func UpdateProtectionOrders(ctx context.Context, ex Trading, req ProtectionRequest) (*ProtectionResponse, error) {
	pos := req.Position
	if pos.Symbol == "" || pos.Contracts.IsZero() {
		return nil, ErrArgumentsRequired
	}

	exitSide := oppositeSide(positionSideToOrderSide(pos.Side))
	template := OrderRequest{
		Symbol:     pos.Symbol,
		Type:       OrderTypeMarket,
		Side:       exitSide,
		Amount:     pos.Contracts.Abs(),
		ReduceOnly: true,
		MarginMode: pos.MarginMode,
	}

	resp := &ProtectionResponse{}
	if req.StopLossPrice.IsPositive() {
		sl := template
		sl.StopLossPrice = req.StopLossPrice
		if req.LimitOffset.IsPositive() {
			sl.Type = OrderTypeLimit
			sl.Price = offsetAway(req.StopLossPrice, req.LimitOffset, exitSide)
		}
		order, err := ex.CreateOrder(ctx, sl)
		if err != nil {
			return resp, err
		}
		resp.StopLoss = order
	}

	if req.TakeProfitPrice.IsPositive() {
		tp := template
		tp.TakeProfitPrice = req.TakeProfitPrice
		if req.LimitOffset.IsPositive() {
			tp.Type = OrderTypeLimit
			tp.Price = offsetAway(req.TakeProfitPrice, req.LimitOffset, exitSide)
		}
		order, err := ex.CreateOrder(ctx, tp)
		if err != nil {
			return resp, err
		}
		resp.TakeProfit = order
	}

	return resp, nil
}

// OrderTracker folds repeated observations of orders into their last known
// status. Once an order is seen in a terminal status it stays there, even
// when a later response lags behind.
type OrderTracker struct {
	mu     sync.Mutex
	status map[string]OrderStatus
}

func NewOrderTracker() *OrderTracker {
	return &OrderTracker{status: make(map[string]OrderStatus)}
}

// Observe records o and rewrites its status through AdvanceStatus.
func (t *OrderTracker) Observe(o *Order) *Order {
	if o == nil || o.ID == "" {
		return o
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	o.Status = AdvanceStatus(t.status[o.ID], o.Status)
	t.status[o.ID] = o.Status
	return o
}

// Done reports whether the order id has reached a terminal status.
func (t *OrderTracker) Done(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status[id].IsTerminal()
}

// WatchOrder fetches one order and passes it through the tracker.
func WatchOrder(ctx context.Context, ex Trading, t *OrderTracker, id, symbol string, params Params) (*Order, error) {
	o, err := ex.FetchOrder(ctx, id, symbol, params)
	if err != nil {
		return nil, err
	}
	return t.Observe(o), nil
}

func deriveExitRequest(entry OrderRequest, leg BracketLeg, side OrderSide) OrderRequest {
	req := entry
	req.Side = side
	req.Type = fallbackOrderType(leg.Type, OrderTypeLimit)
	if leg.Amount.IsPositive() {
		req.Amount = leg.Amount
	}
	if leg.Price.IsPositive() {
		req.Price = leg.Price
	}
	req.TimeInForce = fallbackTIF(leg.TimeInForce, entry.TimeInForce)
	req.TriggerPrice = decimal.Zero
	req.StopLossPrice = decimal.Zero
	req.TakeProfitPrice = decimal.Zero
	req.ClientOrderID = ""
	req.ReduceOnly = true
	return req
}

// offsetAway moves a limit price past the trigger in the direction that
// keeps the exit marketable once triggered.
func offsetAway(trigger, offset decimal.Decimal, side OrderSide) decimal.Decimal {
	if side == OrderSideSell {
		return trigger.Sub(offset)
	}
	return trigger.Add(offset)
}

func oppositeSide(side OrderSide) OrderSide {
	if side == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

func positionSideToOrderSide(side PositionSide) OrderSide {
	if side == PositionSideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

func fallbackOrderType(value OrderType, def OrderType) OrderType {
	if value == "" {
		return def
	}
	return value
}

func fallbackTIF(value, def TimeInForce) TimeInForce {
	if value == "" {
		return def
	}
	return value
}
