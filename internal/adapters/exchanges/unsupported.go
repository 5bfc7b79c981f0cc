package exchanges

import (
	"context"
)

// Unsupported is embedded by adapters; every method fails with
// KindNotSupported until the adapter defines its own.
type Unsupported struct {
	Venue string
}

func (u Unsupported) FetchCurrencies(context.Context, Params) ([]Currency, error) {
	return nil, NotSupported(u.Venue, "fetchCurrencies")
}

func (u Unsupported) FetchTickers(context.Context, []string, Params) ([]Ticker, error) {
	return nil, NotSupported(u.Venue, "fetchTickers")
}

func (u Unsupported) FetchOHLCV(context.Context, string, string, FetchOptions) ([]OHLCV, error) {
	return nil, NotSupported(u.Venue, "fetchOHLCV")
}

func (u Unsupported) EditOrder(context.Context, string, OrderRequest) (*Order, error) {
	return nil, NotSupported(u.Venue, "editOrder")
}

func (u Unsupported) CancelOrders(context.Context, []string, string, Params) ([]Order, error) {
	return nil, NotSupported(u.Venue, "cancelOrders")
}

func (u Unsupported) CancelAllOrders(context.Context, string, Params) ([]Order, error) {
	return nil, NotSupported(u.Venue, "cancelAllOrders")
}

func (u Unsupported) FetchOrder(context.Context, string, string, Params) (*Order, error) {
	return nil, NotSupported(u.Venue, "fetchOrder")
}

func (u Unsupported) FetchOrders(context.Context, string, FetchOptions) ([]Order, error) {
	return nil, NotSupported(u.Venue, "fetchOrders")
}

func (u Unsupported) FetchOpenOrders(context.Context, string, FetchOptions) ([]Order, error) {
	return nil, NotSupported(u.Venue, "fetchOpenOrders")
}

func (u Unsupported) FetchMyTrades(context.Context, string, FetchOptions) ([]Trade, error) {
	return nil, NotSupported(u.Venue, "fetchMyTrades")
}

func (u Unsupported) FetchPositions(context.Context, []string, Params) ([]Position, error) {
	return nil, NotSupported(u.Venue, "fetchPositions")
}

func (u Unsupported) FetchLedger(context.Context, string, FetchOptions) ([]LedgerEntry, error) {
	return nil, NotSupported(u.Venue, "fetchLedger")
}

func (u Unsupported) FetchTradingFee(context.Context, string, Params) (*TradingFee, error) {
	return nil, NotSupported(u.Venue, "fetchTradingFee")
}

func (u Unsupported) FetchTradingFees(context.Context, Params) ([]TradingFee, error) {
	return nil, NotSupported(u.Venue, "fetchTradingFees")
}

func (u Unsupported) FetchDepositAddress(context.Context, string, Params) (*DepositAddress, error) {
	return nil, NotSupported(u.Venue, "fetchDepositAddress")
}

func (u Unsupported) FetchDeposits(context.Context, string, FetchOptions) ([]Transaction, error) {
	return nil, NotSupported(u.Venue, "fetchDeposits")
}

func (u Unsupported) FetchWithdrawals(context.Context, string, FetchOptions) ([]Transaction, error) {
	return nil, NotSupported(u.Venue, "fetchWithdrawals")
}

func (u Unsupported) Withdraw(context.Context, WithdrawRequest) (*Transaction, error) {
	return nil, NotSupported(u.Venue, "withdraw")
}

func (u Unsupported) Transfer(context.Context, TransferRequest) (*Transfer, error) {
	return nil, NotSupported(u.Venue, "transfer")
}

func (u Unsupported) FetchFundingRate(context.Context, string, Params) (*FundingRate, error) {
	return nil, NotSupported(u.Venue, "fetchFundingRate")
}

func (u Unsupported) FetchFundingRateHistory(context.Context, string, FetchOptions) ([]FundingRate, error) {
	return nil, NotSupported(u.Venue, "fetchFundingRateHistory")
}

func (u Unsupported) FetchSettlementHistory(context.Context, string, FetchOptions) ([]Settlement, error) {
	return nil, NotSupported(u.Venue, "fetchSettlementHistory")
}
