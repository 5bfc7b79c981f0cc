package exchanges

import (
	"context"
)

// MarketData covers public market endpoints.
type MarketData interface {
	LoadMarkets(ctx context.Context, reload bool) (MarketCache, error)
	FetchMarkets(ctx context.Context, params Params) ([]Market, error)
	FetchCurrencies(ctx context.Context, params Params) ([]Currency, error)
	FetchTicker(ctx context.Context, symbol string, params Params) (*Ticker, error)
	FetchTickers(ctx context.Context, symbols []string, params Params) ([]Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string, limit int, params Params) (*OrderBook, error)
	FetchTrades(ctx context.Context, symbol string, opts FetchOptions) ([]Trade, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, opts FetchOptions) ([]OHLCV, error)
}

// Trading covers order placement and order queries.
type Trading interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	EditOrder(ctx context.Context, id string, req OrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, id, symbol string, params Params) (*Order, error)
	CancelOrders(ctx context.Context, ids []string, symbol string, params Params) ([]Order, error)
	CancelAllOrders(ctx context.Context, symbol string, params Params) ([]Order, error)
	FetchOrder(ctx context.Context, id, symbol string, params Params) (*Order, error)
	FetchOrders(ctx context.Context, symbol string, opts FetchOptions) ([]Order, error)
	FetchOpenOrders(ctx context.Context, symbol string, opts FetchOptions) ([]Order, error)
	FetchMyTrades(ctx context.Context, symbol string, opts FetchOptions) ([]Trade, error)
}

// Account covers balances, positions, fees and the ledger.
type Account interface {
	FetchBalance(ctx context.Context, params Params) (*Balance, error)
	FetchPositions(ctx context.Context, symbols []string, params Params) ([]Position, error)
	FetchLedger(ctx context.Context, code string, opts FetchOptions) ([]LedgerEntry, error)
	FetchTradingFee(ctx context.Context, symbol string, params Params) (*TradingFee, error)
	FetchTradingFees(ctx context.Context, params Params) ([]TradingFee, error)
}

// Treasury covers deposits, withdrawals and internal transfers.
type Treasury interface {
	FetchDepositAddress(ctx context.Context, code string, params Params) (*DepositAddress, error)
	FetchDeposits(ctx context.Context, code string, opts FetchOptions) ([]Transaction, error)
	FetchWithdrawals(ctx context.Context, code string, opts FetchOptions) ([]Transaction, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*Transaction, error)
	Transfer(ctx context.Context, req TransferRequest) (*Transfer, error)
}

// Derivatives covers funding and settlement data.
type Derivatives interface {
	FetchFundingRate(ctx context.Context, symbol string, params Params) (*FundingRate, error)
	FetchFundingRateHistory(ctx context.Context, symbol string, opts FetchOptions) ([]FundingRate, error)
	FetchSettlementHistory(ctx context.Context, symbol string, opts FetchOptions) ([]Settlement, error)
}

// Exchange is the unified capability set each venue adapter satisfies.
// Operations a venue has no endpoint for fail with KindNotSupported.
type Exchange interface {
	ID() string
	MarketData
	Trading
	Account
	Treasury
	Derivatives
}
