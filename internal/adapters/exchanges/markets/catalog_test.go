package markets

import (
	"context"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/adapters/exchanges"
)

func TestDedupeFirstWins(t *testing.T) {
	list := []exchanges.Market{
		{ID: "BTC_USDT", Symbol: "BTC/USDT", Info: json.RawMessage(`{"feed":"currencies"}`)},
		{ID: "ETH_USDT", Symbol: "ETH/USDT"},
		{ID: "BTCUSDT", Symbol: "BTC/USDT", Info: json.RawMessage(`{"feed":"instruments"}`)},
	}
	out := Dedupe(list)
	require.Len(t, out, 2)
	assert.Equal(t, "BTC_USDT", out[0].ID)
	assert.JSONEq(t, `{"feed":"currencies"}`, string(out[0].Info))
}

func TestCatalogLookup(t *testing.T) {
	c := NewCatalog()
	_, ok := c.Market("BTC/USDT")
	assert.False(t, ok)

	c.Store([]exchanges.Market{
		{ID: "BTC_USDT", Symbol: "BTC/USDT"},
		{ID: "BTCUSD-PERP", Symbol: "BTC/USD:USD"},
	}, []exchanges.Currency{{ID: "USD_STABLE_COIN", Code: "USDC"}})

	m, ok := c.Market("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, "BTC_USDT", m.ID)

	m, ok = c.Market("BTCUSD-PERP")
	require.True(t, ok)
	assert.Equal(t, "BTC/USD:USD", m.Symbol)

	cur, ok := c.Currency("USDC")
	require.True(t, ok)
	assert.Equal(t, "USD_STABLE_COIN", cur.ID)

	assert.Len(t, c.Markets(), 2)
}

func TestCatalogConcurrentReplace(t *testing.T) {
	c := NewCatalog()
	first := []exchanges.Market{{ID: "A", Symbol: "A/B"}}
	second := []exchanges.Market{{ID: "A", Symbol: "A/B"}, {ID: "C", Symbol: "C/D"}}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Store(first, nil)
			c.Store(second, nil)
		}()
		go func() {
			defer wg.Done()
			n := len(c.Markets())
			assert.Contains(t, []int{0, 1, 2}, n)
		}()
	}
	wg.Wait()
	assert.Len(t, c.Markets(), 2)
}

func TestBuildIsDeterministic(t *testing.T) {
	build := func() []string {
		var out []string
		for _, parts := range []Parts{{Base: "BTC", Quote: "USDT"}, {Base: "BTC", Quote: "USD", Settle: "USD"}} {
			out = append(out, Symbol(parts))
		}
		return out
	}
	assert.Equal(t, build(), build())
}

func TestTickHelpers(t *testing.T) {
	places := int32(4)
	assert.Equal(t, "0.5", TickOrDecimals("0.5", &places).String())
	assert.Equal(t, "0.0001", TickOrDecimals("", &places).String())
	assert.True(t, TickOrDecimals("", nil).IsZero())
	assert.Equal(t, "0.001", TickFromMinimum("0.001").String())
}

type memoryStore struct {
	markets []exchanges.Market
	saved   int
}

func (s *memoryStore) SaveCatalog(_ context.Context, _ string, markets []exchanges.Market, _ []exchanges.Currency) error {
	s.markets = markets
	s.saved++
	return nil
}

func (s *memoryStore) LoadCatalog(context.Context, string) ([]exchanges.Market, []exchanges.Currency, error) {
	return s.markets, nil, nil
}

func TestLoad(t *testing.T) {
	calls, stored := 0, 0
	store := &memoryStore{}
	src := Source{
		OnStore: func([]exchanges.Market) { stored++ },
		Venue: "venue",
		Cache: NewCatalog(),
		Store: store,
		FetchMarkets: func(context.Context) ([]exchanges.Market, error) {
			calls++
			return []exchanges.Market{{ID: "X_Y", Symbol: "X/Y"}, {ID: "XY", Symbol: "X/Y"}}, nil
		},
		FetchCurrencies: func(context.Context) ([]exchanges.Currency, error) {
			return nil, exchanges.NewError("venue", exchanges.KindPermissionDenied, "sub-account")
		},
	}

	cache, err := Load(context.Background(), src, false)
	require.NoError(t, err)
	assert.Len(t, cache.Markets(), 1)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, store.saved)

	_, err = Load(context.Background(), src, false)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "populated cache is reused")
	assert.Equal(t, 1, stored)

	src.Cache = NewCatalog()
	_, err = Load(context.Background(), src, false)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "persisted snapshot is reused")
	assert.Equal(t, 2, stored)

	_, err = Load(context.Background(), src, true)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 3, stored)
}

func TestLoadPropagatesMarketErrors(t *testing.T) {
	src := Source{
		Venue: "venue",
		Cache: NewCatalog(),
		FetchMarkets: func(context.Context) ([]exchanges.Market, error) {
			return nil, exchanges.ErrExchangeNotAvailable
		},
	}
	_, err := Load(context.Background(), src, false)
	assert.ErrorIs(t, err, exchanges.ErrExchangeNotAvailable)
}
