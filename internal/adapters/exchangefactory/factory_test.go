package exchangefactory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/adapters/config"
	"tradegate/internal/adapters/credentials"
	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/clock"
	"tradegate/pkg/errors"
)

type failingStore struct{}

func (failingStore) Credentials(context.Context, string) (exchanges.Credentials, error) {
	return exchanges.Credentials{}, errors.ErrUnavailable
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Exchanges: []string{"bybit", "cryptocom", "binanceus", "kraken", "bybit"}}}
}

func TestListExchanges(t *testing.T) {
	f := New(testConfig(), nil)
	assert.Equal(t, []string{"bybit", "cryptocom", "binanceus"}, f.ListExchanges())

	all := New(&config.Config{}, nil)
	assert.Equal(t, Supported, all.ListExchanges())
}

func TestGetClientCachesPerVenue(t *testing.T) {
	f := New(testConfig(), nil)
	ctx := context.Background()

	first, err := f.GetClient(ctx, "bybit")
	require.NoError(t, err)
	assert.Equal(t, "bybit", first.ID())

	second, err := f.GetClient(ctx, "bybit")
	require.NoError(t, err)
	assert.Same(t, first, second)

	f.RemoveClient("bybit")
	third, err := f.GetClient(ctx, "bybit")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestGetClientConcurrent(t *testing.T) {
	f := New(testConfig(), nil)

	var wg sync.WaitGroup
	clients := make([]exchanges.Exchange, 8)
	for i := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := f.GetClient(context.Background(), "cryptocom")
			assert.NoError(t, err)
			clients[i] = c
		}()
	}
	wg.Wait()

	for _, c := range clients[1:] {
		assert.Same(t, clients[0], c)
	}
}

func TestGetClientVenueIDs(t *testing.T) {
	f := New(&config.Config{}, nil)
	for _, venue := range Supported {
		c, err := f.GetClient(context.Background(), venue)
		require.NoError(t, err, venue)
		assert.Equal(t, venue, c.ID())
	}
}

func TestGetClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *config.Config
		creds  exchanges.CredentialStore
		venue  string
		target error
	}{
		{"unknown venue", testConfig(), nil, "kraken", errors.ErrNotFound},
		{"disabled venue", testConfig(), nil, "binance", errors.ErrNotFound},
		{"credential store failure", testConfig(), failingStore{}, "bybit", errors.ErrUnavailable},
		{
			"half credentials", testConfig(),
			credentials.NewStatic(map[string]exchanges.Credentials{"bybit": {APIKey: "only-key"}}),
			"bybit", errors.ErrInvalidInput,
		},
		{
			"bad bybit category",
			&config.Config{Bybit: config.BybitConfig{Categories: []string{"option"}}},
			nil, "bybit", errors.ErrInvalidInput,
		},
		{
			"okx without passphrase", &config.Config{},
			credentials.NewStatic(map[string]exchanges.Credentials{"okx": {APIKey: "key", Secret: "secret"}}),
			"okx", errors.ErrInvalidInput,
		},
		{
			"bad binance profile",
			&config.Config{Binance: config.BinanceConfig{Profiles: []string{"options"}}},
			nil, "binance", errors.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.cfg, tt.creds)
			_, err := f.GetClient(context.Background(), tt.venue)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), err.Error())
		})
	}
}

func TestClientUsesStoredCredentials(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-BAPI-API-KEY")
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[]},"retExtInfo":{},"time":1700000000000}`))
	}))
	defer srv.Close()

	creds := credentials.NewStatic(map[string]exchanges.Credentials{"bybit": {APIKey: "key-1", Secret: "secret-1"}})
	f := New(testConfig(), creds, WithBaseURL("bybit", srv.URL), WithClock(clock.Fixed(1700000000000)))

	c, err := f.GetClient(context.Background(), "bybit")
	require.NoError(t, err)

	bal, err := c.FetchBalance(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, bal.Assets)
	assert.Equal(t, "key-1", gotKey)
}

func TestOKXClientSendsPassphrase(t *testing.T) {
	var gotKey, gotPassphrase string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("OK-ACCESS-KEY")
		gotPassphrase = r.Header.Get("OK-ACCESS-PASSPHRASE")
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{"uTime":"1700000000000","details":[]}]}`))
	}))
	defer srv.Close()

	creds := credentials.NewStatic(map[string]exchanges.Credentials{"okx": {APIKey: "key-1", Secret: "secret-1", Password: "phrase"}})
	f := New(&config.Config{}, creds, WithBaseURL("okx", srv.URL), WithClock(clock.Fixed(1700000000000)))

	c, err := f.GetClient(context.Background(), "okx")
	require.NoError(t, err)

	bal, err := c.FetchBalance(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, bal.Assets)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "phrase", gotPassphrase)
}
