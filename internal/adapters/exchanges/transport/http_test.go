package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/retry"
	"tradegate/pkg/logger"
)

func newTransport(timeout time.Duration) *HTTP {
	return New("test", Config{
		Timeout:   timeout,
		UserAgent: "tradegate-test",
		GlobalRPM: 60000,
		Retry:     retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}, nil)
}

func TestDoReturnsNon2xxResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tradegate-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "v", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":10004}`))
	}))
	defer srv.Close()

	resp, err := newTransport(time.Second).Do(context.Background(), &exchanges.Request{
		Method: http.MethodGet, URL: srv.URL, Headers: map[string]string{"X-Test": "v"}, Endpoint: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"code":10004}`, string(resp.Body))
}

func TestDoRetriesReadsOnly(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := newTransport(time.Second)

	resp, err := tr.Do(context.Background(), &exchanges.Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	resp, err = tr.Do(context.Background(), &exchanges.Request{Method: http.MethodPost, URL: srv.URL, Body: []byte(`{}`), Bucket: "order"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.JSONEq(t, `{"a":1}`, string(body))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := newTransport(time.Second).Do(context.Background(), &exchanges.Request{
		Method: http.MethodPost, URL: srv.URL, Body: []byte(`{"a":1}`),
		Headers: map[string]string{"Content-Type": "application/json"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDoMapsTimeouts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	tr := New("test", Config{Timeout: 20 * time.Millisecond, Retry: retry.Config{MaxRetries: -1}}, nil)
	_, err := tr.Do(context.Background(), &exchanges.Request{Method: http.MethodPost, URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, exchanges.ErrRequestTimeout)
	assert.ErrorIs(t, err, exchanges.ErrNetwork)
}

func TestDoMapsConnectionFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	tr := New("test", Config{Timeout: time.Second, Retry: retry.Config{MaxRetries: -1}}, logger.New(zap.New(core)))
	_, err := tr.Do(context.Background(), &exchanges.Request{Method: http.MethodPost, URL: url, Endpoint: "private/create-order"})
	require.Error(t, err)
	assert.ErrorIs(t, err, exchanges.ErrNetwork)

	failed := logs.FilterMessage("request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "private/create-order", failed[0].ContextMap()["endpoint"])
}
