package sentry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/adapters/exchanges"
	"tradegate/pkg/errors"
)

type recordingTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (r *recordingTransport) Configure(sentry.ClientOptions) {}
func (r *recordingTransport) Flush(time.Duration) bool        { return true }
func (r *recordingTransport) Close()                          {}

func (r *recordingTransport) SendEvent(event *sentry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingTransport) last(t *testing.T) *sentry.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

func newTracker(t *testing.T) (*Tracker, *recordingTransport) {
	t.Helper()
	transport := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:       "https://public@sentry.example.com/1",
		Transport: transport,
	})
	require.NoError(t, err)
	return NewWithClient(client), transport
}

func TestCaptureErrorTagsExchangeErrors(t *testing.T) {
	tracker, transport := newTracker(t)

	err := errors.Wrap(&exchanges.Error{
		Kind:     exchanges.KindInsufficientFunds,
		Exchange: "bybit",
		Code:     "110007",
		Message:  "insufficient balance",
		Body:     `{"retCode":110007}`,
	}, "create order")

	require.NoError(t, tracker.CaptureError(context.Background(), err, map[string]string{"op": "createOrder"}))

	event := transport.last(t)
	assert.Equal(t, "bybit", event.Tags["exchange"])
	assert.Equal(t, string(exchanges.KindInsufficientFunds), event.Tags["kind"])
	assert.Equal(t, "110007", event.Tags["code"])
	assert.Equal(t, "createOrder", event.Tags["op"])
	assert.Equal(t, `{"retCode":110007}`, event.Contexts["response"]["body"])
}

func TestCaptureErrorPlain(t *testing.T) {
	tracker, transport := newTracker(t)

	require.NoError(t, tracker.CaptureError(context.Background(), errors.New("boom"), nil))

	event := transport.last(t)
	assert.NotContains(t, event.Tags, "exchange")
}

func TestCaptureMessageLevel(t *testing.T) {
	tracker, transport := newTracker(t)

	require.NoError(t, tracker.CaptureMessage(context.Background(), "catalog reloaded", errors.LevelWarning, nil))

	event := transport.last(t)
	assert.Equal(t, "catalog reloaded", event.Message)
	assert.Equal(t, sentry.LevelWarning, event.Level)
}

func TestConvertLevel(t *testing.T) {
	tests := []struct {
		in   errors.Level
		want sentry.Level
	}{
		{errors.LevelDebug, sentry.LevelDebug},
		{errors.LevelError, sentry.LevelError},
		{errors.LevelFatal, sentry.LevelFatal},
		{errors.Level("other"), sentry.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, convertLevel(tt.in), tt.in)
	}
}
