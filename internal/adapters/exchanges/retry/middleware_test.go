package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/adapters/exchanges"
	"tradegate/pkg/errors"
)

type statusErr int

func (s statusErr) Error() string   { return "status" }
func (s statusErr) StatusCode() int { return int(s) }

func fast() *Middleware {
	return New(Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return exchanges.NewError("x", exchanges.KindRequestTimeout, "slow")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentErrors(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func() error {
		calls++
		return exchanges.NewError("x", exchanges.KindInsufficientFunds, "broke")
	})
	assert.ErrorIs(t, err, exchanges.ErrInsufficientFunds)
	assert.Equal(t, 1, calls)
}

func TestDoWithResultKeepsLastValue(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fast(), func() (int, error) {
		calls++
		return calls, statusErr(503)
	})
	require.Error(t, err)
	assert.Equal(t, 3, got)
	var se statusErr
	assert.True(t, errors.As(err, &se))
}

func TestDisabledRetries(t *testing.T) {
	calls := 0
	err := New(Config{MaxRetries: -1}).Do(context.Background(), func() error {
		calls++
		return statusErr(500)
	})
	assert.Equal(t, statusErr(500), err)
	assert.Equal(t, 1, calls)
}

func TestCancelledContextStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := New(Config{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour})
	err := m.Do(ctx, func() error {
		cancel()
		return statusErr(502)
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{statusErr(429), true},
		{statusErr(400), false},
		{exchanges.NewError("x", exchanges.KindRateLimitExceeded, ""), true},
		{exchanges.NewError("x", exchanges.KindOnMaintenance, ""), true},
		{exchanges.NewError("x", exchanges.KindInvalidOrder, ""), false},
		{errors.New("read: Connection Reset by peer"), true},
		{errors.New("bad"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryable(tt.err), "%v", tt.err)
	}
}

func TestDelayCapped(t *testing.T) {
	m := New(Config{InitialDelay: time.Second, MaxDelay: 3 * time.Second})
	assert.Equal(t, time.Second, m.delay(0))
	assert.Equal(t, 2*time.Second, m.delay(1))
	assert.Equal(t, 3*time.Second, m.delay(5))

	lin := New(Config{InitialDelay: time.Second, MaxDelay: time.Minute, Strategy: StrategyLinear})
	assert.Equal(t, 3*time.Second, lin.delay(2))
}
