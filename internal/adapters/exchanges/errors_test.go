package exchanges

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/pkg/errors"
)

func testClassifier() Classifier {
	return Classifier{
		Exchange: "venue",
		Exact: map[string]Kind{
			"20002":   KindInsufficientFunds,
			"10006":   KindRateLimitExceeded,
			"ORDER_X": KindOrderNotFound,
		},
		Broad: []BroadRule{
			{Substring: "insufficient balance", Kind: KindInsufficientFunds},
			{Substring: "invalid symbol", Kind: KindBadSymbol},
		},
	}
}

func TestClassifierTwoTier(t *testing.T) {
	c := testClassifier()

	tests := []struct {
		name    string
		code    string
		message string
		status  int
		want    Kind
	}{
		{"exact code", "20002", "whatever", 0, KindInsufficientFunds},
		{"exact wins over broad", "10006", "invalid symbol", 0, KindRateLimitExceeded},
		{"exact message", "", "ORDER_X", 0, KindOrderNotFound},
		{"broad case insensitive", "999", "Account has Insufficient Balance", 0, KindInsufficientFunds},
		{"http fallback", "", "", http.StatusTooManyRequests, KindRateLimitExceeded},
		{"unknown", "424242", "something odd", http.StatusBadRequest, KindExchangeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.code, tt.message, tt.status))
		})
	}
}

func TestClassifierErrorCarriesRawBody(t *testing.T) {
	body := []byte(`{"code":20002,"message":"INSUFFICIENT_AVAILABLE_BALANCE"}`)
	err := testClassifier().Error("20002", "INSUFFICIENT_AVAILABLE_BALANCE", http.StatusBadRequest, body)

	assert.Equal(t, "venue", err.Exchange)
	assert.Equal(t, string(body), err.Body)
	assert.Contains(t, err.Error(), "venue")
	assert.Contains(t, err.Error(), string(body))
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.True(t, errors.Is(err, ErrExchange))
	assert.False(t, errors.Is(err, ErrInvalidOrder))
}

func TestKindHierarchy(t *testing.T) {
	assert.True(t, KindRateLimitExceeded.IsA(KindDDoSProtection))
	assert.True(t, KindAccountNotEnabled.IsA(KindAuthentication))
	assert.True(t, KindOrderNotFound.IsA(KindInvalidOrder))
	assert.True(t, KindOperationRejected.IsA(KindOperationFailed))
	assert.True(t, KindOnMaintenance.IsA(KindExchangeNotAvailable))
	assert.False(t, KindInvalidOrder.IsA(KindOrderNotFound))
	assert.False(t, KindRequestTimeout.IsA(KindExchangeError))
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := NewError("venue", KindPermissionDenied, "no access")
	wrapped := fmt.Errorf("fetch currencies: %w", base)

	assert.Equal(t, KindPermissionDenied, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrAuthentication))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestNotSupported(t *testing.T) {
	err := NotSupported("venue", "transfer")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotSupported))
	assert.Contains(t, err.Error(), "transfer()")
}
