package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordExchangeAPICall(t *testing.T) {
	Init()
	Init()

	RecordExchangeAPICall("metrics-test", "public/get-tickers", 20*time.Millisecond, 200)
	RecordExchangeAPICall("metrics-test", "public/get-tickers", 20*time.Millisecond, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(ExchangeAPICalls.WithLabelValues("metrics-test", "public/get-tickers", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ExchangeAPICalls.WithLabelValues("metrics-test", "public/get-tickers", "error")))
}

func TestRecordCatalog(t *testing.T) {
	RecordCatalog("metrics-test", "venue", 12, 3)
	RecordExchangeError("metrics-test", "InvalidOrder")

	assert.Equal(t, 12.0, testutil.ToFloat64(CatalogMarkets.WithLabelValues("metrics-test")))
	assert.Equal(t, 3.0, testutil.ToFloat64(CatalogCurrencies.WithLabelValues("metrics-test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(CatalogLoads.WithLabelValues("metrics-test", "venue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ExchangeAPIErrors.WithLabelValues("metrics-test", "InvalidOrder")))
}
