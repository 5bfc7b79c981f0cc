package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Venue HTTP metrics
	ExchangeAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_exchange_api_calls_total",
			Help: "Total number of venue API calls",
		},
		[]string{"exchange", "endpoint", "status"}, // status: HTTP code or "error"
	)

	ExchangeAPIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_exchange_api_errors_total",
			Help: "Total number of classified venue errors",
		},
		[]string{"exchange", "kind"},
	)

	ExchangeAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradegate_exchange_api_latency_seconds",
			Help:    "Venue API call latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"exchange", "endpoint"},
	)

	RateLimitWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradegate_rate_limit_wait_seconds",
			Help:    "Time spent waiting on client-side rate limiters",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
		[]string{"exchange"},
	)

	// Catalog metrics
	CatalogMarkets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradegate_catalog_markets",
			Help: "Number of markets in the loaded catalog",
		},
		[]string{"exchange"},
	)

	CatalogCurrencies = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradegate_catalog_currencies",
			Help: "Number of currencies in the loaded catalog",
		},
		[]string{"exchange"},
	)

	CatalogLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_catalog_loads_total",
			Help: "Catalog loads by source",
		},
		[]string{"exchange", "source"}, // source: cache|store|venue
	)
)

var initOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			ExchangeAPICalls,
			ExchangeAPIErrors,
			ExchangeAPILatency,
			RateLimitWait,
			CatalogMarkets,
			CatalogCurrencies,
			CatalogLoads,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordExchangeAPICall records one HTTP exchange with a venue. status is
// the HTTP code, or 0 when no response arrived.
func RecordExchangeAPICall(exchange, endpoint string, latency time.Duration, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}

	ExchangeAPICalls.WithLabelValues(exchange, endpoint, label).Inc()
	ExchangeAPILatency.WithLabelValues(exchange, endpoint).Observe(latency.Seconds())
}

// RecordExchangeError counts a classified venue error.
func RecordExchangeError(exchange, kind string) {
	ExchangeAPIErrors.WithLabelValues(exchange, kind).Inc()
}

// RecordRateLimitWait records time blocked on a limiter.
func RecordRateLimitWait(exchange string, waited time.Duration) {
	RateLimitWait.WithLabelValues(exchange).Observe(waited.Seconds())
}

// RecordCatalog records a catalog load and its size.
func RecordCatalog(exchange, source string, markets, currencies int) {
	CatalogLoads.WithLabelValues(exchange, source).Inc()
	CatalogMarkets.WithLabelValues(exchange).Set(float64(markets))
	CatalogCurrencies.WithLabelValues(exchange).Set(float64(currencies))
}
