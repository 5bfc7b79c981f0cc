// Command tradegate calls one unified exchange operation and prints the
// normalized result as JSON.
//
//	tradegate -exchange bybit -symbol BTC/USDT ticker
//	tradegate -exchange binance -symbol ETH/USDT:USDT -side buy -type limit -amount 0.1 -price 2500 create-order
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"

	"tradegate/internal/adapters/config"
	"tradegate/internal/adapters/credentials"
	"tradegate/internal/adapters/errors/noop"
	"tradegate/internal/adapters/errors/sentry"
	"tradegate/internal/adapters/exchangefactory"
	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/redis"
	"tradegate/internal/metrics"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

func main() {
	os.Exit(cli())
}

func cli() int {
	var in input
	flag.StringVar(&in.Exchange, "exchange", "", "venue id (see the exchanges operation)")
	flag.StringVar(&in.Symbol, "symbol", "", "unified symbol, e.g. BTC/USDT or BTC/USDT:USDT")
	flag.StringVar(&in.Symbols, "symbols", "", "comma separated unified symbols")
	flag.StringVar(&in.Code, "code", "", "currency code")
	flag.StringVar(&in.ID, "id", "", "order id; comma separated for cancel-orders")
	flag.StringVar(&in.Timeframe, "timeframe", "1h", "candle timeframe")
	flag.IntVar(&in.Limit, "limit", 0, "maximum number of records")
	flag.DurationVar(&in.Since, "since", 0, "only records newer than this duration ago")
	flag.StringVar(&in.Side, "side", "", "buy or sell")
	flag.StringVar(&in.Type, "type", "limit", "order type")
	flag.StringVar(&in.Amount, "amount", "", "order amount in base currency")
	flag.StringVar(&in.Price, "price", "", "limit price")
	flag.StringVar(&in.TriggerPrice, "trigger", "", "trigger price")
	flag.StringVar(&in.StopLoss, "stop-loss", "", "stop loss trigger price")
	flag.StringVar(&in.TakeProfit, "take-profit", "", "take profit trigger price")
	flag.StringVar(&in.Cost, "cost", "", "quote amount for market buys")
	flag.StringVar(&in.TimeInForce, "tif", "", "GTC, IOC, FOK or PO")
	flag.BoolVar(&in.PostOnly, "post-only", false, "maker only")
	flag.BoolVar(&in.ReduceOnly, "reduce-only", false, "only reduce a position")
	flag.StringVar(&in.MarginMode, "margin-mode", "", "cross or isolated")
	flag.StringVar(&in.Params, "params", "", "venue specific parameters as a JSON object")
	flag.BoolVar(&in.Reload, "reload", false, "ignore cached market catalogs")
	watch := flag.Duration("watch", 0, "repeat the operation at this interval until interrupted")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		return 2
	}
	in.Operation = flag.Arg(0)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Enabled {
		serveMetrics(cfg.Metrics.Addr, log)
	}

	factory, closeStore, err := initFactory(ctx, cfg, log)
	if err != nil {
		log.Errorw("failed to initialize exchanges", "error", err)
		return 1
	}
	defer closeStore()

	if *watch > 0 && in.Operation == "order" {
		in.tracker = exchanges.NewOrderTracker()
	}

	failed := false
	for {
		if err := run(ctx, factory, in, os.Stdout, os.Stderr); err != nil {
			failed = true
			reportFailure(ctx, log, in, err)
		}
		if *watch <= 0 || in.finished() || !sleep(ctx, *watch) {
			break
		}
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer flushCancel()
	if err := errorTracker.Flush(flushCtx); err != nil {
		log.Warnf("Failed to flush error tracker: %v", err)
	}
	if failed {
		return 1
	}
	return 0
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: tradegate [flags] <operation>\n\noperations:\n")
	for _, op := range operationNames() {
		fmt.Fprintf(os.Stderr, "  %s\n", op)
	}
	fmt.Fprintf(os.Stderr, "\nflags:\n")
	flag.PrintDefaults()
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Debug("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Debug("Error tracking initialized (Sentry)")
	return tracker
}

// initFactory wires credentials, the optional redis catalog store and the
// exchange factory.
func initFactory(ctx context.Context, cfg *config.Config, log *logger.Logger) (*exchangefactory.Factory, func(), error) {
	creds, err := credentials.FromEnv(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []exchangefactory.Option{exchangefactory.WithLogger(log)}
	closeStore := func() {}
	if cfg.Redis.Enabled() {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warnw("redis unavailable, catalogs will not be persisted", "error", err)
		} else {
			opts = append(opts, exchangefactory.WithMarketStore(redis.NewMarketStore(client, cfg.Redis.TTL)))
			closeStore = func() { _ = client.Close() }
		}
	}

	return exchangefactory.New(cfg, creds, opts...), closeStore, nil
}

func serveMetrics(addr string, log *logger.Logger) {
	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnw("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	log.Infow("serving metrics", "addr", addr)
}

// reportFailure prints err and sends it to the error tracker through the
// logger.
func reportFailure(ctx context.Context, log *logger.Logger, in input, err error) {
	var exErr *exchanges.Error
	if errors.As(err, &exErr) {
		out, _ := json.Marshal(map[string]string{
			"exchange": exErr.Exchange,
			"kind":     string(exErr.Kind),
			"code":     exErr.Code,
			"message":  exErr.Message,
		})
		fmt.Fprintln(os.Stderr, string(out))
	}
	log.ErrorWithContext(ctx, err, map[string]string{"exchange": in.Exchange, "operation": in.Operation})
}
