package markets

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/metrics"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

// Source wires the collaborators LoadMarkets needs for one venue.
type Source struct {
	Venue           string
	Cache           exchanges.MarketCache
	Store           exchanges.MarketStore // optional persistence
	FetchMarkets    func(ctx context.Context) ([]exchanges.Market, error)
	FetchCurrencies func(ctx context.Context) ([]exchanges.Currency, error) // optional
	// OnStore runs after every snapshot written to Cache, whether it came
	// from Store or from the venue.
	OnStore func(markets []exchanges.Market)
	Log     *logger.Logger
}

// Load fills src.Cache. Without reload a populated cache is returned as is;
// otherwise a persisted snapshot is tried before fetching from the venue.
// Markets and currencies are fetched concurrently.
func Load(ctx context.Context, src Source, reload bool) (exchanges.MarketCache, error) {
	log := src.Log
	if log == nil {
		log = logger.NewNop()
	}

	if !reload && len(src.Cache.Markets()) > 0 {
		return src.Cache, nil
	}

	if !reload && src.Store != nil {
		markets, currencies, err := src.Store.LoadCatalog(ctx, src.Venue)
		if err != nil {
			log.Debugw("market snapshot unavailable", "venue", src.Venue, "error", err)
		} else if len(markets) > 0 {
			src.Cache.Store(markets, currencies)
			src.stored(markets)
			metrics.RecordCatalog(src.Venue, "store", len(markets), len(currencies))
			return src.Cache, nil
		}
	}

	var (
		markets    []exchanges.Market
		currencies []exchanges.Currency
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		list, err := src.FetchMarkets(ctx)
		if err != nil {
			return errors.Wrapf(err, "%s: fetch markets", src.Venue)
		}
		markets = list
		return nil
	})
	if src.FetchCurrencies != nil {
		p.Go(func(ctx context.Context) error {
			list, err := src.FetchCurrencies(ctx)
			if errors.Is(err, exchanges.ErrNotSupported) || errors.Is(err, exchanges.ErrAuthentication) {
				return nil
			}
			if err != nil {
				return errors.Wrapf(err, "%s: fetch currencies", src.Venue)
			}
			currencies = list
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	markets = Dedupe(markets)
	src.Cache.Store(markets, currencies)
	src.stored(markets)
	metrics.RecordCatalog(src.Venue, "venue", len(markets), len(currencies))

	if src.Store != nil {
		if err := src.Store.SaveCatalog(ctx, src.Venue, markets, currencies); err != nil {
			log.Warnw("failed to persist market snapshot", "venue", src.Venue, "error", err)
		}
	}

	log.Debugw("markets loaded", "venue", src.Venue, "markets", len(markets), "currencies", len(currencies))
	return src.Cache, nil
}

func (src Source) stored(markets []exchanges.Market) {
	if src.OnStore != nil {
		src.OnStore(markets)
	}
}
