package redis

import (
	"context"
	"time"

	"tradegate/internal/adapters/exchanges"
	"tradegate/pkg/errors"
)

const catalogPrefix = "tradegate:catalog:"

type snapshot struct {
	Markets    []exchanges.Market   `json:"markets"`
	Currencies []exchanges.Currency `json:"currencies"`
	SavedAt    time.Time            `json:"savedAt"`
}

// MarketStore persists venue catalogs as one JSON document per venue.
type MarketStore struct {
	client *Client
	ttl    time.Duration
}

var _ exchanges.MarketStore = (*MarketStore)(nil)

// NewMarketStore keeps snapshots for ttl; zero keeps them until replaced.
func NewMarketStore(client *Client, ttl time.Duration) *MarketStore {
	return &MarketStore{client: client, ttl: ttl}
}

func catalogKey(venue string) string {
	return catalogPrefix + venue
}

// SaveCatalog implements exchanges.MarketStore.
func (s *MarketStore) SaveCatalog(ctx context.Context, venue string, markets []exchanges.Market, currencies []exchanges.Currency) error {
	snap := snapshot{Markets: markets, Currencies: currencies, SavedAt: time.Now().UTC()}
	if err := s.client.Set(ctx, catalogKey(venue), snap, s.ttl); err != nil {
		return errors.Wrapf(err, "save %s catalog", venue)
	}
	return nil
}

// LoadCatalog implements exchanges.MarketStore. A venue without a snapshot
// returns empty lists and no error.
func (s *MarketStore) LoadCatalog(ctx context.Context, venue string) ([]exchanges.Market, []exchanges.Currency, error) {
	var snap snapshot
	err := s.client.Get(ctx, catalogKey(venue), &snap)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load %s catalog", venue)
	}
	return snap.Markets, snap.Currencies, nil
}

// Invalidate drops the snapshot of venue.
func (s *MarketStore) Invalidate(ctx context.Context, venue string) error {
	return s.client.Delete(ctx, catalogKey(venue))
}
