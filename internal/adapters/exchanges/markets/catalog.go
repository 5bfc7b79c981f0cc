package markets

import (
	"sync/atomic"

	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
	"tradegate/pkg/precise"
)

type snapshot struct {
	markets    []exchanges.Market
	bySymbol   map[string]int
	byID       map[string]int
	currencies []exchanges.Currency
	byCode     map[string]int
}

// Catalog is an in-memory MarketCache. Store swaps in a new immutable
// snapshot, so readers never observe a partially built catalog.
type Catalog struct {
	snap atomic.Pointer[snapshot]
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	c := &Catalog{}
	c.snap.Store(&snapshot{})
	return c
}

func (c *Catalog) load() *snapshot {
	if s := c.snap.Load(); s != nil {
		return s
	}
	return &snapshot{}
}

// Store replaces the catalog contents. Markets are deduplicated by symbol.
func (c *Catalog) Store(markets []exchanges.Market, currencies []exchanges.Currency) {
	markets = Dedupe(markets)
	s := &snapshot{
		markets:    markets,
		bySymbol:   make(map[string]int, len(markets)),
		byID:       make(map[string]int, len(markets)),
		currencies: currencies,
		byCode:     make(map[string]int, len(currencies)),
	}
	for i, m := range markets {
		s.bySymbol[m.Symbol] = i
		if _, seen := s.byID[m.ID]; !seen {
			s.byID[m.ID] = i
		}
	}
	for i, cur := range currencies {
		s.byCode[cur.Code] = i
	}
	c.snap.Store(s)
}

// Market looks a market up by canonical symbol first, then by venue id.
func (c *Catalog) Market(symbolOrID string) (exchanges.Market, bool) {
	s := c.load()
	if i, ok := s.bySymbol[symbolOrID]; ok {
		return s.markets[i], true
	}
	if i, ok := s.byID[symbolOrID]; ok {
		return s.markets[i], true
	}
	return exchanges.Market{}, false
}

// Currency looks a currency up by canonical code.
func (c *Catalog) Currency(code string) (exchanges.Currency, bool) {
	s := c.load()
	if i, ok := s.byCode[code]; ok {
		return s.currencies[i], true
	}
	return exchanges.Currency{}, false
}

// Markets returns the markets in catalog order.
func (c *Catalog) Markets() []exchanges.Market {
	return append([]exchanges.Market(nil), c.load().markets...)
}

// Currencies returns the currencies in catalog order.
func (c *Catalog) Currencies() []exchanges.Currency {
	return append([]exchanges.Currency(nil), c.load().currencies...)
}

// Dedupe drops markets whose symbol was already seen; the first wins.
func Dedupe(list []exchanges.Market) []exchanges.Market {
	seen := make(map[string]struct{}, len(list))
	out := make([]exchanges.Market, 0, len(list))
	for _, m := range list {
		if _, dup := seen[m.Symbol]; dup {
			continue
		}
		seen[m.Symbol] = struct{}{}
		out = append(out, m)
	}
	return out
}

// TickOrDecimals picks a tick size from an explicit tick field, falling back
// to a decimal-place count. Returns zero when neither is usable.
func TickOrDecimals(tick string, places *int32) decimal.Decimal {
	if t, err := precise.Parse(tick); err == nil && t.IsPositive() {
		return t
	}
	if places != nil && *places >= 0 {
		return precise.DecimalsToTick(*places)
	}
	return decimal.Zero
}

// TickFromMinimum derives a tick from the decimal places of a minimum
// quantity or price field ("0.0010" -> 0.0001).
func TickFromMinimum(min string) decimal.Decimal {
	t, err := precise.TickFromString(min)
	if err != nil {
		return decimal.Zero
	}
	return t
}
