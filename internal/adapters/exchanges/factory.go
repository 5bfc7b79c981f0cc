package exchanges

import (
	"context"
	"net/http"
)

// Request is one outbound HTTP call prepared by a venue adapter.
type Request struct {
	Method   string
	URL      string
	Headers  map[string]string
	Body     []byte
	Endpoint string // metrics label, e.g. "public/get-book"
	Bucket   string // extra rate limiter bucket, e.g. "order"; the global bucket always applies
	Cost     int    // tokens taken from each bucket, at least 1
}

// Response is the raw reply. Non-2xx statuses are returned, not raised, so
// the venue classifier can inspect the body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport executes HTTP calls on behalf of the adapters.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// MarketCache is the read side of a venue catalog plus a whole-snapshot replace.
type MarketCache interface {
	Market(symbolOrID string) (Market, bool)
	Currency(code string) (Currency, bool)
	Markets() []Market
	Currencies() []Currency
	Store(markets []Market, currencies []Currency)
}

// MarketStore persists catalogs between processes.
type MarketStore interface {
	SaveCatalog(ctx context.Context, venue string, markets []Market, currencies []Currency) error
	LoadCatalog(ctx context.Context, venue string) ([]Market, []Currency, error)
}

// Credentials authenticate private calls.
type Credentials struct {
	APIKey   string
	Secret   string
	Password string
	TwoFA    string
}

// Empty reports whether no key material is present.
func (c Credentials) Empty() bool {
	return c.APIKey == "" && c.Secret == ""
}

// CredentialStore supplies credentials per venue. Adapters never persist them.
type CredentialStore interface {
	Credentials(ctx context.Context, venue string) (Credentials, error)
}

// Clock supplies millisecond timestamps for nonces; values never decrease.
type Clock interface {
	Milliseconds() int64
}

// Factory builds configured venue adapters.
type Factory interface {
	GetClient(ctx context.Context, venue string) (Exchange, error)
	ListExchanges() []string
}
