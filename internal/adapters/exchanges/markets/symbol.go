// Package markets builds canonical market catalogs from venue instrument lists.
package markets

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/exchanges"
	"tradegate/pkg/errors"
)

// expiryLayout is the YYMMDD suffix used in canonical contract symbols.
const expiryLayout = "060102"

// CommonCurrencies maps venue aliases onto canonical codes for every venue.
var CommonCurrencies = map[string]string{
	"XBT":             "BTC",
	"BCC":             "BCH",
	"BCHSV":           "BSV",
	"USD_STABLE_COIN": "USDC",
}

// CurrencyCode normalizes a venue currency id. Venue overrides win over the
// common table; unknown codes are upper-cased and returned.
func CurrencyCode(id string, overrides map[string]string) string {
	code := strings.ToUpper(strings.TrimSpace(id))
	if v, ok := overrides[code]; ok {
		return v
	}
	if v, ok := CommonCurrencies[code]; ok {
		return v
	}
	return code
}

// Parts describes the parts of a canonical symbol.
type Parts struct {
	Base       string
	Quote      string
	Settle     string
	Expiry     time.Time
	Strike     decimal.Decimal
	OptionType string // "call" or "put"
}

// Symbol synthesizes BASE/QUOTE[:SETTLE][-YYMMDD[-STRIKE-C|P]].
func Symbol(s Parts) string {
	var b strings.Builder
	b.WriteString(s.Base)
	b.WriteByte('/')
	b.WriteString(s.Quote)
	if s.Settle == "" {
		return b.String()
	}
	b.WriteByte(':')
	b.WriteString(s.Settle)
	if s.Expiry.IsZero() {
		return b.String()
	}
	b.WriteByte('-')
	b.WriteString(s.Expiry.UTC().Format(expiryLayout))
	if s.OptionType == "" {
		return b.String()
	}
	b.WriteByte('-')
	b.WriteString(s.Strike.String())
	b.WriteByte('-')
	if s.OptionType == "put" {
		b.WriteByte('P')
	} else {
		b.WriteByte('C')
	}
	return b.String()
}

var symbolPattern = regexp.MustCompile(`^([^/:\-]+)/([^/:\-]+)(?::([^/:\-]+)(?:-(\d{6})(?:-([0-9.]+)-([CP]))?)?)?$`)

// ParseSymbol reverse-parses a canonical symbol into its parts.
func ParseSymbol(symbol string) (Parts, error) {
	m := symbolPattern.FindStringSubmatch(symbol)
	if m == nil {
		return Parts{}, errors.Wrapf(errors.ErrInvalidInput, "not a canonical symbol: %q", symbol)
	}
	parts := Parts{Base: m[1], Quote: m[2], Settle: m[3]}
	if m[4] != "" {
		expiry, err := time.Parse(expiryLayout, m[4])
		if err != nil {
			return Parts{}, errors.Wrapf(errors.ErrInvalidInput, "bad expiry in %q", symbol)
		}
		parts.Expiry = expiry
	}
	if m[5] != "" {
		strike, err := decimal.NewFromString(m[5])
		if err != nil {
			return Parts{}, errors.Wrapf(errors.ErrInvalidInput, "bad strike in %q", symbol)
		}
		parts.Strike = strike
		parts.OptionType = "call"
		if m[6] == "P" {
			parts.OptionType = "put"
		}
	}
	return parts, nil
}

// Kind returns the market type implied by the parts.
func (s Parts) Kind() exchanges.MarketType {
	switch {
	case s.OptionType != "":
		return exchanges.MarketTypeOption
	case !s.Expiry.IsZero():
		return exchanges.MarketTypeFuture
	case s.Settle != "":
		return exchanges.MarketTypeSwap
	default:
		return exchanges.MarketTypeSpot
	}
}

// Expiry returns a contract expiry at the given UTC hour of the expiry day.
func Expiry(day time.Time, hour int) time.Time {
	y, m, d := day.UTC().Date()
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

// ExpiredMarket synthesizes a delisted contract from its canonical symbol.
// idFunc renders the venue id; expiryHour is the venue's settlement hour (UTC).
func ExpiredMarket(symbol string, expiryHour int, idFunc func(Parts) string) (exchanges.Market, error) {
	parts, err := ParseSymbol(symbol)
	if err != nil {
		return exchanges.Market{}, err
	}
	kind := parts.Kind()
	if kind != exchanges.MarketTypeOption && kind != exchanges.MarketTypeFuture {
		return exchanges.Market{}, errors.Wrapf(errors.ErrInvalidInput, "%q is not a dated contract", symbol)
	}
	expiry := Expiry(parts.Expiry, expiryHour)
	m := exchanges.Market{
		ID:             idFunc(parts),
		Symbol:         Symbol(parts),
		Base:           parts.Base,
		Quote:          parts.Quote,
		Settle:         parts.Settle,
		Type:           kind,
		Future:         kind == exchanges.MarketTypeFuture,
		Option:         kind == exchanges.MarketTypeOption,
		Contract:       true,
		Linear:         parts.Settle == parts.Quote,
		Inverse:        parts.Settle != parts.Quote,
		Active:         false,
		ContractSize:   decimal.NewFromInt(1),
		Expiry:         expiry,
		ExpiryDatetime: expiry.Format(time.RFC3339),
		Strike:         parts.Strike,
		OptionType:     parts.OptionType,
	}
	return m, nil
}

// Placeholder synthesizes a market for a venue id missing from the catalog.
// When delimiter splits the id into two parts they become base and quote.
func Placeholder(id, delimiter string, aliases map[string]string) exchanges.Market {
	m := exchanges.Market{ID: id, Symbol: id, Type: exchanges.MarketTypeSpot, Spot: true}
	if delimiter == "" {
		return m
	}
	parts := strings.Split(id, delimiter)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return m
	}
	m.BaseID, m.QuoteID = parts[0], parts[1]
	m.Base = CurrencyCode(parts[0], aliases)
	m.Quote = CurrencyCode(parts[1], aliases)
	m.Symbol = Symbol(Parts{Base: m.Base, Quote: m.Quote})
	return m
}

// Flags fills the boolean type flags of m from m.Type and the settle/quote relation.
func Flags(m *exchanges.Market) {
	m.Spot = m.Type == exchanges.MarketTypeSpot
	m.Swap = m.Type == exchanges.MarketTypeSwap
	m.Future = m.Type == exchanges.MarketTypeFuture
	m.Option = m.Type == exchanges.MarketTypeOption
	m.Contract = !m.Spot
	if m.Contract {
		m.Linear = m.Settle == m.Quote
		m.Inverse = !m.Linear
	} else {
		m.Linear, m.Inverse = false, false
	}
}
