package binance

import (
	"tradegate/internal/adapters/exchanges"
	"tradegate/internal/adapters/exchanges/markets"
	"tradegate/pkg/errors"
)

// API families.
const (
	ProfileSpot  = "spot"
	ProfileUSDM  = "usdm"
	ProfileCOINM = "coinm"

	// profileWallet is the /sapi family on the spot host; it is never
	// listed in Config.Profiles.
	profileWallet = "sapi"
)

// Profile is one Binance API family: its host, path prefix and the
// order vocabulary it speaks.
type Profile struct {
	Name        string
	Host        string
	TestnetHost string
	USHost      string
	// Prefix is the versioned path root, e.g. /api/v3.
	Prefix string
	// Account is the root of the balance and position endpoints, which
	// USD-M serves from v2.
	Account  string
	Contract bool
	Inverse  bool

	// Order type names; the futures families name their stops differently.
	StopMarket       string
	StopLimit        string
	TakeProfitMarket string
	TakeProfitLimit  string
	// LimitMaker replaces LIMIT for post-only orders when set; otherwise
	// post-only is expressed as timeInForce GTX.
	LimitMaker string
}

var (
	spotProfile = Profile{
		Name:             ProfileSpot,
		Host:             "https://api.binance.com",
		TestnetHost:      "https://testnet.binance.vision",
		USHost:           "https://api.binance.us",
		Prefix:           "/api/v3",
		Account:          "/api/v3",
		StopMarket:       "STOP_LOSS",
		StopLimit:        "STOP_LOSS_LIMIT",
		TakeProfitMarket: "TAKE_PROFIT",
		TakeProfitLimit:  "TAKE_PROFIT_LIMIT",
		LimitMaker:       "LIMIT_MAKER",
	}
	usdmProfile = Profile{
		Name:             ProfileUSDM,
		Host:             "https://fapi.binance.com",
		TestnetHost:      "https://testnet.binancefuture.com",
		Prefix:           "/fapi/v1",
		Account:          "/fapi/v2",
		Contract:         true,
		StopMarket:       "STOP_MARKET",
		StopLimit:        "STOP",
		TakeProfitMarket: "TAKE_PROFIT_MARKET",
		TakeProfitLimit:  "TAKE_PROFIT",
	}
	coinmProfile = Profile{
		Name:             ProfileCOINM,
		Host:             "https://dapi.binance.com",
		TestnetHost:      "https://testnet.binancefuture.com",
		Prefix:           "/dapi/v1",
		Account:          "/dapi/v1",
		Contract:         true,
		Inverse:          true,
		StopMarket:       "STOP_MARKET",
		StopLimit:        "STOP",
		TakeProfitMarket: "TAKE_PROFIT_MARKET",
		TakeProfitLimit:  "TAKE_PROFIT",
	}
	walletProfile = Profile{
		Name:        profileWallet,
		Host:        "https://api.binance.com",
		TestnetHost: "https://testnet.binance.vision",
		USHost:      "https://api.binance.us",
		Prefix:      "/sapi/v1",
	}
)

func resolveProfiles(venue string, names []string) ([]Profile, error) {
	all := []Profile{spotProfile, usdmProfile, coinmProfile}
	if venue == IDUS {
		all = all[:1]
	}
	if len(names) == 0 {
		return all, nil
	}
	out := make([]Profile, 0, len(names))
	for _, name := range names {
		found := false
		for _, p := range all {
			if p.Name == name {
				out = append(out, p)
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "%s does not offer the %q profile", venue, name)
		}
	}
	return out, nil
}

// profileOf returns the family a market trades on.
func profileOf(m exchanges.Market) string {
	switch {
	case !m.Contract:
		return ProfileSpot
	case m.Inverse:
		return ProfileCOINM
	default:
		return ProfileUSDM
	}
}

// orderType renders a canonical type for the profile.
func (p Profile) orderType(t exchanges.OrderType, postOnly bool) string {
	switch t {
	case exchanges.OrderTypeMarket:
		return "MARKET"
	case exchanges.OrderTypeLimit:
		if postOnly && p.LimitMaker != "" {
			return p.LimitMaker
		}
		return "LIMIT"
	case exchanges.OrderTypeStopMarket:
		return p.StopMarket
	case exchanges.OrderTypeStopLimit:
		return p.StopLimit
	case exchanges.OrderTypeTakeProfitMarket:
		return p.TakeProfitMarket
	case exchanges.OrderTypeTakeProfitLimit:
		return p.TakeProfitLimit
	}
	return string(t)
}

// canonicalType maps a venue type back for the profile.
func (p Profile) canonicalType(raw string) exchanges.OrderType {
	switch raw {
	case "MARKET":
		return exchanges.OrderTypeMarket
	case "LIMIT", "LIMIT_MAKER":
		return exchanges.OrderTypeLimit
	case p.StopMarket:
		return exchanges.OrderTypeStopMarket
	case p.StopLimit:
		return exchanges.OrderTypeStopLimit
	case p.TakeProfitMarket:
		return exchanges.OrderTypeTakeProfitMarket
	case p.TakeProfitLimit:
		return exchanges.OrderTypeTakeProfitLimit
	}
	return exchanges.OrderType(raw)
}

// deliveryID renders the id of a quarterly contract, BTCUSDT_240329 on
// USD-M and BTCUSD_240329 on COIN-M.
func deliveryID(s markets.Parts) string {
	return s.Base + s.Quote + "_" + s.Expiry.Format("060102")
}
