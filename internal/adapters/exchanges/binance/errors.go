package binance

import "tradegate/internal/adapters/exchanges"

var exactKinds = map[string]exchanges.Kind{
	"-1000": exchanges.KindExchangeNotAvailable, // UNKNOWN
	"-1001": exchanges.KindExchangeNotAvailable, // DISCONNECTED
	"-1002": exchanges.KindAuthentication,
	"-1003": exchanges.KindRateLimitExceeded,
	"-1006": exchanges.KindExchangeNotAvailable,
	"-1007": exchanges.KindRequestTimeout,
	"-1013": exchanges.KindInvalidOrder, // filter failure
	"-1014": exchanges.KindInvalidOrder, // unsupported order combination
	"-1015": exchanges.KindRateLimitExceeded,
	"-1016": exchanges.KindExchangeNotAvailable,
	"-1020": exchanges.KindBadRequest,
	"-1021": exchanges.KindInvalidNonce, // timestamp outside recvWindow
	"-1022": exchanges.KindAuthentication,
	"-1100": exchanges.KindBadRequest,
	"-1101": exchanges.KindBadRequest,
	"-1102": exchanges.KindBadRequest,
	"-1103": exchanges.KindBadRequest,
	"-1104": exchanges.KindBadRequest,
	"-1105": exchanges.KindBadRequest,
	"-1106": exchanges.KindBadRequest,
	"-1111": exchanges.KindBadRequest, // precision over the maximum
	"-1112": exchanges.KindInvalidOrder,
	"-1114": exchanges.KindBadRequest,
	"-1115": exchanges.KindBadRequest,
	"-1116": exchanges.KindBadRequest,
	"-1117": exchanges.KindBadRequest,
	"-1118": exchanges.KindBadRequest,
	"-1119": exchanges.KindBadRequest,
	"-1120": exchanges.KindBadRequest,
	"-1121": exchanges.KindBadSymbol,
	"-1125": exchanges.KindAuthentication,
	"-1127": exchanges.KindBadRequest,
	"-1128": exchanges.KindBadRequest,
	"-1130": exchanges.KindBadRequest,
	"-1131": exchanges.KindBadRequest,
	"-2008": exchanges.KindAuthentication,
	"-2010": exchanges.KindInvalidOrder, // NEW_ORDER_REJECTED
	"-2011": exchanges.KindOrderNotFound, // CANCEL_REJECTED
	"-2013": exchanges.KindOrderNotFound, // NO_SUCH_ORDER
	"-2014": exchanges.KindAuthentication,
	"-2015": exchanges.KindAuthentication,
	"-2019": exchanges.KindInsufficientFunds, // margin is insufficient
	"-2021": exchanges.KindInvalidOrder, // would immediately trigger
	"-2022": exchanges.KindInvalidOrder, // reduceOnly rejected
	"-4003": exchanges.KindInvalidOrder,
	"-4164": exchanges.KindInvalidOrder, // notional below minimum
	"-5021": exchanges.KindInvalidOrder, // FOK not filled
	"-5022": exchanges.KindInvalidOrder, // post-only would take

	"-3022": exchanges.KindAccountNotEnabled, // account trading banned
	"-4046": exchanges.KindBadRequest,        // margin type unchanged

	"Invalid symbol.":              exchanges.KindBadSymbol,
	"Account has insufficient balance for requested action.": exchanges.KindInsufficientFunds,
}

var broadRules = []exchanges.BroadRule{
	{Substring: "System is under maintenance", Kind: exchanges.KindOnMaintenance},
	{Substring: "insufficient balance", Kind: exchanges.KindInsufficientFunds},
	{Substring: "Too many requests", Kind: exchanges.KindRateLimitExceeded},
	{Substring: "Timestamp for this request", Kind: exchanges.KindInvalidNonce},
	{Substring: "API-key format invalid", Kind: exchanges.KindAuthentication},
	{Substring: "Unknown order sent", Kind: exchanges.KindOrderNotFound},
}

// classifier maps Binance error codes onto kinds for the given venue id.
func classifier(venue string) exchanges.Classifier {
	return exchanges.Classifier{
		Exchange: venue,
		Exact:    exactKinds,
		Broad:    broadRules,
		HTTP:     exchanges.DefaultHTTPKinds,
	}
}
