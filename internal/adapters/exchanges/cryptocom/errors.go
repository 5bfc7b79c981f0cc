package cryptocom

import "tradegate/internal/adapters/exchanges"

// classifier maps Crypto.com response codes onto error kinds.
var classifier = exchanges.Classifier{
	Exchange: ID,
	Exact: map[string]exchanges.Kind{
		"219":   exchanges.KindInvalidOrder,
		"314":   exchanges.KindInvalidOrder, // EXCEEDS_MAX_ORDER_SIZE
		"325":   exchanges.KindInvalidOrder, // EXCEED_DAILY_VOL_LIMIT
		"415":   exchanges.KindInvalidOrder, // BELOW_MIN_NOTIONAL
		"10001": exchanges.KindExchangeNotAvailable, // SYS_ERROR
		"10002": exchanges.KindPermissionDenied,
		"10003": exchanges.KindPermissionDenied,
		"10004": exchanges.KindBadRequest,
		"10005": exchanges.KindPermissionDenied,
		"10006": exchanges.KindDDoSProtection,
		"10007": exchanges.KindInvalidNonce,
		"10008": exchanges.KindBadRequest,
		"10009": exchanges.KindBadRequest,
		"20001": exchanges.KindBadRequest,
		"20002": exchanges.KindInsufficientFunds,
		"20005": exchanges.KindAccountNotEnabled, // ACCOUNT_NOT_FOUND
		"30003": exchanges.KindBadSymbol,
		"30004": exchanges.KindBadRequest,
		"30005": exchanges.KindBadRequest,
		"30006": exchanges.KindInvalidOrder,
		"30007": exchanges.KindInvalidOrder,
		"30008": exchanges.KindInvalidOrder,
		"30009": exchanges.KindInvalidOrder,
		"30010": exchanges.KindBadRequest,
		"30013": exchanges.KindInvalidOrder,
		"30014": exchanges.KindInvalidOrder,
		"30016": exchanges.KindInvalidOrder,
		"30017": exchanges.KindInvalidOrder,
		"30023": exchanges.KindInvalidOrder,
		"30024": exchanges.KindInvalidOrder,
		"30025": exchanges.KindInvalidOrder,
		"40001": exchanges.KindBadRequest,
		"40002": exchanges.KindBadRequest,
		"40003": exchanges.KindBadRequest,
		"40004": exchanges.KindBadRequest,
		"40005": exchanges.KindBadRequest,
		"40006": exchanges.KindBadRequest,
		"40007": exchanges.KindBadRequest,
		"40101": exchanges.KindAuthentication,
		"40102": exchanges.KindInvalidNonce,
		"40103": exchanges.KindAuthentication, // IP not whitelisted
		"40104": exchanges.KindAuthentication, // not allowed for the user tier
		"40107": exchanges.KindBadRequest,
		"40401": exchanges.KindOrderNotFound,
		"40801": exchanges.KindRequestTimeout,
		"42901": exchanges.KindRateLimitExceeded,
		"43003": exchanges.KindInvalidOrder, // FOK not filled
		"43004": exchanges.KindInvalidOrder, // IOC not filled
		"43005": exchanges.KindInvalidOrder, // POST_ONLY rejected
		"43012": exchanges.KindBadRequest,   // self trade prevention
		"50001": exchanges.KindOperationFailed, // ERR_INTERNAL

		"9010001": exchanges.KindOnMaintenance, // SYSTEM_MAINTENANCE
	},
	Broad: []exchanges.BroadRule{
		{Substring: "SYSTEM_MAINTENANCE", Kind: exchanges.KindOnMaintenance},
		{Substring: "INSUFFICIENT", Kind: exchanges.KindInsufficientFunds},
		{Substring: "ORDER_NOT_FOUND", Kind: exchanges.KindOrderNotFound},
		{Substring: "TOO_MANY_REQUESTS", Kind: exchanges.KindRateLimitExceeded},
		{Substring: "INVALID_NONCE", Kind: exchanges.KindInvalidNonce},
	},
	HTTP: exchanges.DefaultHTTPKinds,
}
