package bybit

import (
	"net/http"

	"tradegate/internal/adapters/exchanges"
)

var exactKinds = map[string]exchanges.Kind{
	"10001":  exchanges.KindBadRequest,
	"10002":  exchanges.KindInvalidNonce, // timestamp outside recv_window
	"10003":  exchanges.KindAuthentication,
	"10004":  exchanges.KindAuthentication, // signature mismatch
	"10005":  exchanges.KindPermissionDenied,
	"10006":  exchanges.KindRateLimitExceeded,
	"10007":  exchanges.KindAuthentication,
	"10009":  exchanges.KindAuthentication, // ip banned
	"10010":  exchanges.KindPermissionDenied,
	"10016":  exchanges.KindExchangeNotAvailable,
	"10017":  exchanges.KindBadRequest,
	"10018":  exchanges.KindRateLimitExceeded,
	"10020":  exchanges.KindNotSupported,
	"10024":  exchanges.KindAccountNotEnabled,
	"10027":  exchanges.KindPermissionDenied,
	"10029":  exchanges.KindBadSymbol,
	"110001": exchanges.KindOrderNotFound,
	"110003": exchanges.KindInvalidOrder, // price out of range
	"110004": exchanges.KindInsufficientFunds,
	"110007": exchanges.KindInsufficientFunds,
	"110008": exchanges.KindInvalidOrder, // already finished
	"110012": exchanges.KindInsufficientFunds,
	"110017": exchanges.KindInvalidOrder, // reduce-only would increase
	"110020": exchanges.KindInvalidOrder,
	"110025": exchanges.KindBadRequest,
	"110026": exchanges.KindBadRequest, // margin mode unchanged
	"110043": exchanges.KindBadRequest, // leverage unchanged
	"110094": exchanges.KindInvalidOrder, // below minimum notional
	"170121": exchanges.KindBadSymbol,
	"170130": exchanges.KindBadRequest,
	"170131": exchanges.KindInsufficientFunds,
	"170136": exchanges.KindInvalidOrder,
	"170137": exchanges.KindInvalidOrder,
	"170213": exchanges.KindOrderNotFound,
	"170005": exchanges.KindRateLimitExceeded,

	"Too many visits!": exchanges.KindRateLimitExceeded,
}

var broadRules = []exchanges.BroadRule{
	{Substring: "maintenance", Kind: exchanges.KindOnMaintenance},
	{Substring: "too many visits", Kind: exchanges.KindRateLimitExceeded},
	{Substring: "order not exists", Kind: exchanges.KindOrderNotFound},
	{Substring: "insufficient", Kind: exchanges.KindInsufficientFunds},
	{Substring: "invalid symbol", Kind: exchanges.KindBadSymbol},
	{Substring: "api key is invalid", Kind: exchanges.KindAuthentication},
}

// The venue answers 403 when an IP exceeds its request budget.
var httpKinds = func() map[int]exchanges.Kind {
	out := make(map[int]exchanges.Kind, len(exchanges.DefaultHTTPKinds)+1)
	for status, kind := range exchanges.DefaultHTTPKinds {
		out[status] = kind
	}
	out[http.StatusForbidden] = exchanges.KindRateLimitExceeded
	return out
}()

var classifier = exchanges.Classifier{
	Exchange: ID,
	Exact:    exactKinds,
	Broad:    broadRules,
	HTTP:     httpKinds,
}
