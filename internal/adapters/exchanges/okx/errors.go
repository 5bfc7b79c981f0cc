package okx

import (
	"tradegate/internal/adapters/exchanges"
)

var exactKinds = map[string]exchanges.Kind{
	"1":     exchanges.KindOperationFailed,
	"2":     exchanges.KindOperationFailed, // batch partially failed
	"50001": exchanges.KindExchangeNotAvailable,
	"50004": exchanges.KindRequestTimeout,
	"50005": exchanges.KindExchangeNotAvailable,
	"50008": exchanges.KindAuthentication, // user does not exist
	"50011": exchanges.KindRateLimitExceeded,
	"50013": exchanges.KindExchangeNotAvailable, // system busy
	"50014": exchanges.KindArgumentsRequired,
	"50026": exchanges.KindExchangeNotAvailable,
	"50040": exchanges.KindRateLimitExceeded,
	"50061": exchanges.KindRateLimitExceeded,
	"50100": exchanges.KindPermissionDenied, // api key frozen
	"50101": exchanges.KindAuthentication,   // key belongs to the other environment
	"50102": exchanges.KindInvalidNonce,
	"50103": exchanges.KindAuthentication,
	"50104": exchanges.KindAuthentication,
	"50105": exchanges.KindAuthentication, // wrong passphrase
	"50110": exchanges.KindPermissionDenied,
	"50111": exchanges.KindAuthentication,
	"50112": exchanges.KindInvalidNonce,
	"50113": exchanges.KindAuthentication, // signature mismatch
	"50114": exchanges.KindAuthentication,
	"50120": exchanges.KindPermissionDenied,
	"51000": exchanges.KindBadRequest,
	"51001": exchanges.KindBadSymbol,
	"51004": exchanges.KindInvalidOrder,
	"51006": exchanges.KindInvalidOrder, // price outside the limit band
	"51008": exchanges.KindInsufficientFunds,
	"51010": exchanges.KindAccountNotEnabled,
	"51011": exchanges.KindInvalidOrder, // duplicate clOrdId
	"51020": exchanges.KindInvalidOrder,
	"51024": exchanges.KindPermissionDenied,
	"51121": exchanges.KindInvalidOrder,
	"51131": exchanges.KindInsufficientFunds,
	"51400": exchanges.KindOrderNotFound,
	"51401": exchanges.KindInvalidOrder, // already canceled
	"51402": exchanges.KindInvalidOrder, // already filled
	"51503": exchanges.KindOrderNotFound,
	"51603": exchanges.KindOrderNotFound,
	"59000": exchanges.KindOperationRejected,
}

var broadRules = []exchanges.BroadRule{
	{Substring: "system maintenance", Kind: exchanges.KindOnMaintenance},
	{Substring: "too many requests", Kind: exchanges.KindRateLimitExceeded},
	{Substring: "instrument id does not exist", Kind: exchanges.KindBadSymbol},
	{Substring: "does not exist", Kind: exchanges.KindOrderNotFound},
	{Substring: "insufficient", Kind: exchanges.KindInsufficientFunds},
	{Substring: "invalid sign", Kind: exchanges.KindAuthentication},
}

var classifier = exchanges.Classifier{
	Exchange: ID,
	Exact:    exactKinds,
	Broad:    broadRules,
	HTTP:     exchanges.DefaultHTTPKinds,
}
