package exchanges

import (
	"fmt"
	"net/http"
	"strings"

	"tradegate/pkg/errors"
)

// Kind is a shared error category every venue error is mapped onto.
type Kind string

const (
	KindExchangeError        Kind = "ExchangeError"
	KindAuthentication       Kind = "AuthenticationError"
	KindPermissionDenied     Kind = "PermissionDenied"
	KindAccountNotEnabled    Kind = "AccountNotEnabled"
	KindInvalidNonce         Kind = "InvalidNonce"
	KindBadRequest           Kind = "BadRequest"
	KindBadSymbol            Kind = "BadSymbol"
	KindArgumentsRequired    Kind = "ArgumentsRequired"
	KindInvalidOrder         Kind = "InvalidOrder"
	KindOrderNotFound        Kind = "OrderNotFound"
	KindInsufficientFunds    Kind = "InsufficientFunds"
	KindInvalidAddress       Kind = "InvalidAddress"
	KindNotSupported         Kind = "NotSupported"
	KindOperationFailed      Kind = "OperationFailed"
	KindOperationRejected    Kind = "OperationRejected"
	KindOnMaintenance        Kind = "OnMaintenance"
	KindExchangeNotAvailable Kind = "ExchangeNotAvailable"
	KindDDoSProtection       Kind = "DDoSProtection"
	KindRateLimitExceeded    Kind = "RateLimitExceeded"
	KindRequestTimeout       Kind = "RequestTimeout"
	KindNetworkError         Kind = "NetworkError"
)

var parentKinds = map[Kind]Kind{
	KindAuthentication:       KindExchangeError,
	KindPermissionDenied:     KindAuthentication,
	KindAccountNotEnabled:    KindPermissionDenied,
	KindBadRequest:           KindExchangeError,
	KindBadSymbol:            KindBadRequest,
	KindArgumentsRequired:    KindExchangeError,
	KindInvalidOrder:         KindExchangeError,
	KindOrderNotFound:        KindInvalidOrder,
	KindInsufficientFunds:    KindExchangeError,
	KindInvalidAddress:       KindExchangeError,
	KindNotSupported:         KindExchangeError,
	KindOperationRejected:    KindOperationFailed,
	KindOperationFailed:      KindExchangeError,
	KindExchangeNotAvailable: KindNetworkError,
	KindOnMaintenance:        KindExchangeNotAvailable,
	KindDDoSProtection:       KindNetworkError,
	KindRateLimitExceeded:    KindDDoSProtection,
	KindRequestTimeout:       KindNetworkError,
	KindInvalidNonce:         KindNetworkError,
}

// IsA reports whether k equals ancestor or descends from it.
func (k Kind) IsA(ancestor Kind) bool {
	for cur := k; cur != ""; cur = parentKinds[cur] {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Error is the error type returned by every venue adapter.
type Error struct {
	Kind     Kind
	Exchange string
	Code     string
	Message  string
	Body     string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Exchange != "" {
		b.WriteString(e.Exchange)
		b.WriteByte(' ')
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Body != "" {
		b.WriteString(" ")
		b.WriteString(e.Body)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels: errors.Is(err, ErrInvalidOrder) holds for an
// OrderNotFound error because OrderNotFound is an InvalidOrder.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.sentinel() {
		return false
	}
	return e.Kind.IsA(t.Kind)
}

func (e *Error) sentinel() bool {
	return e.Exchange == "" && e.Code == "" && e.Message == "" && e.Body == "" && e.Err == nil
}

var (
	ErrExchange             = &Error{Kind: KindExchangeError}
	ErrAuthentication       = &Error{Kind: KindAuthentication}
	ErrPermissionDenied     = &Error{Kind: KindPermissionDenied}
	ErrAccountNotEnabled    = &Error{Kind: KindAccountNotEnabled}
	ErrInvalidNonce         = &Error{Kind: KindInvalidNonce}
	ErrBadRequest           = &Error{Kind: KindBadRequest}
	ErrBadSymbol            = &Error{Kind: KindBadSymbol}
	ErrArgumentsRequired    = &Error{Kind: KindArgumentsRequired}
	ErrInvalidOrder         = &Error{Kind: KindInvalidOrder}
	ErrOrderNotFound        = &Error{Kind: KindOrderNotFound}
	ErrInsufficientFunds    = &Error{Kind: KindInsufficientFunds}
	ErrInvalidAddress       = &Error{Kind: KindInvalidAddress}
	ErrNotSupported         = &Error{Kind: KindNotSupported}
	ErrOperationFailed      = &Error{Kind: KindOperationFailed}
	ErrOperationRejected    = &Error{Kind: KindOperationRejected}
	ErrOnMaintenance        = &Error{Kind: KindOnMaintenance}
	ErrExchangeNotAvailable = &Error{Kind: KindExchangeNotAvailable}
	ErrDDoSProtection       = &Error{Kind: KindDDoSProtection}
	ErrRateLimited          = &Error{Kind: KindRateLimitExceeded}
	ErrRequestTimeout       = &Error{Kind: KindRequestTimeout}
	ErrNetwork              = &Error{Kind: KindNetworkError}
)

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NewError builds a venue error of the given kind.
func NewError(exchange string, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Exchange: exchange, Message: fmt.Sprintf(format, args...)}
}

// NotSupported reports an operation the venue has no endpoint for.
func NotSupported(exchange, operation string) *Error {
	return NewError(exchange, KindNotSupported, "%s() is not supported", operation)
}

// BroadRule maps a message substring to a kind.
type BroadRule struct {
	Substring string
	Kind      Kind
}

// Classifier maps raw venue errors onto kinds: exact code table first,
// then the ordered substring table, then the HTTP status table.
type Classifier struct {
	Exchange string
	Exact    map[string]Kind
	Broad    []BroadRule
	HTTP     map[int]Kind
}

// DefaultHTTPKinds covers statuses that mean the same thing on every venue.
var DefaultHTTPKinds = map[int]Kind{
	http.StatusUnauthorized:        KindAuthentication,
	http.StatusForbidden:           KindPermissionDenied,
	http.StatusRequestTimeout:      KindRequestTimeout,
	http.StatusTeapot:              KindDDoSProtection,
	http.StatusTooManyRequests:     KindRateLimitExceeded,
	http.StatusInternalServerError: KindExchangeNotAvailable,
	http.StatusBadGateway:          KindExchangeNotAvailable,
	http.StatusServiceUnavailable:  KindExchangeNotAvailable,
	http.StatusGatewayTimeout:      KindRequestTimeout,
}

// Classify returns the kind for a raw code, message and HTTP status.
// Status 0 skips the HTTP table.
func (c Classifier) Classify(code, message string, status int) Kind {
	if code != "" {
		if kind, ok := c.Exact[code]; ok {
			return kind
		}
	}
	if message != "" {
		if kind, ok := c.Exact[message]; ok {
			return kind
		}
		lower := strings.ToLower(message)
		for _, rule := range c.Broad {
			if strings.Contains(lower, strings.ToLower(rule.Substring)) {
				return rule.Kind
			}
		}
	}
	if status >= http.StatusBadRequest {
		table := c.HTTP
		if table == nil {
			table = DefaultHTTPKinds
		}
		if kind, ok := table[status]; ok {
			return kind
		}
	}
	return KindExchangeError
}

// Error classifies and wraps a venue failure, keeping the raw body verbatim.
func (c Classifier) Error(code, message string, status int, body []byte) *Error {
	return &Error{
		Kind:     c.Classify(code, message, status),
		Exchange: c.Exchange,
		Code:     code,
		Message:  message,
		Body:     string(body),
	}
}

func invalidMarket(m Market, reason string) error {
	return errors.Wrapf(errors.ErrInvalidInput, "market %q: %s", m.Symbol, reason)
}
