// Package sign implements the request authentication schemes used by the
// supported venues.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"net/url"
	"strconv"
	"strings"
)

func hexMAC(fn func() hash.Hash, payload, secret string) string {
	mac := hmac.New(fn, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACSHA256 returns the hex HMAC-SHA256 of payload.
func HMACSHA256(payload, secret string) string {
	return hexMAC(sha256.New, payload, secret)
}

// HMACSHA256Base64 returns the base64 HMAC-SHA256 of payload.
func HMACSHA256Base64(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// HMACSHA512 returns the hex HMAC-SHA512 of payload.
func HMACSHA512(payload, secret string) string {
	return hexMAC(sha512.New, payload, secret)
}

// Query signs query-string authenticated requests. The timestamp and,
// when positive, the receive window are appended to the query; the
// signature covers body followed by the query.
type Query struct {
	Secret     string
	RecvWindow int64
}

// Signed is the outcome of Query.Sign.
type Signed struct {
	// Query is the encoded query string without the signature.
	Query     string
	Signature string
}

// Sign appends the auth parameters to values and signs.
func (q Query) Sign(values url.Values, body string, timestampMillis int64) Signed {
	if values == nil {
		values = url.Values{}
	}
	values.Set("timestamp", strconv.FormatInt(timestampMillis, 10))
	if q.RecvWindow > 0 {
		values.Set("recvWindow", strconv.FormatInt(q.RecvWindow, 10))
	}
	encoded := values.Encode()
	return Signed{Query: encoded, Signature: HMACSHA256(body+encoded, q.Secret)}
}

// WithSignature renders the query with the signature appended last.
func (s Signed) WithSignature() string {
	if s.Query == "" {
		return "signature=" + s.Signature
	}
	return s.Query + "&signature=" + s.Signature
}

// Header signs with timestamp, key, receive window and payload concatenated;
// the result travels in request headers.
type Header struct {
	APIKey     string
	Secret     string
	RecvWindow int64
}

// Sign returns the hex signature for payload, which is the query string for
// reads and the JSON body for writes.
func (h Header) Sign(timestampMillis int64, payload string) string {
	pre := strconv.FormatInt(timestampMillis, 10) + h.APIKey + strconv.FormatInt(h.RecvWindow, 10) + payload
	return HMACSHA256(pre, h.Secret)
}

// Prehash signs timestamp, upper-cased method, request path with query and
// body concatenated. The base64 signature and the passphrase travel in
// request headers.
type Prehash struct {
	Secret string
}

// Sign returns the signature for one request.
func (p Prehash) Sign(timestamp, method, requestPath, body string) string {
	return HMACSHA256Base64(timestamp+strings.ToUpper(method)+requestPath+body, p.Secret)
}
