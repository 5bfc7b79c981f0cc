package sign

import (
	"net/url"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMAC(t *testing.T) {
	assert.Equal(t, "88aab3ede8d3adf94d26ab90d3bafd4a2083070c3bcce9c014ee04a443847c0b", HMACSHA256("hello", "secret"))
	assert.Equal(t, "iKqz7ejTrflNJquQ07r9SiCDBww7zOnAFO4EpEOEfAs=", HMACSHA256Base64("hello", "secret"))
	assert.Equal(t, "db1595ae88a62fd151ec1cba81b98c39df82daae7b4cb9820f446d5bf02f1dcfca6683d88cab3e273f5963ab8ec469a746b5b19086371239f67d1e5f99a79440", HMACSHA512("hello", "secret"))
}

func TestParamString(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{"empty", map[string]any{}, ""},
		{"sorted scalars", map[string]any{"side": "BUY", "instrument_name": "BTC_USD", "quantity": "0.01"}, "instrument_nameBTC_USDquantity0.01sideBUY"},
		{"nested", map[string]any{
			"z":    true,
			"a":    1,
			"b":    map[string]any{"y": nil, "x": 1},
			"list": []any{map[string]any{"k": 1}, map[string]any{"k": 2}},
		}, "a1bx1ynulllistk1k2ztrue"},
		{"string list", map[string]any{"exec_inst": []string{"POST_ONLY", "SMART_POST_ONLY"}}, "exec_instPOST_ONLYSMART_POST_ONLY"},
		{"depth bound", map[string]any{"l1": map[string]any{"l2": map[string]any{"l3": map[string]any{"a": 1}}}}, `l1l2l3{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParamString(tt.params))
		})
	}
}

func TestPayloadSign(t *testing.T) {
	p := Payload{APIKey: "key", Secret: "secret"}
	params := map[string]any{
		"instrument_name": "BTC_USD",
		"side":            "BUY",
		"type":            "LIMIT",
		"price":           "100.5",
		"quantity":        "0.01",
		"exec_inst":       []string{"POST_ONLY"},
	}

	env := p.Sign("private/create-order", 1700000000000, params)
	assert.Equal(t, int64(1700000000000), env.ID)
	assert.Equal(t, env.ID, env.Nonce)
	assert.Equal(t, "495344e2006ec86e734e4e5b8340f57724d4a4fbe6d6f2aeb391ddcee9ec12ca", env.Signature)

	again := p.Sign("private/create-order", 1700000000000, params)
	assert.Equal(t, env.Signature, again.Signature, "signing is deterministic")

	body, err := p.Body("private/get-account-summary", 1, nil)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	for _, key := range []string{"id", "method", "params", "api_key", "sig", "nonce"} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, map[string]any{}, decoded["params"])
}

func TestQuerySign(t *testing.T) {
	q := Query{Secret: "secret", RecvWindow: 5000}
	values := url.Values{"symbol": {"BTCUSDT"}, "quantity": {"1"}}

	signed := q.Sign(values, "", 1700000000000)
	assert.Equal(t, "quantity=1&recvWindow=5000&symbol=BTCUSDT&timestamp=1700000000000", signed.Query)
	assert.Equal(t, "07c683336e0e5d7557890c1d7d28fe2066525a2b7c6652962e13eb94a210a992", signed.Signature)
	assert.Equal(t, signed.Query+"&signature="+signed.Signature, signed.WithSignature())

	empty := Query{Secret: "secret"}.Sign(nil, "", 1)
	assert.Equal(t, "timestamp=1", empty.Query)
}

func TestHeaderSign(t *testing.T) {
	h := Header{APIKey: "key", Secret: "secret", RecvWindow: 5000}
	assert.Equal(t, "b10da919011eb90cc175e8660b7cd78a3f9c2b8aee6b95a44d78990cd76b64f3", h.Sign(1700000000000, "category=spot&symbol=BTCUSDT"))
}

func TestPrehashSign(t *testing.T) {
	p := Prehash{Secret: "secret"}
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   string
	}{
		{"read with query", "get", "/api/v5/account/balance?ccy=BTC", "", "1C35dcv2xyGTnd3NWb2xjbs7JTZhr3ulIbwx/ZXvPkM="},
		{"write with body", "POST", "/api/v5/trade/order", `{"instId":"BTC-USDT"}`, "rAisJmE0mJOGUQetbhYEL6D6KRwqHUNF5nV3Z2WJJsM="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Sign("2024-01-02T03:04:05.678Z", tt.method, tt.path, tt.body))
		})
	}
}
