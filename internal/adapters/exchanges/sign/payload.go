package sign

import (
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"tradegate/pkg/errors"
)

// MaxParamDepth bounds how deep ParamString descends into nested params.
const MaxParamDepth = 3

// ParamString flattens params into the canonical string signed by payload
// authenticated venues: object keys sorted ascending with key and value
// concatenated, arrays concatenated in order, nil rendered as "null".
// Below MaxParamDepth values are rendered as-is.
func ParamString(params map[string]any) string {
	var b strings.Builder
	writeObject(&b, params, 0)
	return b.String()
}

func writeObject(b *strings.Builder, obj map[string]any, level int) {
	if level >= MaxParamDepth {
		b.WriteString(scalar(obj))
		return
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		writeValue(b, obj[k], level)
	}
}

func writeValue(b *strings.Builder, v any, level int) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		writeObject(b, val, level+1)
	case []any:
		for _, item := range val {
			if m, ok := item.(map[string]any); ok {
				writeObject(b, m, level+1)
				continue
			}
			writeValue(b, item, level+1)
		}
	case []string:
		for _, item := range val {
			b.WriteString(item)
		}
	case []map[string]any:
		for _, item := range val {
			writeObject(b, item, level+1)
		}
	default:
		b.WriteString(scalar(val))
	}
}

func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case decimal.Decimal:
		return val.String()
	case json.Number:
		return val.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// Payload signs JSON-RPC style bodies where the signature is embedded in
// the body itself.
type Payload struct {
	APIKey string
	Secret string
}

// Envelope is the signed request body.
type Envelope struct {
	ID        int64          `json:"id"`
	Method    string         `json:"method"`
	Params    map[string]any `json:"params"`
	APIKey    string         `json:"api_key"`
	Signature string         `json:"sig"`
	Nonce     int64          `json:"nonce"`
}

// Signature computes HMAC-SHA256 over method, id, key, params and nonce.
func (p Payload) Signature(method string, id, nonce int64, params map[string]any) string {
	pre := method + strconv.FormatInt(id, 10) + p.APIKey + ParamString(params) + strconv.FormatInt(nonce, 10)
	return HMACSHA256(pre, p.Secret)
}

// Sign builds the envelope, using the nonce as the request id.
func (p Payload) Sign(method string, nonce int64, params map[string]any) Envelope {
	if params == nil {
		params = map[string]any{}
	}
	return Envelope{
		ID:        nonce,
		Method:    method,
		Params:    params,
		APIKey:    p.APIKey,
		Signature: p.Signature(method, nonce, nonce, params),
		Nonce:     nonce,
	}
}

// Body encodes the signed envelope.
func (p Payload) Body(method string, nonce int64, params map[string]any) ([]byte, error) {
	body, err := json.Marshal(p.Sign(method, nonce, params))
	if err != nil {
		return nil, errors.Wrap(err, "encode signed payload")
	}
	return body, nil
}
