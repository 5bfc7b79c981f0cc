// Package parse holds the shared helpers venue parsers use to turn raw
// payloads into canonical entities.
package parse

import (
	"bytes"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"tradegate/pkg/errors"
)

var null = []byte("null")

// unquote strips surrounding quotes and whitespace. Empty and null inputs
// return nil.
func unquote(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, null) {
		return nil
	}
	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		trimmed = bytes.TrimSpace(trimmed[1 : len(trimmed)-1])
	}
	if len(trimmed) == 0 {
		return nil
	}
	return trimmed
}

// Number decodes a decimal sent either as a JSON string or a JSON number.
// Empty strings and null decode to zero.
type Number decimal.Decimal

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	raw := unquote(data)
	if raw == nil {
		*n = Number(decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return errors.Wrapf(errors.ErrUnexpectedResponse, "invalid number %q", string(data))
	}
	*n = Number(d)
	return nil
}

// MarshalJSON renders the number as a JSON string.
func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(decimal.Decimal(n).String())
}

// Decimal returns the wrapped value.
func (n Number) Decimal() decimal.Decimal { return decimal.Decimal(n) }

// Ptr returns nil for zero, else a pointer to the value.
func (n Number) Ptr() *decimal.Decimal {
	d := decimal.Decimal(n)
	if d.IsZero() {
		return nil
	}
	return &d
}

// ID decodes identifiers sent either as JSON strings or numbers.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	*id = ID(unquote(data))
	return nil
}

// Timestamp decodes epoch milliseconds sent as a string or a number.
type Timestamp int64

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	raw := unquote(data)
	if raw == nil {
		*ts = 0
		return nil
	}
	if parsed, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		*ts = Timestamp(parsed)
		return nil
	}
	if parsed, err := strconv.ParseFloat(string(raw), 64); err == nil {
		*ts = Timestamp(int64(parsed))
		return nil
	}
	return errors.Wrapf(errors.ErrUnexpectedResponse, "invalid timestamp %q", string(data))
}

// Time converts to UTC, or the zero time for 0.
func (ts Timestamp) Time() time.Time {
	return Millis(int64(ts))
}

// Millis converts epoch milliseconds to UTC; 0 gives the zero time.
func Millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// ToMillis is the inverse of Millis.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// Decimal parses s, returning zero for empty or malformed input.
func Decimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalPtr is Decimal returning nil for zero.
func DecimalPtr(s string) *decimal.Decimal {
	d := Decimal(s)
	if d.IsZero() {
		return nil
	}
	return &d
}

// Int64 parses s, returning 0 for empty or malformed input.
func Int64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Raw re-encodes v as the verbatim Info payload of an entity.
func Raw(v any) json.RawMessage {
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
