package parse

import (
	json "github.com/goccy/go-json"

	"tradegate/internal/adapters/exchanges"
	"tradegate/pkg/errors"
)

// Candle decodes positional kline rows:
// [openTime, open, high, low, close, volume, ...]. Trailing columns are ignored.
type Candle exchanges.OHLCV

// UnmarshalJSON implements json.Unmarshaler.
func (c *Candle) UnmarshalJSON(data []byte) error {
	var cols []json.RawMessage
	if err := json.Unmarshal(data, &cols); err != nil {
		return errors.Wrap(err, "decode candle row")
	}
	if len(cols) < 6 {
		return errors.Wrapf(errors.ErrUnexpectedResponse, "candle row has %d columns", len(cols))
	}
	var (
		ts               Timestamp
		o, h, l, cl, vol Number
	)
	for i, target := range []json.Unmarshaler{&ts, &o, &h, &l, &cl, &vol} {
		if err := target.UnmarshalJSON(cols[i]); err != nil {
			return err
		}
	}
	*c = Candle{
		Timestamp: ts.Time(),
		Open:      o.Decimal(),
		High:      h.Decimal(),
		Low:       l.Decimal(),
		Close:     cl.Decimal(),
		Volume:    vol.Decimal(),
	}
	return nil
}

// Candles decodes an array of positional rows.
func Candles(data []byte) ([]exchanges.OHLCV, error) {
	var rows []Candle
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	out := make([]exchanges.OHLCV, len(rows))
	for i, r := range rows {
		out[i] = exchanges.OHLCV(r)
	}
	return out, nil
}
