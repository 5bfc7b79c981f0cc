// Package precise implements decimal string arithmetic for monetary values.
//
// Every operation parses its operands as arbitrary-precision decimals and
// formats the result back to a plain decimal string, so no intermediate
// binary floating-point value is ever produced.
package precise

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tradegate/pkg/errors"
)

// DivisionScale is the number of fractional digits kept by Div.
const DivisionScale = 32

var (
	// ErrDivisionByZero is returned by Div when the divisor is zero.
	ErrDivisionByZero = errors.New("precise: division by zero")

	// ErrInvalidNumber is returned when an operand is not a decimal string.
	ErrInvalidNumber = errors.New("precise: invalid decimal string")
)

// Rounding selects how ToPrecision treats digits beyond the tick.
type Rounding int

const (
	// Truncate drops digits beyond the tick (toward zero).
	Truncate Rounding = iota
	// Round rounds half away from zero to the nearest tick.
	Round
)

// Parse converts a decimal string into a decimal value.
func Parse(value string) (decimal.Decimal, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return decimal.Zero, errors.Wrapf(ErrInvalidNumber, "%q", value)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrInvalidNumber, "%q", value)
	}
	return d, nil
}

// Format renders d as a plain decimal string without exponent or trailing zeros.
func Format(d decimal.Decimal) string {
	return d.String()
}

func binary(a, b string, fn func(x, y decimal.Decimal) decimal.Decimal) (string, error) {
	x, err := Parse(a)
	if err != nil {
		return "", err
	}
	y, err := Parse(b)
	if err != nil {
		return "", err
	}
	return Format(fn(x, y)), nil
}

// Add returns a + b.
func Add(a, b string) (string, error) {
	return binary(a, b, decimal.Decimal.Add)
}

// Sub returns a - b.
func Sub(a, b string) (string, error) {
	return binary(a, b, decimal.Decimal.Sub)
}

// Mul returns a * b.
func Mul(a, b string) (string, error) {
	return binary(a, b, decimal.Decimal.Mul)
}

// Div returns a / b with DivisionScale fractional digits.
func Div(a, b string) (string, error) {
	x, err := Parse(a)
	if err != nil {
		return "", err
	}
	y, err := Parse(b)
	if err != nil {
		return "", err
	}
	if y.IsZero() {
		return "", ErrDivisionByZero
	}
	return Format(x.DivRound(y, DivisionScale)), nil
}

// Abs returns |a|.
func Abs(a string) (string, error) {
	x, err := Parse(a)
	if err != nil {
		return "", err
	}
	return Format(x.Abs()), nil
}

// Neg returns -a.
func Neg(a string) (string, error) {
	x, err := Parse(a)
	if err != nil {
		return "", err
	}
	return Format(x.Neg()), nil
}

// Cmp compares a and b numerically and returns -1, 0 or +1.
func Cmp(a, b string) (int, error) {
	x, err := Parse(a)
	if err != nil {
		return 0, err
	}
	y, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return x.Cmp(y), nil
}

// Lt reports a < b. Malformed operands compare as false.
func Lt(a, b string) bool {
	c, err := Cmp(a, b)
	return err == nil && c < 0
}

// Gt reports a > b. Malformed operands compare as false.
func Gt(a, b string) bool {
	c, err := Cmp(a, b)
	return err == nil && c > 0
}

// Le reports a <= b.
func Le(a, b string) bool {
	c, err := Cmp(a, b)
	return err == nil && c <= 0
}

// Ge reports a >= b.
func Ge(a, b string) bool {
	c, err := Cmp(a, b)
	return err == nil && c >= 0
}

// Eq reports whether a and b denote the same number ("1.50" equals "1.5").
func Eq(a, b string) bool {
	c, err := Cmp(a, b)
	return err == nil && c == 0
}

// Min returns the smaller of a and b.
func Min(a, b string) (string, error) {
	return binary(a, b, func(x, y decimal.Decimal) decimal.Decimal {
		return decimal.Min(x, y)
	})
}

// Max returns the larger of a and b.
func Max(a, b string) (string, error) {
	return binary(a, b, func(x, y decimal.Decimal) decimal.Decimal {
		return decimal.Max(x, y)
	})
}

// ToPrecision rounds value to a multiple of tick.
func ToPrecision(value, tick string, mode Rounding) (string, error) {
	x, err := Parse(value)
	if err != nil {
		return "", err
	}
	t, err := Parse(tick)
	if err != nil {
		return "", err
	}
	if !t.IsPositive() {
		return "", errors.Wrapf(ErrInvalidNumber, "tick %q must be positive", tick)
	}
	return Format(RoundToTick(x, t, mode)), nil
}

// RoundToTick rounds x to a multiple of tick using mode.
func RoundToTick(x, tick decimal.Decimal, mode Rounding) decimal.Decimal {
	if tick.IsZero() {
		return x
	}
	steps := x.Div(tick)
	switch mode {
	case Round:
		steps = steps.Round(0)
	default:
		steps = steps.Truncate(0)
	}
	return steps.Mul(tick)
}

// DecimalsToTick converts a decimal place count into a tick size ("3" -> "0.001").
func DecimalsToTick(places int32) decimal.Decimal {
	return decimal.New(1, -places)
}

// TickFromString derives a tick from the number of fractional digits of
// value, e.g. "0.0010" -> "0.0001". Integers yield a tick of 1.
func TickFromString(value string) (decimal.Decimal, error) {
	s := strings.TrimSpace(value)
	if _, err := Parse(s); err != nil {
		return decimal.Zero, err
	}
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		exp, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return decimal.Zero, errors.Wrapf(ErrInvalidNumber, "%q", value)
		}
		mantissa := s[:i]
		places := 0
		if dot := strings.IndexByte(mantissa, '.'); dot >= 0 {
			places = len(mantissa) - dot - 1
		}
		return DecimalsToTick(int32(places - exp)), nil
	}
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return decimal.NewFromInt(1), nil
	}
	return DecimalsToTick(int32(len(s) - dot - 1)), nil
}

// Decimals counts the significant fractional digits of a tick ("0.001" -> 3).
func Decimals(tick decimal.Decimal) int32 {
	s := tick.String()
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return 0
	}
	return int32(len(s) - dot - 1)
}
