package precise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/pkg/errors"
)

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a, b string) (string, error)
		a, b string
		want string
	}{
		{"add small", Add, "0.1", "0.2", "0.3"},
		{"add satoshi", Add, "0.00000001", "0.00000002", "0.00000003"},
		{"sub negative", Sub, "1", "1.5", "-0.5"},
		{"mul", Mul, "1.1", "1.1", "1.21"},
		{"mul large", Mul, "123456789.123456789", "1000", "123456789123.456789"},
		{"div exact", Div, "1", "4", "0.25"},
		{"div trims zeros", Div, "10", "2", "5"},
		{"min", Min, "-2", "1", "-2"},
		{"max", Max, "-2", "1", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	_, err := Div("1", "0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDivisionByZero))

	_, err = Div("1", "0.000")
	assert.True(t, errors.Is(err, ErrDivisionByZero))
}

func TestInvalidOperands(t *testing.T) {
	_, err := Add("abc", "1")
	assert.True(t, errors.Is(err, ErrInvalidNumber))

	_, err = Mul("1", "")
	assert.True(t, errors.Is(err, ErrInvalidNumber))
}

func TestRoundTrip(t *testing.T) {
	values := []string{"0.00000001", "1130.8", "3", "0.1", "7", "99999.99999999", "-12.5", "0.0000000525"}
	for _, a := range values {
		for _, b := range values {
			product, err := Mul(a, b)
			require.NoError(t, err)
			back, err := Div(product, b)
			require.NoError(t, err)
			assert.True(t, Eq(back, a), "div(mul(%s,%s),%s) = %s", a, b, b, back)
		}
	}
}

func TestComparisonIsNumeric(t *testing.T) {
	assert.True(t, Lt("9", "10"))
	assert.True(t, Lt("-10", "-9"))
	assert.True(t, Gt("0.2", "0.10"))
	assert.False(t, Lt("100", "100.0"))
	assert.True(t, Eq("1.50", "1.5"))
	assert.True(t, Le("1", "1"))
	assert.True(t, Ge("-0", "0"))
	assert.False(t, Lt("", "1"))
	assert.False(t, Gt("x", "1"))
}

func TestAbsNeg(t *testing.T) {
	got, err := Abs("-0.0000000525")
	require.NoError(t, err)
	assert.Equal(t, "0.0000000525", got)

	got, err = Neg("12.5")
	require.NoError(t, err)
	assert.Equal(t, "-12.5", got)
}

func TestToPrecision(t *testing.T) {
	tests := []struct {
		value, tick string
		mode        Rounding
		want        string
	}{
		{"1.23456", "0.01", Truncate, "1.23"},
		{"1.23556", "0.01", Round, "1.24"},
		{"105", "10", Truncate, "100"},
		{"0.37", "0.25", Round, "0.25"},
		{"0.38", "0.25", Round, "0.5"},
		{"-1.239", "0.01", Truncate, "-1.23"},
	}
	for _, tt := range tests {
		got, err := ToPrecision(tt.value, tt.tick, tt.mode)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s @ %s", tt.value, tt.tick)
	}

	_, err := ToPrecision("1", "0", Round)
	assert.Error(t, err)
}

func TestTickDerivation(t *testing.T) {
	assert.Equal(t, "0.001", DecimalsToTick(3).String())
	assert.Equal(t, "1", DecimalsToTick(0).String())

	tick, err := TickFromString("0.0010")
	require.NoError(t, err)
	assert.Equal(t, "0.0001", tick.String())

	tick, err = TickFromString("25")
	require.NoError(t, err)
	assert.Equal(t, "1", tick.String())

	tick, err = TickFromString("1e-8")
	require.NoError(t, err)
	assert.Equal(t, "0.00000001", tick.String())

	assert.Equal(t, int32(3), Decimals(DecimalsToTick(3)))
	assert.Equal(t, int32(0), Decimals(DecimalsToTick(0)))
}
