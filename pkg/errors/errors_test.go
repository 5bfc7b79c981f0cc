package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	assert.NoError(t, Wrapf(nil, "context %d", 1))
}

func TestWrapKeepsChain(t *testing.T) {
	err := Wrapf(ErrNotFound, "venue %s", "bybit")
	assert.EqualError(t, err, "venue bybit: resource not found")
	assert.True(t, Is(err, ErrNotFound))
}

func TestMultiError(t *testing.T) {
	var m MultiError
	assert.NoError(t, m.ToError())

	m.Add(nil)
	m.Add(Wrap(ErrInvalidInput, "first"))
	m.Add(ErrTimeout)

	err := m.ToError()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "multiple errors (2)")
	assert.True(t, Is(err, ErrInvalidInput))
	assert.True(t, Is(err, ErrTimeout))
	assert.False(t, Is(err, ErrNotFound))
}

func TestValidationError(t *testing.T) {
	var target *ValidationError
	err := Wrap(NewValidationError("side", "must be buy or sell", "hold"), "order")
	assert.True(t, As(err, &target))
	assert.Equal(t, "side", target.Field)
}
