package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/pkg/errors"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewEncryptorKeyLength(t *testing.T) {
	_, err := NewEncryptor("short")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = NewEncryptor(testKey)
	require.NoError(t, err)
}

func TestEncryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	sealed, err := enc.Encrypt("api-secret")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "api-secret")

	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "api-secret", plain)

	again, err := enc.Encrypt("api-secret")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")
}

func TestHexRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	encoded, err := enc.EncryptHex("key-123")
	require.NoError(t, err)
	plain, err := enc.DecryptHex(encoded)
	require.NoError(t, err)
	assert.Equal(t, "key-123", plain)
}

func TestDecryptRejectsBadInput(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)
	other, err := NewEncryptor("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)

	sealed, err := other.Encrypt("secret")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input func() (string, error)
	}{
		{"too short", func() (string, error) { return enc.Decrypt([]byte{1, 2}) }},
		{"wrong key", func() (string, error) { return enc.Decrypt(sealed) }},
		{"not hex", func() (string, error) { return enc.DecryptHex("zz") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.input()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCiphertext))
		})
	}
}
