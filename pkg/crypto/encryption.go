package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"

	"tradegate/pkg/errors"
)

// ErrCiphertext indicates input that does not decrypt under the key.
var ErrCiphertext = errors.New("invalid ciphertext")

// Encryptor handles AES-256-GCM encryption/decryption
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates a new encryptor with a 32-byte key
func NewEncryptor(key string) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "encryption key must be exactly 32 bytes for AES-256")
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, errors.Wrap(err, "aes cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "gcm")
	}
	return &Encryptor{gcm: gcm}, nil
}

// Encrypt seals plaintext and prepends the random nonce.
func (e *Encryptor) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "nonce")
	}
	return e.gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(ciphertext []byte) (string, error) {
	size := e.gcm.NonceSize()
	if len(ciphertext) < size {
		return "", errors.Wrap(ErrCiphertext, "ciphertext too short")
	}
	nonce, sealed := ciphertext[:size], ciphertext[size:]
	plaintext, err := e.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.Wrap(ErrCiphertext, err.Error())
	}
	return string(plaintext), nil
}

// EncryptHex is Encrypt with a hex encoded result, for values kept in env
// files.
func (e *Encryptor) EncryptHex(plaintext string) (string, error) {
	sealed, err := e.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sealed), nil
}

// DecryptHex reverses EncryptHex.
func (e *Encryptor) DecryptHex(encoded string) (string, error) {
	sealed, err := hex.DecodeString(encoded)
	if err != nil {
		return "", errors.Wrap(ErrCiphertext, "not hex")
	}
	return e.Decrypt(sealed)
}
