// Package credentials supplies venue API keys to the exchange factory.
package credentials

import (
	"context"
	"sync"

	"tradegate/internal/adapters/config"
	"tradegate/internal/adapters/exchanges"
	"tradegate/pkg/crypto"
	"tradegate/pkg/errors"
)

// Static serves credentials held in memory. A venue without an entry gets
// empty credentials, which limits its client to public endpoints.
type Static struct {
	mu    sync.RWMutex
	byVen map[string]exchanges.Credentials
}

var _ exchanges.CredentialStore = (*Static)(nil)

// NewStatic copies creds.
func NewStatic(creds map[string]exchanges.Credentials) *Static {
	s := &Static{byVen: make(map[string]exchanges.Credentials, len(creds))}
	for venue, c := range creds {
		s.byVen[venue] = c
	}
	return s
}

// FromConfig collects the per-venue keys of cfg.
func FromConfig(cfg *config.Config) *Static {
	return NewStatic(map[string]exchanges.Credentials{
		"cryptocom": {APIKey: cfg.Cryptocom.APIKey, Secret: cfg.Cryptocom.Secret},
		"binance":   {APIKey: cfg.Binance.APIKey, Secret: cfg.Binance.Secret},
		"binanceus": {APIKey: cfg.BinanceUS.APIKey, Secret: cfg.BinanceUS.Secret},
		"bybit":     {APIKey: cfg.Bybit.APIKey, Secret: cfg.Bybit.Secret},
		"okx":       {APIKey: cfg.OKX.APIKey, Secret: cfg.OKX.Secret, Password: cfg.OKX.Passphrase},
	})
}

// Set replaces the credentials of venue.
func (s *Static) Set(venue string, c exchanges.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byVen[venue] = c
}

// Credentials implements exchanges.CredentialStore.
func (s *Static) Credentials(_ context.Context, venue string) (exchanges.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byVen[venue], nil
}

// Encrypted decrypts hex encoded AES-GCM secrets from an inner store on
// every lookup, so plaintext is never retained.
type Encrypted struct {
	inner exchanges.CredentialStore
	enc   *crypto.Encryptor
}

var _ exchanges.CredentialStore = (*Encrypted)(nil)

// NewEncrypted wraps inner with key, which must be 32 bytes.
func NewEncrypted(inner exchanges.CredentialStore, key string) (*Encrypted, error) {
	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		return nil, err
	}
	return &Encrypted{inner: inner, enc: enc}, nil
}

// Credentials implements exchanges.CredentialStore. Empty fields stay empty.
func (e *Encrypted) Credentials(ctx context.Context, venue string) (exchanges.Credentials, error) {
	sealed, err := e.inner.Credentials(ctx, venue)
	if err != nil {
		return exchanges.Credentials{}, err
	}
	var out exchanges.Credentials
	fields := []struct {
		in  string
		out *string
	}{
		{sealed.APIKey, &out.APIKey},
		{sealed.Secret, &out.Secret},
		{sealed.Password, &out.Password},
		{sealed.TwoFA, &out.TwoFA},
	}
	for _, f := range fields {
		if f.in == "" {
			continue
		}
		plain, err := e.enc.DecryptHex(f.in)
		if err != nil {
			return exchanges.Credentials{}, errors.Wrapf(err, "decrypt %s credentials", venue)
		}
		*f.out = plain
	}
	return out, nil
}

// Seal encrypts every non-empty field of c the way Encrypted expects.
func Seal(enc *crypto.Encryptor, c exchanges.Credentials) (exchanges.Credentials, error) {
	var out exchanges.Credentials
	fields := []struct {
		in  string
		out *string
	}{
		{c.APIKey, &out.APIKey},
		{c.Secret, &out.Secret},
		{c.Password, &out.Password},
		{c.TwoFA, &out.TwoFA},
	}
	for _, f := range fields {
		if f.in == "" {
			continue
		}
		sealed, err := enc.EncryptHex(f.in)
		if err != nil {
			return exchanges.Credentials{}, err
		}
		*f.out = sealed
	}
	return out, nil
}

// FromEnv builds the store cfg asks for: encrypted when an encryption key
// is configured, static otherwise.
func FromEnv(cfg *config.Config) (exchanges.CredentialStore, error) {
	static := FromConfig(cfg)
	if cfg.Crypto.EncryptionKey == "" {
		return static, nil
	}
	return NewEncrypted(static, cfg.Crypto.EncryptionKey)
}
