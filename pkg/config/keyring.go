package config

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

// Keyring coordinates of the CoinGecko API key.
const (
	KeyringService = "market-proxy"
	KeyringUser    = "coingecko"
)

// ErrKeyNotFound is returned when no API key is stored.
var ErrKeyNotFound = errors.New("api key not found in keyring")

// KeyStore persists the CoinGecko API key in the OS keyring.
type KeyStore struct {
	serviceName string
}

// NewKeyStore creates a key store for serviceName (KeyringService when empty).
func NewKeyStore(serviceName string) *KeyStore {
	if serviceName == "" {
		serviceName = KeyringService
	}
	return &KeyStore{serviceName: serviceName}
}

// SetKey stores key.
func (k *KeyStore) SetKey(key string) error {
	return keyring.Set(k.serviceName, KeyringUser, key)
}

// GetKey returns the stored key or ErrKeyNotFound.
func (k *KeyStore) GetKey() (string, error) {
	key, err := keyring.Get(k.serviceName, KeyringUser)
	if err == nil {
		return key, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrKeyNotFound
	}
	return "", err
}

// DeleteKey removes the stored key.
func (k *KeyStore) DeleteKey() error {
	err := keyring.Delete(k.serviceName, KeyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrKeyNotFound
	}
	return err
}

// ResolveAPIKey fills CoinGecko.APIKey from store when no key was configured.
// A missing or unavailable keyring leaves the key empty: the upstream then
// serves the unauthenticated quota.
func (c *Config) ResolveAPIKey(store *KeyStore) {
	if c.CoinGecko.APIKey != "" || store == nil {
		return
	}

	key, err := store.GetKey()
	switch {
	case err == nil:
		c.CoinGecko.APIKey = key
		log.Debug().Str("component", "config").Msg("Using CoinGecko API key from keyring")
	case errors.Is(err, ErrKeyNotFound):
	default:
		log.Warn().Err(err).Str("component", "config").Msg("Keyring unavailable, continuing without API key")
	}
}
