package config

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the keychain service identifier
	ServiceName = "viteflow"

	// DefaultAccount is used when no site id is configured
	DefaultAccount = "default"
)

// TokenStore persists API tokens outside the config file.
type TokenStore interface {
	Get(account string) (string, error)
	Set(account, token string) error
	Delete(account string) error
}

// KeychainStore stores tokens in the system keychain
type KeychainStore struct {
	serviceName string
}

// NewKeychainStore creates a new keychain store
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{
		serviceName: ServiceName,
	}
}

// IsAvailable checks if keychain is available on this system
func (k *KeychainStore) IsAvailable() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		// Linux needs a running secret service
		if err := keyring.Set(k.serviceName, "__probe__", "probe"); err != nil {
			return false
		}
		_ = keyring.Delete(k.serviceName, "__probe__")
		return true
	default:
		return false
	}
}

// Get returns the stored token, or "" if none is stored.
func (k *KeychainStore) Get(account string) (string, error) {
	token, err := keyring.Get(k.serviceName, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load from keychain: %w", err)
	}
	return token, nil
}

// Set stores token for account.
func (k *KeychainStore) Set(account, token string) error {
	if err := keyring.Set(k.serviceName, account, token); err != nil {
		return fmt.Errorf("failed to save to keychain: %w", err)
	}
	return nil
}

// Delete removes the token for account. A missing entry is not an error.
func (k *KeychainStore) Delete(account string) error {
	err := keyring.Delete(k.serviceName, account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keychain: %w", err)
	}
	return nil
}

// Account returns the keychain account the config's token is stored under.
func (c *Config) Account() string {
	if c.SiteID != "" {
		return c.SiteID
	}
	return DefaultAccount
}

// ResolveToken fills Token from store when the keychain credential store is
// selected and no token was provided by file, environment or flag.
func (c *Config) ResolveToken(store TokenStore) error {
	if c.Token != "" || c.CredentialStore != "keychain" {
		return nil
	}
	token, err := store.Get(c.Account())
	if err != nil {
		return err
	}
	if token == "" && c.Account() != DefaultAccount {
		if token, err = store.Get(DefaultAccount); err != nil {
			return err
		}
	}
	c.Token = token
	return nil
}
