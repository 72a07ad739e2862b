package cryptobox

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/mesh-intelligence/params/pkg/types"
)

// KeySource supplies the text form of the active key.
// Implementations return types.ErrMissingKey when no key is configured.
type KeySource interface {
	Key() (string, error)
}

// KeyFunc adapts a function to KeySource.
type KeyFunc func() (string, error)

// Key calls f.
func (f KeyFunc) Key() (string, error) {
	return f()
}

// StaticKey is a key taken from configuration or the environment.
type StaticKey string

// Key returns the key, or types.ErrMissingKey when it is empty.
func (s StaticKey) Key() (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", types.ErrMissingKey
	}
	return string(s), nil
}

// KeychainSource reads the key from the OS keyring (macOS Keychain, Secret
// Service, Windows Credential Manager).
type KeychainSource struct {
	Service string
	Account string
}

// Key returns the stored key, or types.ErrMissingKey when no entry exists.
func (k KeychainSource) Key() (string, error) {
	secret, err := keyring.Get(k.Service, k.Account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", types.ErrMissingKey
		}
		return "", fmt.Errorf("reading keyring %s/%s: %w", k.Service, k.Account, err)
	}
	if strings.TrimSpace(secret) == "" {
		return "", types.ErrMissingKey
	}
	return secret, nil
}

// Store writes key to the keyring entry.
func (k KeychainSource) Store(key string) error {
	if err := keyring.Set(k.Service, k.Account, key); err != nil {
		return fmt.Errorf("writing keyring %s/%s: %w", k.Service, k.Account, err)
	}
	return nil
}
