package cryptobox

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/mesh-intelligence/params/pkg/types"
)

// KeyRing caches the active key for the process. The key is read from its
// source on first use and held in a memguard enclave; Refresh replaces it.
// Reads run concurrently, a refresh takes the single writer slot.
type KeyRing struct {
	mu      sync.RWMutex
	source  KeySource
	box     *Box
	enclave *memguard.Enclave
}

// NewKeyRing creates a key ring over source sealing with box.
func NewKeyRing(source KeySource, box *Box) *KeyRing {
	return &KeyRing{source: source, box: box}
}

// Box returns the box the ring seals with.
func (k *KeyRing) Box() *Box {
	return k.box
}

// Seal encrypts plaintext under the active key.
// Returns types.ErrMissingKey if no key is configured.
func (k *KeyRing) Seal(plaintext string) (string, error) {
	var token string
	err := k.withKey(func(key []byte) error {
		var err error
		token, err = k.box.Seal(plaintext, key)
		return err
	})
	return token, err
}

// Open decrypts token with the active key.
// Returns types.ErrMissingKey if no key is configured, or an error wrapping
// types.ErrDecryption if the token does not open.
func (k *KeyRing) Open(token string) (string, error) {
	var plaintext string
	err := k.withKey(func(key []byte) error {
		var err error
		plaintext, err = k.box.Open(token, key)
		return err
	})
	return plaintext, err
}

// KeyText returns the text form of the active key.
func (k *KeyRing) KeyText() (string, error) {
	var text string
	err := k.withKey(func(key []byte) error {
		text = encoding.EncodeToString(key)
		return nil
	})
	return text, err
}

// Refresh reads the source again and replaces the cached key.
func (k *KeyRing) Refresh() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enclave = nil
	return k.loadLocked()
}

// Reset drops the cached key; the next use reads the source again.
func (k *KeyRing) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enclave = nil
}

// withKey opens the enclave, loading it first if needed, and passes the key
// bytes to fn. The bytes are wiped when fn returns.
func (k *KeyRing) withKey(fn func(key []byte) error) error {
	k.mu.RLock()
	enclave := k.enclave
	k.mu.RUnlock()

	if enclave == nil {
		k.mu.Lock()
		if k.enclave == nil {
			if err := k.loadLocked(); err != nil {
				k.mu.Unlock()
				return err
			}
		}
		enclave = k.enclave
		k.mu.Unlock()
	}

	buf, err := enclave.Open()
	if err != nil {
		return fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

func (k *KeyRing) loadLocked() error {
	if k.source == nil {
		return types.ErrMissingKey
	}
	text, err := k.source.Key()
	if err != nil {
		return err
	}
	key, err := ParseKey(text)
	if err != nil {
		return err
	}
	k.enclave = memguard.NewEnclave(key)
	return nil
}
