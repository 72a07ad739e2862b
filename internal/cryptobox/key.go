package cryptobox

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeySize is the length of every key in bytes.
const KeySize = 32

// ErrInvalidKey is returned for keys that do not decode to KeySize bytes.
var ErrInvalidKey = errors.New("invalid encryption key")

// GenerateKey returns a new random key in its text form, URL-safe base64.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return encoding.EncodeToString(key), nil
}

// ParseKey decodes the text form of a key. Padding is tolerated.
func ParseKey(text string) ([]byte, error) {
	key, err := encoding.DecodeString(strings.TrimRight(strings.TrimSpace(text), "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	return key, nil
}

// SealWithKey seals plaintext under the text-form key.
func (b *Box) SealWithKey(plaintext, keyText string) (string, error) {
	key, err := ParseKey(keyText)
	if err != nil {
		return "", err
	}
	return b.Seal(plaintext, key)
}

// OpenWithKey opens token with the text-form key.
func (b *Box) OpenWithKey(token, keyText string) (string, error) {
	key, err := ParseKey(keyText)
	if err != nil {
		return "", err
	}
	return b.Open(token, key)
}
