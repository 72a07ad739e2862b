// Package cryptobox seals parameter values with authenticated encryption and
// keeps the active key for the process.
//
// A sealed value is URL-safe base64 (unpadded) of
//
//	version byte | nonce | ciphertext and tag
//
// where the version byte names the AEAD: 1 for AES-256-GCM, 2 for
// XChaCha20-Poly1305. Open reads the version, so values sealed with either
// algorithm stay readable whichever one new writes use.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mesh-intelligence/params/pkg/types"
)

// Algorithm selects the AEAD new values are sealed with.
type Algorithm string

// Supported algorithms.
const (
	XChaCha20Poly1305 Algorithm = "xchacha20poly1305"
	AES256GCM         Algorithm = "aes-256-gcm"
)

const (
	versionAESGCM  byte = 0x01
	versionXChaCha byte = 0x02
)

var (
	// ErrUnknownAlgorithm is returned for unsupported Algorithm values.
	ErrUnknownAlgorithm = errors.New("unknown encryption algorithm")
	// ErrCiphertextShort is returned when a token is too short to hold a nonce.
	ErrCiphertextShort = errors.New("ciphertext too short")
)

var encoding = base64.RawURLEncoding

// Box seals and opens values.
type Box struct {
	algorithm Algorithm
}

// NewBox returns a Box sealing with algo. An empty algo selects
// XChaCha20-Poly1305.
func NewBox(algo Algorithm) (*Box, error) {
	switch algo {
	case "":
		algo = XChaCha20Poly1305
	case XChaCha20Poly1305, AES256GCM:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
	return &Box{algorithm: algo}, nil
}

// Algorithm returns the algorithm Seal uses.
func (b *Box) Algorithm() Algorithm {
	return b.algorithm
}

// Seal encrypts plaintext under key.
func (b *Box) Seal(plaintext string, key []byte) (string, error) {
	version := versionXChaCha
	if b.algorithm == AES256GCM {
		version = versionAESGCM
	}
	aead, err := newAEAD(version, key)
	if err != nil {
		return "", err
	}

	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out[0] = version
	nonce := out[1:]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	out = aead.Seal(out, nonce, []byte(plaintext), nil)
	return encoding.EncodeToString(out), nil
}

// Open decrypts a token produced by Seal.
// Returns an error wrapping types.ErrDecryption if the token is malformed,
// was sealed under another key, or was tampered with.
func (b *Box) Open(token string, key []byte) (string, error) {
	raw, err := encoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrDecryption, err)
	}
	if len(raw) < 1 {
		return "", fmt.Errorf("%w: %w", types.ErrDecryption, ErrCiphertextShort)
	}
	aead, err := newAEAD(raw[0], key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrDecryption, err)
	}
	body := raw[1:]
	if len(body) < aead.NonceSize() {
		return "", fmt.Errorf("%w: %w", types.ErrDecryption, ErrCiphertextShort)
	}
	nonce, ct := body[:aead.NonceSize()], body[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrDecryption, err)
	}
	return string(pt), nil
}

func newAEAD(version byte, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	switch version {
	case versionXChaCha:
		return chacha20poly1305.NewX(key)
	case versionAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("%w: version %d", ErrUnknownAlgorithm, version)
	}
}
