// Package sealbox implements the authenticated encryption-at-rest format
// shared by local ledger files and wire payloads:
//
//	blob = nonce(12) ‖ ciphertext ‖ tag(16)
//
// Keys are 256-bit and a fresh random nonce is generated on every Seal call.
// Nonce reuse under the same key would break both confidentiality and
// integrity, so nonces are never supplied by callers.
package sealbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// Overhead is the GCM authentication tag length in bytes.
	Overhead = 16
)

// ErrTamperedOrCorrupted is returned by Open when the blob fails
// authentication or is too short to contain a nonce and tag. The affected
// blob must be treated as data loss; retrying against the same bytes
// cannot succeed.
var ErrTamperedOrCorrupted = errors.New("sealed blob tampered or corrupted")

// NewKey returns a fresh random 256-bit key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("key generation: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with key and returns nonce ‖ ciphertext ‖ tag.
func Seal(plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a blob produced by Seal. It returns
// ErrTamperedOrCorrupted if the tag does not verify or if the blob is
// truncated.
func Open(blob, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(blob) < NonceSize+Overhead {
		return nil, ErrTamperedOrCorrupted
	}

	nonce, ciphertext := blob[:NonceSize], blob[NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrTamperedOrCorrupted
	}
	return plaintext, nil
}

// SealJSON marshals v to JSON and seals the result.
func SealJSON(v any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return Seal(plaintext, key)
}

// OpenJSON opens a blob and unmarshals the plaintext into v.
func OpenJSON(blob, key []byte, v any) error {
	plaintext, err := Open(blob, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// Wipe overwrites b with zeros. Useful for key material going out of scope.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
