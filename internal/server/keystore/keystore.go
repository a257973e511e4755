// Package keystore is the server-side custodian of per-shift session
// keys. Keys are random 32-byte values issued at shift open, stored only
// wrapped by a passphrase-derived key-encryption key, and destroyed
// strictly after the closing report committed. There is no timeout-based
// destruction: an unsynced shift must stay decryptable indefinitely.
package keystore

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/fieldstock/shiftledger/internal/sealbox"
	"github.com/fieldstock/shiftledger/internal/server/store"
)

// kekSalt is fixed so the same passphrase derives the same KEK across
// restarts. Rotating the passphrase orphans previously wrapped keys.
const kekSalt = "shiftledger.keystore.v1"

type Store struct {
	keys store.ShiftKeyRepository
	kek  []byte
	now  func() time.Time
}

func New(keys store.ShiftKeyRepository, passphrase string) *Store {
	return &Store{
		keys: keys,
		kek:  argon2.IDKey([]byte(passphrase), []byte(kekSalt), 1, 64*1024, 4, sealbox.KeySize),
		now:  time.Now,
	}
}

// Issue generates a fresh session key for the shift, persists it wrapped
// and returns the plaintext key for one-time transport to the client.
func (s *Store) Issue(ctx context.Context, shiftID string) ([]byte, error) {
	key, err := sealbox.NewKey()
	if err != nil {
		return nil, err
	}

	wrapped, err := sealbox.Seal(key, s.kek)
	if err != nil {
		return nil, fmt.Errorf("wrap session key: %w", err)
	}

	if err := s.keys.Save(ctx, shiftID, wrapped, s.now().UTC()); err != nil {
		return nil, err
	}
	return key, nil
}

// Get unwraps the session key for the shift, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, shiftID string) ([]byte, error) {
	wrapped, err := s.keys.Get(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	key, err := sealbox.Open(wrapped, s.kek)
	if err != nil {
		return nil, fmt.Errorf("unwrap session key: %w", err)
	}
	return key, nil
}

// Destroy removes the key. Callers invoke this only after the closing
// report is durably committed.
func (s *Store) Destroy(ctx context.Context, shiftID string) error {
	return s.keys.Delete(ctx, shiftID)
}
