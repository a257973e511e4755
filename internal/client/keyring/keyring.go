// Package keyring holds the per-shift session key on the client. The key is
// issued by the server at shift open and is never derivable from anything
// else the client holds; losing it before sync means the local ledger is
// unreadable, so the file-backed store exists to survive process restarts.
package keyring

import (
	"sync"

	"github.com/fieldstock/shiftledger/internal/domain"
)

// Store keeps session keys addressable by shift id.
type Store interface {
	// Put stores key for shiftID.
	Put(shiftID string, key []byte) error
	// Get returns the key for shiftID, or domain.ErrNotFound.
	Get(shiftID string) ([]byte, error)
	// Delete wipes and removes the key. Strictly a post-success action:
	// the sync client calls it only after the server acknowledged the
	// closing report.
	Delete(shiftID string) error
}

// Memory is a volatile Store for keys that must not outlive the process.
type Memory struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string][]byte)}
}

func (m *Memory) Put(shiftID string, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(key))
	copy(cp, key)
	m.keys[shiftID] = cp
	return nil
}

func (m *Memory) Get(shiftID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[shiftID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return cp, nil
}

func (m *Memory) Delete(shiftID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key, ok := m.keys[shiftID]; ok {
		for i := range key {
			key[i] = 0
		}
		delete(m.keys, shiftID)
	}
	return nil
}

var _ Store = (*Memory)(nil)
