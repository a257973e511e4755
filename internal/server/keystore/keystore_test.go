package keystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstock/shiftledger/internal/domain"
	"github.com/fieldstock/shiftledger/internal/sealbox"
)

type memKeyRepo struct {
	wrapped map[string][]byte
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{wrapped: make(map[string][]byte)}
}

func (m *memKeyRepo) Save(ctx context.Context, shiftID string, wrapped []byte, issuedAt time.Time) error {
	m.wrapped[shiftID] = wrapped
	return nil
}

func (m *memKeyRepo) Get(ctx context.Context, shiftID string) ([]byte, error) {
	w, ok := m.wrapped[shiftID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return w, nil
}

func (m *memKeyRepo) Delete(ctx context.Context, shiftID string) error {
	delete(m.wrapped, shiftID)
	return nil
}

func TestKeystore_IssueGetDestroy(t *testing.T) {
	repo := newMemKeyRepo()
	ks := New(repo, "passphrase")
	ctx := context.Background()

	key, err := ks.Issue(ctx, "shift-1")
	require.NoError(t, err)
	assert.Len(t, key, sealbox.KeySize)

	got, err := ks.Get(ctx, "shift-1")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	require.NoError(t, ks.Destroy(ctx, "shift-1"))
	_, err = ks.Get(ctx, "shift-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKeystore_KeysAreWrappedAtRest(t *testing.T) {
	repo := newMemKeyRepo()
	ks := New(repo, "passphrase")
	ctx := context.Background()

	key, err := ks.Issue(ctx, "shift-1")
	require.NoError(t, err)

	wrapped := repo.wrapped["shift-1"]
	assert.NotContains(t, string(wrapped), string(key))
	assert.Len(t, wrapped, sealbox.KeySize+sealbox.NonceSize+sealbox.Overhead)
}

func TestKeystore_SurvivesRestartWithSamePassphrase(t *testing.T) {
	repo := newMemKeyRepo()
	ctx := context.Background()

	key, err := New(repo, "passphrase").Issue(ctx, "shift-1")
	require.NoError(t, err)

	got, err := New(repo, "passphrase").Get(ctx, "shift-1")
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestKeystore_WrongPassphraseFailsClosed(t *testing.T) {
	repo := newMemKeyRepo()
	ctx := context.Background()

	_, err := New(repo, "passphrase").Issue(ctx, "shift-1")
	require.NoError(t, err)

	_, err = New(repo, "other").Get(ctx, "shift-1")
	assert.ErrorIs(t, err, sealbox.ErrTamperedOrCorrupted)
}

func TestKeystore_FreshKeyPerShift(t *testing.T) {
	ks := New(newMemKeyRepo(), "passphrase")
	ctx := context.Background()

	k1, err := ks.Issue(ctx, "shift-1")
	require.NoError(t, err)
	k2, err := ks.Issue(ctx, "shift-2")
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
}
