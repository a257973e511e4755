package sealbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	plaintexts := [][]byte{
		[]byte(""),
		[]byte("x"),
		[]byte(`{"barcode":"4006381333931","qty":5}`),
		make([]byte, 4096),
	}

	for _, p := range plaintexts {
		blob, err := Seal(p, key)
		require.NoError(t, err)
		require.Len(t, blob, NonceSize+len(p)+Overhead)

		got, err := Open(blob, key)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	a, err := Seal([]byte("same plaintext"), key)
	require.NoError(t, err)
	b, err := Seal([]byte("same plaintext"), key)
	require.NoError(t, err)

	assert.NotEqual(t, a[:NonceSize], b[:NonceSize])
	assert.NotEqual(t, a, b)
}

func TestOpen_BitFlipFails(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	blob, err := Seal([]byte("opening 20 received 15 sold 8"), key)
	require.NoError(t, err)

	// Flip one bit at every position: nonce, ciphertext and tag alike.
	for i := range blob {
		corrupted := make([]byte, len(blob))
		copy(corrupted, blob)
		corrupted[i] ^= 0x01

		_, err := Open(corrupted, key)
		assert.ErrorIs(t, err, ErrTamperedOrCorrupted, "position %d", i)
	}
}

func TestOpen_TruncatedBlob(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	_, err = Open(make([]byte, NonceSize+Overhead-1), key)
	assert.ErrorIs(t, err, ErrTamperedOrCorrupted)
}

func TestOpen_WrongKey(t *testing.T) {
	k1, err := NewKey()
	require.NoError(t, err)
	k2, err := NewKey()
	require.NoError(t, err)

	blob, err := Seal([]byte("secret"), k1)
	require.NoError(t, err)

	_, err = Open(blob, k2)
	assert.ErrorIs(t, err, ErrTamperedOrCorrupted)
}

func TestSealOpenJSON(t *testing.T) {
	type event struct {
		Barcode string `json:"barcode"`
		Qty     int64  `json:"qty"`
	}

	key, err := NewKey()
	require.NoError(t, err)

	blob, err := SealJSON(event{Barcode: "12345", Qty: 3}, key)
	require.NoError(t, err)

	var got event
	require.NoError(t, OpenJSON(blob, key, &got))
	assert.Equal(t, event{Barcode: "12345", Qty: 3}, got)
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3}
	Wipe(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}
