package keyring

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"

	"github.com/fieldstock/shiftledger/internal/domain"
	"github.com/fieldstock/shiftledger/internal/sealbox"
)

const deviceSecretFile = "device.secret"

// File is a Store backed by per-shift files. Each session key is wrapped
// with a device key derived by argon2id from a device-local random secret,
// standing in for the mobile platform's secure enclave so a restarted
// process can resume a crash-interrupted shift. The session key itself is
// never written to disk unencrypted.
type File struct {
	dir    string
	secret []byte
}

// NewFile opens (creating if needed) a file keyring in dir. The device
// secret is generated on first use with 0600 permissions.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("keyring dir: %w", err)
	}

	path := filepath.Join(dir, deviceSecretFile)
	secret, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		secret, err = sealbox.NewKey()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, secret, 0o600); err != nil {
			return nil, fmt.Errorf("write device secret: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read device secret: %w", err)
	}

	return &File{dir: dir, secret: secret}, nil
}

func (f *File) Put(shiftID string, key []byte) error {
	kek := f.deviceKey(shiftID)
	defer sealbox.Wipe(kek)

	blob, err := sealbox.Seal(key, kek)
	if err != nil {
		return fmt.Errorf("wrap session key: %w", err)
	}
	if err := os.WriteFile(f.keyPath(shiftID), blob, 0o600); err != nil {
		return fmt.Errorf("write session key: %w", err)
	}
	return nil
}

func (f *File) Get(shiftID string) ([]byte, error) {
	blob, err := os.ReadFile(f.keyPath(shiftID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session key: %w", err)
	}

	kek := f.deviceKey(shiftID)
	defer sealbox.Wipe(kek)

	key, err := sealbox.Open(blob, kek)
	if err != nil {
		return nil, fmt.Errorf("unwrap session key: %w", err)
	}
	return key, nil
}

func (f *File) Delete(shiftID string) error {
	err := os.Remove(f.keyPath(shiftID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session key: %w", err)
	}
	return nil
}

func (f *File) keyPath(shiftID string) string {
	return filepath.Join(f.dir, shiftID+".key")
}

// deviceKey derives the wrapping key for one shift. The shift id acts as
// the salt, binding each key file to its shift.
func (f *File) deviceKey(shiftID string) []byte {
	return argon2.IDKey(f.secret, []byte(shiftID), 1, 64*1024, 4, sealbox.KeySize)
}

var _ Store = (*File)(nil)
