package infra

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	storeKeyName = "policy.key"
	storeKeySize = 32 // SQLCipher raw key
)

// storeKeyPath is where the key of the policy store in dataDir lives.
// It sits next to policy.db so both move together.
func storeKeyPath(dataDir string) string {
	return filepath.Join(dataDir, storeKeyName)
}

func newStoreKey() ([]byte, error) {
	key := make([]byte, storeKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate store key: %w", err)
	}
	return key, nil
}

// readStoreKey returns the key in dataDir. A key file that exists but does
// not decode to a full key is an error: replacing it would orphan the store.
func readStoreKey(dataDir string) ([]byte, error) {
	path := storeKeyPath(dataDir)
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil || len(key) != storeKeySize {
		return nil, fmt.Errorf("store key %s is corrupt", path)
	}
	return key, nil
}

// loadOrCreateStoreKey returns the store key, creating it on first use.
// The CLI and the daemon may both be first; O_EXCL makes one of them win and
// the other read the winner's key.
func loadOrCreateStoreKey(dataDir string) ([]byte, error) {
	key, err := readStoreKey(dataDir)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return key, err
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	key, err = newStoreKey()
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(storeKeyPath(dataDir), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		return readStoreKey(dataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create store key: %w", err)
	}
	if _, err := f.WriteString(hex.EncodeToString(key)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write store key: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write store key: %w", err)
	}
	return key, nil
}
