// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides thread-safe OS keychain operations for classpass.
// It manages all interactions with the OS keychain/credential store: the persisted
// session record (when the keychain store is selected) and the directory DSN used by
// the Postgres identity provider.
//
// The package supports macOS Keychain, Windows Credential Manager, the Secret Service
// and KWallet on Linux, and pass(1) everywhere it is installed.
package keychain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"classpass/cli/internal/xdg"

	"github.com/99designs/keyring"
)

// FilePasswordEnv supplies the passphrase of the encrypted file backend non-interactively.
const FilePasswordEnv = "CLASSPASS_KEYRING_PASSWORD"

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "classpass"

// Keys used for storing secrets in the OS keychain.
const (
	KeySession      = "session_record"
	KeyDirectoryDSN = "directory_dsn"
)

// ErrNotFound is returned when a key has no item in the keychain.
var ErrNotFound = keyring.ErrKeyNotFound

// Manager provides thread-safe operations on one keyring.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// Open opens the OS keyring restricted to the named backends
// ("keychain", "wincred", "secret-service", "kwallet", "pass", "file").
// An empty list selects the native backends of the current OS.
func Open(backends []string) (*Manager, error) {
	allowed, err := allowedBackends(backends)
	if err != nil {
		return nil, err
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowed,
		PassPrefix:      ServiceName,
		KeychainName:    "login",
		// Hint prefixes where supported to minimize namespace collisions
		WinCredPrefix:           ServiceName,
		LibSecretCollectionName: ServiceName,
		KWalletAppID:            ServiceName,
		KWalletFolder:           ServiceName,
	}

	if dir, err := xdg.StateDir(); err == nil {
		cfg.FileDir = filepath.Join(dir, "keyring")
	}
	if pw := os.Getenv(FilePasswordEnv); pw != "" {
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(pw)
	} else {
		cfg.FilePasswordFunc = keyring.TerminalPrompt
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keychain (%s): %w", describeBackends(allowed), err)
	}
	return &Manager{ring: ring}, nil
}

// NewManager wraps an already opened keyring.
func NewManager(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

func allowedBackends(names []string) ([]keyring.BackendType, error) {
	if len(names) == 0 {
		switch runtime.GOOS {
		case "darwin":
			// Pass requires 'pass' utility installed: brew install pass
			return []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}, nil
		case "windows":
			return []keyring.BackendType{keyring.WinCredBackend}, nil
		default:
			return []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}, nil
		}
	}

	out := make([]keyring.BackendType, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "keychain":
			out = append(out, keyring.KeychainBackend)
		case "wincred":
			out = append(out, keyring.WinCredBackend)
		case "secret-service", "secretservice":
			out = append(out, keyring.SecretServiceBackend)
		case "kwallet":
			out = append(out, keyring.KWalletBackend)
		case "pass":
			out = append(out, keyring.PassBackend)
		case "file":
			out = append(out, keyring.FileBackend)
		default:
			return nil, fmt.Errorf("unknown keychain backend %q", n)
		}
	}
	return out, nil
}

func describeBackends(b []keyring.BackendType) string {
	parts := make([]string, len(b))
	for i, t := range b {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

// Set stores data under key, replacing any previous item.
// This method is thread-safe.
func (m *Manager) Set(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: key, Data: data, Label: ServiceName + " " + key})
}

// Get retrieves the item stored under key. A missing item yields ErrNotFound.
// This method is thread-safe.
func (m *Manager) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, err := m.ring.Get(key)
	if err != nil {
		return nil, err
	}
	return it.Data, nil
}

// Remove deletes the item stored under key; a missing item is not an error.
// This method is thread-safe.
func (m *Manager) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ring.Remove(key); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// SaveDirectoryDSN stores the Postgres directory DSN in the keychain.
func (m *Manager) SaveDirectoryDSN(dsn string) error {
	return m.Set(KeyDirectoryDSN, []byte(dsn))
}

// LoadDirectoryDSN retrieves the Postgres directory DSN from the keychain.
func (m *Manager) LoadDirectoryDSN() (string, error) {
	b, err := m.Get(KeyDirectoryDSN)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", errors.New("empty directory DSN")
	}
	return string(b), nil
}

// ClearDirectoryDSN removes the directory DSN from the keychain.
func (m *Manager) ClearDirectoryDSN() error {
	return m.Remove(KeyDirectoryDSN)
}

// ClearAll removes every classpass secret from the keychain.
func (m *Manager) ClearAll() error {
	return errors.Join(m.Remove(KeySession), m.Remove(KeyDirectoryDSN))
}

func isNotFound(err error) bool {
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return true
	}
	// Some backends report a missing item with their own error text.
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
