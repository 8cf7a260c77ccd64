package secret

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

const keychainService = "galleries-backend"

// EnvBackendToken overrides the stored backend token.
const EnvBackendToken = "GALLERIES_BACKEND_TOKEN"

// KeychainStore implements SecretStore using the macOS Keychain
// via the `security` CLI tool.
type KeychainStore struct{}

// NewKeychainStore creates a new KeychainStore.
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{}
}

// Default returns the keychain on macOS and an in-memory store elsewhere.
// In both cases GALLERIES_BACKEND_TOKEN, when set, seeds the backend token.
func Default() SecretStore {
	var store SecretStore = NewMemoryStore()
	if runtime.GOOS == "darwin" {
		store = NewKeychainStore()
	}
	if tok := os.Getenv(EnvBackendToken); tok != "" {
		if _, ok := store.(*MemoryStore); ok {
			store.Set(BackendTokenKey, []byte(tok))
		} else {
			store = &envOverride{SecretStore: store, key: BackendTokenKey, value: tok}
		}
	}
	return store
}

// envOverride answers Get for one key from the environment.
type envOverride struct {
	SecretStore
	key   string
	value string
}

func (e *envOverride) Get(key string) ([]byte, error) {
	if key == e.key {
		return []byte(e.value), nil
	}
	return e.SecretStore.Get(key)
}

// Set stores a secret in the macOS Keychain, replacing any existing value.
func (k *KeychainStore) Set(key string, value []byte) error {
	k.Delete(key)

	cmd := exec.Command("security", "add-generic-password",
		"-a", key,
		"-s", keychainService,
		"-w", string(value),
		"-U",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("keychain set: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Get retrieves a secret from the macOS Keychain.
// Returns empty slice and nil error if the key doesn't exist.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	cmd := exec.Command("security", "find-generic-password",
		"-a", key,
		"-s", keychainService,
		"-w",
	)
	out, err := cmd.Output()
	if err != nil {
		// exit code 44: item not found
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 44 {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain get: %w", err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes a secret from the macOS Keychain.
func (k *KeychainStore) Delete(key string) error {
	cmd := exec.Command("security", "delete-generic-password",
		"-a", key,
		"-s", keychainService,
	)
	cmd.Run() // item may not exist
	return nil
}
