package secret

import "sync"

// BackendTokenKey is the key the generation backend API token is stored
// under.
const BackendTokenKey = "backend-api-token"

// SecretStore holds sensitive values such as the backend API token.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// TokenSource returns a function reading key from store on every call, so
// a token changed in the settings panel applies to the next request.
func TokenSource(store SecretStore, key string) func() (string, error) {
	return func() (string, error) {
		v, err := store.Get(key)
		if err != nil {
			return "", err
		}
		return string(v), nil
	}
}

// MemoryStore keeps secrets in process memory. Used in tests and when no
// OS keychain is available.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
