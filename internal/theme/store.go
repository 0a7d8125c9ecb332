package theme

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Store is a small string key-value store.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// FileStore keeps all keys in one JSON object on disk. Keys are
// case-insensitive and written in lower case.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is bun/storage.json under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "bun", "storage.json"), nil
}

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.load()
	if err != nil {
		return "", false, err
	}
	if !v.IsSet(key) {
		return "", false, nil
	}
	return v.GetString(key), true, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.load()
	if err != nil {
		return err
	}
	v.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := v.WriteConfigAs(tmp); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return os.Rename(tmp, f.path)
}

// load reads the store file into a fresh viper instance. A missing or empty
// file is an empty store.
func (f *FileStore) load() (*viper.Viper, error) {
	// Keys are flat, so dots in them must not nest.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigType("json")
	v.SetConfigFile(f.path)

	info, err := os.Stat(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if info.Size() == 0 {
		return v, nil
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", f.path, err)
	}
	return v, nil
}

// Load returns the persisted scheme. ok is false when none was saved.
func Load(s Store) (scheme Scheme, ok bool, err error) {
	raw, found, err := s.Get(StorageKey)
	if err != nil || !found {
		return Scheme{}, false, err
	}
	if err := json.Unmarshal([]byte(raw), &scheme); err != nil {
		return Scheme{}, false, err
	}
	return scheme, true, nil
}

// Save persists scheme as a JSON tuple.
func Save(s Store, scheme Scheme) error {
	b, err := json.Marshal(scheme)
	if err != nil {
		return err
	}
	return s.Set(StorageKey, string(b))
}
