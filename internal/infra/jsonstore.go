package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// JSONStore is an on-disk cache of source responses laid out as
// <root>/<namespace>/<key>.json. A stored entry is never expired; callers
// decide when to refetch.
type JSONStore struct {
	root string
}

// NewJSONStore returns a store rooted at dir.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{root: dir}
}

// Root returns the store's base directory.
func (s *JSONStore) Root() string { return s.root }

func (s *JSONStore) path(namespace, key string) string {
	return filepath.Join(s.root, namespace, safeKey(key)+".json")
}

// Has reports whether an entry exists.
func (s *JSONStore) Has(namespace, key string) bool {
	_, err := os.Stat(s.path(namespace, key))
	return err == nil
}

// Load decodes the entry into dest. It returns false, nil when the entry
// does not exist.
func (s *JSONStore) Load(namespace, key string, dest any) (bool, error) {
	data, err := os.ReadFile(s.path(namespace, key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

// Save encodes v and writes it atomically.
func (s *JSONStore) Save(namespace, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", namespace, key, err)
	}
	return WriteFileAtomic(s.path(namespace, key), data)
}

// Delete removes an entry if present.
func (s *JSONStore) Delete(namespace, key string) error {
	err := os.Remove(s.path(namespace, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Keys lists the stored keys of a namespace in sorted order.
func (s *JSONStore) Keys(namespace string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, namespace))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, "_") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, creating parent directories as needed.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// safeKey maps a ticker or CIK to a file name. Tickers like BRK/B or
// BF.B keep a readable form.
func safeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return r.Replace(strings.ToUpper(key))
}
