package interaction

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goccyjson "github.com/goccy/go-json"
)

// docStore is a namespaced, file-backed document store shared by the
// three collections spec.md section 4.11 names (interactions,
// interactions_threads, interactions_responses). Grounded on
// pkg/checkpoint/store.go's temp-file + fsync + rename discipline,
// generalized to an arbitrary value type per collection.
type docStore struct {
	dir string
	mu  sync.Mutex
}

func newDocStore(rootDir, collection string) (*docStore, error) {
	dir := filepath.Join(rootDir, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("interaction: %s: %w", collection, err)
	}
	return &docStore{dir: dir}, nil
}

func (s *docStore) put(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := goccyjson.Marshal(v)
	if err != nil {
		return err
	}
	path := s.path(key)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (s *docStore) get(key string, out any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := goccyjson.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("interaction: corrupt document %q: %w", key, err)
	}
	return true, nil
}

func (s *docStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
