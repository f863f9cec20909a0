package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps each document as <dir>/<key>.json.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file-backed store, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Get(key string) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return body, true, nil
}

// Put writes every document to a temp file first and renames them into place
// only once all writes succeeded.
func (s *FileStore) Put(docs ...Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type pending struct{ tmp, final string }
	staged := make([]pending, 0, len(docs))
	cleanup := func() {
		for _, p := range staged {
			_ = os.Remove(p.tmp)
		}
	}

	for _, d := range docs {
		final, err := s.path(d.Key)
		if err != nil {
			cleanup()
			return err
		}
		tmp, err := os.CreateTemp(s.dir, "."+d.Key+"-*.tmp")
		if err != nil {
			cleanup()
			return fmt.Errorf("stage %s: %w", d.Key, err)
		}
		staged = append(staged, pending{tmp: tmp.Name(), final: final})
		_, werr := tmp.Write(d.Body)
		cerr := tmp.Close()
		if err := errors.Join(werr, cerr); err != nil {
			cleanup()
			return fmt.Errorf("write %s: %w", d.Key, err)
		}
	}

	for i, p := range staged {
		if err := os.Rename(p.tmp, p.final); err != nil {
			for _, rest := range staged[i:] {
				_ = os.Remove(rest.tmp)
			}
			return fmt.Errorf("commit %s: %w", filepath.Base(p.final), err)
		}
	}
	return nil
}

func (s *FileStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		path, err := s.path(k)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid document key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}
