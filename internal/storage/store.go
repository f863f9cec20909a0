// Package storage persists named JSON documents: the durable key-value store
// behind progress tracking. Every write replaces whole documents.
package storage

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Document is one named blob in the store.
type Document struct {
	Key  string
	Body []byte
}

// DocumentStore reads and writes whole documents by key.
type DocumentStore interface {
	// Get returns the document body. found is false when the key is absent.
	Get(key string) (body []byte, found bool, err error)
	// Put replaces every given document. Backends apply the batch atomically
	// where they can.
	Put(docs ...Document) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(keys ...string) error
}

// MemoryStore is an in-memory implementation of DocumentStore.
type MemoryStore struct {
	docs map[string][]byte
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]byte),
	}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(body), true, nil
}

func (s *MemoryStore) Put(docs ...Document) error {
	for _, d := range docs {
		if d.Key == "" {
			return fmt.Errorf("document key is required")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.docs[d.Key] = slices.Clone(d.Body)
	}
	return nil
}

func (s *MemoryStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.docs, k)
	}
	return nil
}
