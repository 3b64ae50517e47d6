// Package objectstore defines the ancillary key/value blob store
// interface that user-supplied offloaded functions may use from
// inside the remote execution engine (grounded on the original
// source's MinIO-backed client). The core facade never imports this
// package; it exists purely as a collaborator contract for function
// bodies, with an in-memory reference implementation for examples and
// tests.
package objectstore

import (
	"sync"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/util"
)

// Store is a minimal key/value blob store.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// MemoryStore is an in-memory Store, useful for testing offloaded
// functions without a real object-storage backend.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Get returns the bytes stored under key.
func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.objects[key]
	if !ok {
		return nil, util.NewExecutionError(key, "object not found")
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores value under key, overwriting any existing object.
func (s *MemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	s.objects[key] = stored
	return nil
}

// Delete removes key, if present. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}
