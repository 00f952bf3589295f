package store

import (
	"sync"

	"github.com/heysubinoy/pyazdoc/pkg/kv"
)

// MemStore is an in-memory implementation of the kv.Store interface.
// It uses a map protected by a RWMutex for thread-safe operations.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// Compile-time checks to ensure MemStore implements kv.Store and kv.Dumper.
var (
	_ kv.Store  = (*MemStore)(nil)
	_ kv.Dumper = (*MemStore)(nil)
)

// NewMemStore creates and returns a new MemStore instance.
func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string]string),
	}
}

// Get retrieves a slot from the store.
// Never fails; found reports whether the slot exists.
func (s *MemStore) Get(name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[name]
	return val, ok, nil
}

// Set stores a slot in the store.
// Always returns nil for in-memory operations.
func (s *MemStore) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[name] = value
	return nil
}

// Delete removes a slot from the store.
// Always returns nil, even if the slot doesn't exist.
func (s *MemStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, name)
	return nil
}

// Dump returns a copy of all slots.
func (s *MemStore) Dump() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

// Replace swaps the contents of the store for a copy of slots.
func (s *MemStore) Replace(slots map[string]string) error {
	data := make(map[string]string, len(slots))
	for k, v := range slots {
		data[k] = v
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}
