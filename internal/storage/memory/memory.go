// Package memory provides a process-local storage.Store.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/chorbazzar/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps records in a map. State is lost on restart.
type Store struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string][]byte)}
}

// Get returns a copy of the record stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.records[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put replaces the record stored under key.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = append([]byte(nil), value...)
	return nil
}
