// Package memstore is an in-memory docstore.Store for tests and local
// development.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/shipstack/courier-api/internal/integrations/docstore"
)

type object struct {
	contentType string
	body        []byte
}

// Store keeps documents in a map.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{objects: make(map[string]object)}
}

func (s *Store) Put(_ context.Context, key string, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{contentType: contentType, body: append([]byte(nil), body...)}
	return nil
}

func (s *Store) Presign(_ context.Context, key string, _ time.Duration) (string, error) {
	return "memstore://" + key, nil
}

// Get returns the stored body, for test assertions.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o.body, ok
}
