// Package cas turns decomposed content into a content-addressed graph of
// immutable units. A cid is a pure function of the unit's serialized bytes,
// so identical content always lands on the same address and duplicate writes
// are inert.
package cas

import (
	"context"
	"sync"
)

// Store persists content-addressed units. Put must be idempotent: writing an
// existing cid is a no-op, which is what makes concurrent and partial writes
// safe.
type Store interface {
	Put(ctx context.Context, cid string, data []byte) error
	Get(ctx context.Context, cid string) ([]byte, bool, error)
	Has(ctx context.Context, cid string) (bool, error)
}

// MemoryStore is the in-process Store used by tests and single-node runs.
type MemoryStore struct {
	mu    sync.RWMutex
	units map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{units: map[string][]byte{}}
}

func (s *MemoryStore) Put(_ context.Context, cid string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[cid]; ok {
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.units[cid] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, cid string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.units[cid]
	return data, ok, nil
}

func (s *MemoryStore) Has(_ context.Context, cid string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.units[cid]
	return ok, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}
