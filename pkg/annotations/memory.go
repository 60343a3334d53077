package annotations

import (
	"context"
	"sync"

	"github.com/rexliu/folio/pkg/core"
	"github.com/rexliu/folio/pkg/wire"
)

// MemoryStore keeps entries in a map for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	newID   func() string
}

// NewMemoryStore returns an empty store minting UUIDs.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		newID:   core.NewAnnotationID,
	}
}

func (s *MemoryStore) List(ctx context.Context, chapter string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range s.entries {
		if e.Chapter == chapter {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok, nil
}

func (s *MemoryStore) Insert(ctx context.Context, chapter string, record wire.Object) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	for _, taken := s.entries[id]; taken; _, taken = s.entries[id] {
		id = s.newID()
	}
	e := Entry{ID: id, Chapter: chapter, Record: Stamp(record, id)}
	s.entries[id] = e
	return e, nil
}

func (s *MemoryStore) Replace(ctx context.Context, id string, record wire.Object) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false, nil
	}
	e.Record = record.Clone()
	s.entries[id] = e
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
