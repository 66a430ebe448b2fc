package history

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for demo/test use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record // senderID → records, oldest first
}

// NewMemoryStore creates an in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]Record),
	}
}

func (s *MemoryStore) Append(_ context.Context, senderID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[senderID] = append(s.records[senderID], rec)
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, senderID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[senderID]
	if len(all) == 0 {
		return nil, nil
	}

	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}

	result := make([]Record, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		result = append(result, all[i])
	}
	return result, nil
}

var _ Store = (*MemoryStore)(nil)
