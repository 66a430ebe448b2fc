package transfer

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store for demo/test use.
type MemoryStore struct {
	mu        sync.RWMutex
	transfers map[string]*Transfer // id → transfer
	bySender  map[string][]string  // senderID → ids, oldest first
}

// NewMemoryStore creates an in-memory transfer store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transfers: make(map[string]*Transfer),
		bySender:  make(map[string][]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, t *Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.transfers[t.ID] = &cp
	s.bySender[t.SenderID] = append(s.bySender[t.SenderID], t.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transfers[id]
	if !ok {
		return nil, ErrTransferNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListBySender(_ context.Context, senderID string, limit int) ([]*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySender[senderID]
	result := make([]*Transfer, 0, len(ids))
	for _, id := range ids {
		cp := *s.transfers[id]
		result = append(result, &cp)
	}

	// Same order as the SQL store: created_at DESC, id DESC
	slices.SortFunc(result, func(a, b *Transfer) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ Store = (*MemoryStore)(nil)
