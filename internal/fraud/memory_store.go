package fraud

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/mbd888/remitwise/internal/pagination"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]*AuditRecord // senderID → records
}

// NewMemoryStore creates an in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]*AuditRecord),
	}
}

func (s *MemoryStore) Record(_ context.Context, rec *AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.SenderID] = append(s.records[rec.SenderID], cloneRecord(rec))
	return nil
}

func (s *MemoryStore) ListBySender(_ context.Context, senderID string, limit int, after *pagination.Cursor) ([]*AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*AuditRecord
	for _, rec := range s.records[senderID] {
		if after.Follows(rec.EvaluatedAt, rec.ID) {
			result = append(result, cloneRecord(rec))
		}
	}

	// Same order as the SQL store: evaluated_at DESC, id DESC
	slices.SortFunc(result, func(a, b *AuditRecord) int {
		if c := b.EvaluatedAt.Compare(a.EvaluatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func cloneRecord(rec *AuditRecord) *AuditRecord {
	cp := *rec
	cp.Assessment.Flags = append([]Flag(nil), rec.Assessment.Flags...)
	return &cp
}

var _ Store = (*MemoryStore)(nil)
