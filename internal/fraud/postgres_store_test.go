package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/remitwise/internal/history"
	"github.com/mbd888/remitwise/internal/pagination"
	"github.com/mbd888/remitwise/internal/testutil"
)

func TestPostgresStore_RecordAndList(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first := &AuditRecord{
		ID:       uuid.NewString(),
		SenderID: "alice",
		Amount:   1000,
		Corridor: "USD-PHP",
		Assessment: Assessment{
			Score:    50,
			Decision: DecisionReview,
			Flags:    []Flag{FlagHighVelocity, FlagNewRecipient, FlagNighttime},
			History:  history.Summary{Count24h: 3, Avg7d: 500},
		},
		EvaluatedAt: now.Add(-time.Minute),
	}
	second := &AuditRecord{
		ID:          uuid.NewString(),
		SenderID:    "alice",
		Amount:      20,
		Corridor:    "USD-EUR",
		Assessment:  Assessment{Score: 0, Decision: DecisionAllow, Flags: []Flag{}},
		EvaluatedAt: now,
	}
	require.NoError(t, store.Record(ctx, first))
	require.NoError(t, store.Record(ctx, second))

	got, err := store.ListBySender(ctx, "alice", 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, first.Assessment.Flags, got[1].Assessment.Flags)
	assert.Equal(t, first.Assessment.History, got[1].Assessment.History)
	assert.Equal(t, DecisionReview, got[1].Assessment.Decision)

	page, err := store.ListBySender(ctx, "alice", 10, &pagination.Cursor{At: second.EvaluatedAt, ID: second.ID})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}
