package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/remitwise/internal/testutil"
)

func TestPostgresStore_AppendAndRecent(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.Append(ctx, "alice", NewRecord(10, base.Add(-3*time.Hour))))
	require.NoError(t, store.Append(ctx, "alice", NewRecord(20, base.Add(-2*time.Hour))))
	require.NoError(t, store.Append(ctx, "alice", NewRecord(30, base.Add(-1*time.Hour))))
	require.NoError(t, store.Append(ctx, "bob", NewRecord(99, base)))

	got, err := store.Recent(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 30.0, got[0].Amount)
	assert.Equal(t, 20.0, got[1].Amount)

	s := Summarize(got, base)
	assert.Equal(t, 2, s.Count24h)
	assert.InDelta(t, 25.0, s.Avg7d, 1e-9)
}

func TestPostgresStore_MalformedTimestampStoredAsNow(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "carol", Record{Amount: 5, CreatedAt: "garbage"}))

	got, err := store.Recent(ctx, "carol", 20)
	require.NoError(t, err)
	require.Len(t, got, 1)

	ts, ok := ParseTimestamp(got[0].CreatedAt)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}
