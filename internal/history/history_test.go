package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, fixedNow)
	assert.Equal(t, 0, s.Count24h)
	assert.Equal(t, 0.0, s.Avg7d)

	s = Summarize([]Record{}, fixedNow)
	assert.Equal(t, Summary{}, s)
}

func TestSummarize_Windows(t *testing.T) {
	records := []Record{
		NewRecord(100, fixedNow.Add(-1*time.Hour)),
		NewRecord(200, fixedNow.Add(-23*time.Hour)),
		NewRecord(300, fixedNow.Add(-25*time.Hour)),   // outside 24h, inside 7d
		NewRecord(400, fixedNow.Add(-6*24*time.Hour)), // inside 7d
		NewRecord(900, fixedNow.Add(-8*24*time.Hour)), // outside both
	}

	s := Summarize(records, fixedNow)
	assert.Equal(t, 2, s.Count24h)
	assert.InDelta(t, 250.0, s.Avg7d, 1e-9) // (100+200+300+400)/4
}

func TestSummarize_BoundariesAreInclusive(t *testing.T) {
	records := []Record{
		NewRecord(10, fixedNow.Add(-Window24h)),
		NewRecord(30, fixedNow.Add(-Window7d)),
	}

	s := Summarize(records, fixedNow)
	assert.Equal(t, 1, s.Count24h)
	assert.InDelta(t, 20.0, s.Avg7d, 1e-9)
}

func TestSummarize_UnparseableTimestampCountsAsNow(t *testing.T) {
	records := []Record{
		{Amount: 50, CreatedAt: "not-a-date"},
		{Amount: 150, CreatedAt: ""},
		NewRecord(1000, fixedNow.Add(-30*24*time.Hour)),
	}

	s := Summarize(records, fixedNow)
	assert.Equal(t, 2, s.Count24h)
	assert.InDelta(t, 100.0, s.Avg7d, 1e-9)
}

func TestSummarize_AcceptsStoreLayouts(t *testing.T) {
	for _, ts := range []string{
		"2025-03-10T11:00:00Z",
		"2025-03-10T11:00:00.123456Z",
		"2025-03-10T13:00:00+02:00",
		"2025-03-10T11:00:00",
		"2025-03-10 11:00:00.5",
	} {
		t.Run(ts, func(t *testing.T) {
			parsed, ok := ParseTimestamp(ts)
			require.True(t, ok)
			assert.True(t, parsed.Before(fixedNow))
			assert.True(t, parsed.After(fixedNow.Add(-2*time.Hour)))
		})
	}
}

func TestParseTimestamp_DateOnlyIsMidnight(t *testing.T) {
	parsed, ok := ParseTimestamp("2025-03-08")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), parsed)

	// Two days old: inside the 7d window, outside the 24h one.
	s := Summarize([]Record{{Amount: 40, CreatedAt: "2025-03-08"}}, fixedNow)
	assert.Equal(t, 0, s.Count24h)
	assert.Equal(t, 40.0, s.Avg7d)
}

func TestSummarize_Deterministic(t *testing.T) {
	records := []Record{
		NewRecord(12.5, fixedNow.Add(-2*time.Hour)),
		NewRecord(7.5, fixedNow.Add(-3*24*time.Hour)),
	}
	assert.Equal(t, Summarize(records, fixedNow), Summarize(records, fixedNow))
}

func TestMemoryStore_RecentIsMostRecentFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "sender1", NewRecord(float64(i+1), fixedNow.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, store.Append(ctx, "sender2", NewRecord(99, fixedNow)))

	got, err := store.Recent(ctx, "sender1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 5.0, got[0].Amount)
	assert.Equal(t, 4.0, got[1].Amount)
	assert.Equal(t, 3.0, got[2].Amount)

	all, err := store.Recent(ctx, "sender1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemoryStore_UnknownSender(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.Recent(context.Background(), "nobody", 20)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			_ = store.Append(ctx, fmt.Sprintf("s%d", i%2), NewRecord(1, fixedNow))
			_, _ = store.Recent(ctx, "s0", 20)
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	s0, _ := store.Recent(ctx, "s0", 20)
	s1, _ := store.Recent(ctx, "s1", 20)
	assert.Len(t, s0, 5)
	assert.Len(t, s1, 5)
}
