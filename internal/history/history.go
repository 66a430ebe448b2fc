// Package history reduces a sender's past transfers into the rolling-window
// aggregates consumed by the fraud scorer, and defines the store that owns
// those transfers.
package history

import (
	"context"
	"strings"
	"time"
)

const (
	// Window24h is the velocity window.
	Window24h = 24 * time.Hour
	// Window7d is the average-amount window.
	Window7d = 7 * 24 * time.Hour
)

// Record is a single past transfer as handed over by the store.
// CreatedAt is kept as text so that a malformed value from the store can
// still be scored instead of failing the whole snapshot.
type Record struct {
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

// NewRecord builds a Record from a concrete instant.
func NewRecord(amount float64, at time.Time) Record {
	return Record{Amount: amount, CreatedAt: at.UTC().Format(time.RFC3339Nano)}
}

// Summary holds the aggregates the scorer needs.
type Summary struct {
	Count24h int     `json:"count_24h"`
	Avg7d    float64 `json:"avg_7d"`
}

// Store owns the transfer history. Recent returns most-recent-first.
type Store interface {
	Recent(ctx context.Context, senderID string, limit int) ([]Record, error)
	Append(ctx context.Context, senderID string, rec Record) error
}

// Summarize computes the 24h count and 7d average as of now.
// Records whose timestamp cannot be parsed count as happening at now.
func Summarize(records []Record, now time.Time) Summary {
	if len(records) == 0 {
		return Summary{}
	}

	now = now.UTC()
	t24 := now.Add(-Window24h)
	t7d := now.Add(-Window7d)

	var (
		count24 int
		sum7    float64
		n7      int
	)
	for _, r := range records {
		ts, ok := ParseTimestamp(r.CreatedAt)
		if !ok {
			ts = now
		}
		if !ts.Before(t24) {
			count24++
		}
		if !ts.Before(t7d) {
			sum7 += r.Amount
			n7++
		}
	}

	s := Summary{Count24h: count24}
	if n7 > 0 {
		s.Avg7d = sum7 / float64(n7)
	}
	return s
}

// Naive layouts are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.DateOnly,
}

// ParseTimestamp parses the ISO-8601 variants stores emit.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
