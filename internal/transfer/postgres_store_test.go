package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/remitwise/internal/fraud"
	"github.com/mbd888/remitwise/internal/history"
	"github.com/mbd888/remitwise/internal/rates"
	"github.com/mbd888/remitwise/internal/testutil"
)

func TestPostgresStore_CreateGetList(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	older := &Transfer{
		ID:                uuid.NewString(),
		SenderID:          "alice",
		RecipientName:     "Maria",
		RecipientEmail:    "maria@example.com",
		Amount:            1000,
		SourceCurrency:    "USD",
		TargetCurrency:    "PHP",
		ExchangeRate:      55.6525,
		Fees:              17,
		RecipientReceives: 54706.41,
		RateSource:        rates.SourceLive,
		Status:            StatusReview,
		AssessmentID:      uuid.NewString(),
		FraudAnalysis: fraud.Assessment{
			Score:    40,
			Decision: fraud.DecisionReview,
			Flags:    []fraud.Flag{fraud.FlagNewRecipient, fraud.FlagNighttime},
			History:  history.Summary{Count24h: 1, Avg7d: 250},
		},
		CreatedAt: now.Add(-time.Minute),
	}
	newer := &Transfer{
		ID:             uuid.NewString(),
		SenderID:       "alice",
		Amount:         20,
		SourceCurrency: "USD",
		TargetCurrency: "MXN",
		ExchangeRate:   16.7,
		RateSource:     rates.SourceStatic,
		Status:         StatusBlocked,
		AssessmentID:   uuid.NewString(),
		FraudAnalysis:  fraud.Assessment{Score: 85, Decision: fraud.DecisionBlock, Flags: []fraud.Flag{}},
		CreatedAt:      now,
	}
	require.NoError(t, store.Create(ctx, older))
	require.NoError(t, store.Create(ctx, newer))

	got, err := store.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.True(t, older.CreatedAt.Equal(got.CreatedAt))
	got.CreatedAt = older.CreatedAt
	assert.Equal(t, older, got)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrTransferNotFound)

	list, err := store.ListBySender(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, StatusBlocked, list[0].Status)
	assert.Equal(t, older.ID, list[1].ID)

	list, err = store.ListBySender(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = store.ListBySender(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
