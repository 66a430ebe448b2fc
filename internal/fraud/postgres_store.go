package fraud

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mbd888/remitwise/internal/pagination"
)

// PostgresStore persists fraud assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, rec *AuditRecord) error {
	flags := make([]string, len(rec.Assessment.Flags))
	for i, f := range rec.Assessment.Flags {
		flags[i] = string(f)
	}
	historyJSON, err := json.Marshal(rec.Assessment.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fraud_assessments (id, sender_id, amount, corridor, score, decision, flags, history, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.ID,
		rec.SenderID,
		rec.Amount,
		rec.Corridor,
		rec.Assessment.Score,
		string(rec.Assessment.Decision),
		pq.Array(flags),
		historyJSON,
		rec.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record fraud assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySender(ctx context.Context, senderID string, limit int, after *pagination.Cursor) ([]*AuditRecord, error) {
	var (
		afterAt sql.NullTime
		afterID sql.NullString
	)
	if after != nil {
		afterAt = sql.NullTime{Time: after.At, Valid: true}
		afterID = sql.NullString{String: after.ID, Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, amount, corridor, score, decision, flags, history, evaluated_at
		FROM fraud_assessments
		WHERE sender_id = $1
		  AND ($2::timestamptz IS NULL OR (evaluated_at, id) < ($2, $3))
		ORDER BY evaluated_at DESC, id DESC
		LIMIT $4
	`, senderID, afterAt, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fraud assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*AuditRecord
	for rows.Next() {
		var (
			rec         AuditRecord
			decision    string
			flags       []string
			historyJSON []byte
			evaluatedAt time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.SenderID, &rec.Amount, &rec.Corridor,
			&rec.Assessment.Score, &decision, pq.Array(&flags), &historyJSON, &evaluatedAt); err != nil {
			continue
		}
		rec.Assessment.Decision = Decision(decision)
		rec.Assessment.Flags = make([]Flag, len(flags))
		for i, f := range flags {
			rec.Assessment.Flags[i] = Flag(f)
		}
		_ = json.Unmarshal(historyJSON, &rec.Assessment.History)
		rec.EvaluatedAt = evaluatedAt
		result = append(result, &rec)
	}
	return result, nil
}

var _ Store = (*PostgresStore)(nil)
