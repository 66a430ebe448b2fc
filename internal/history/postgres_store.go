package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore reads and appends transfer history in PostgreSQL.
// The transfer_history table is created by the goose migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed history store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, senderID string, rec Record) error {
	createdAt, ok := ParseTimestamp(rec.CreatedAt)
	if !ok {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_history (sender_id, amount, created_at)
		VALUES ($1, $2, $3)
	`, senderID, rec.Amount, createdAt)
	if err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, senderID string, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT amount, created_at
		FROM transfer_history
		WHERE sender_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, senderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Record
	for rows.Next() {
		var (
			amount    float64
			createdAt time.Time
		)
		if err := rows.Scan(&amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		result = append(result, NewRecord(amount, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return result, nil
}

var _ Store = (*PostgresStore)(nil)
