package transfer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mbd888/remitwise/internal/rates"
)

// PostgresStore persists transfers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed transfer store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const transferColumns = `id, sender_id, recipient_name, recipient_email, amount,
	source_currency, target_currency, exchange_rate, fees, recipient_receives,
	rate_source, status, assessment_id, fraud_analysis, created_at`

func (s *PostgresStore) Create(ctx context.Context, t *Transfer) error {
	analysis, err := json.Marshal(t.FraudAnalysis)
	if err != nil {
		return fmt.Errorf("failed to marshal fraud analysis: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transfers (`+transferColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		t.ID,
		t.SenderID,
		t.RecipientName,
		t.RecipientEmail,
		t.Amount,
		t.SourceCurrency,
		t.TargetCurrency,
		t.ExchangeRate,
		t.Fees,
		t.RecipientReceives,
		string(t.RateSource),
		string(t.Status),
		t.AssessmentID,
		analysis,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Transfer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListBySender(ctx context.Context, senderID string, limit int) ([]*Transfer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE sender_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, senderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfers: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransfer(sc scanner) (*Transfer, error) {
	var (
		t          Transfer
		rateSource string
		status     string
		analysis   []byte
	)
	err := sc.Scan(&t.ID, &t.SenderID, &t.RecipientName, &t.RecipientEmail, &t.Amount,
		&t.SourceCurrency, &t.TargetCurrency, &t.ExchangeRate, &t.Fees, &t.RecipientReceives,
		&rateSource, &status, &t.AssessmentID, &analysis, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.RateSource = rates.Source(rateSource)
	t.Status = Status(status)
	if err := json.Unmarshal(analysis, &t.FraudAnalysis); err != nil {
		return nil, fmt.Errorf("failed to decode fraud analysis: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

var _ Store = (*PostgresStore)(nil)
