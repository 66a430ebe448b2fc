package transfer

import (
	"context"
	"errors"
)

// ErrTransferNotFound is returned when a transfer does not exist or belongs
// to another sender.
var ErrTransferNotFound = errors.New("transfer not found")

// Store persists submitted transfers, blocked ones included.
type Store interface {
	Create(ctx context.Context, t *Transfer) error
	Get(ctx context.Context, id string) (*Transfer, error)
	ListBySender(ctx context.Context, senderID string, limit int) ([]*Transfer, error)
}
