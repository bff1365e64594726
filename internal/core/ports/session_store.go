package ports

import (
	"context"

	"github.com/cityofzion/faucetd/internal/core/domain"
)

// SessionStore is the single-slot mailbox holding the most recent successful
// disbursement until the result view consumes it. Set overwrites the slot,
// last write wins.
type SessionStore interface {
	Set(ctx context.Context, tx *domain.Transaction) error
	// TakeAndClear atomically reads and empties the slot. Returns nil when
	// the slot is empty.
	TakeAndClear(ctx context.Context) (*domain.Transaction, error)
	Close()
}
