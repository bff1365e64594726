package ports

import (
	"context"

	"github.com/cityofzion/faucetd/internal/core/domain"
)

// Relayer submits authorized transactions to the ledger network.
type Relayer interface {
	// Relay hands the signed transaction to the node for broadcast. The
	// boolean reports whether the network accepted it.
	Relay(ctx context.Context, tx *domain.Transaction) (bool, error)
	// PersistBlocks commits newly received blocks on the node by one tick.
	PersistBlocks(ctx context.Context) error
	Close()
}
