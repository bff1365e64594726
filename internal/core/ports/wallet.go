package ports

import (
	"context"

	"github.com/cityofzion/faucetd/internal/core/domain"
)

// SigningContext is the state of collecting the signatures required to
// authorize a transaction. Completed is true when the authorization threshold
// is met.
type SigningContext struct {
	Completed bool
	Scripts   [][]byte
	// Raw is the serialized signed transaction, set only when Completed.
	Raw []byte
}

// WalletService is the capability surface of the external wallet daemon.
// Input selection, fee calculation and signing internals live behind it.
type WalletService interface {
	// Open unlocks the wallet held by the daemon. Called once at startup;
	// failure is fatal.
	Open(ctx context.Context, path, password string) error
	Balance(ctx context.Context, asset domain.AssetKind) (domain.Fixed8, error)
	Height(ctx context.Context) (uint32, error)
	WalletHeight(ctx context.Context) (uint32, error)
	// ResolveAddress converts a user-supplied address to the ledger's
	// addressing form.
	ResolveAddress(ctx context.Context, addr string) (domain.Identity, error)
	// FundTransaction selects inputs and covers fees for the given outputs,
	// assigning the transaction id. Returns ErrInsufficientFunds when the
	// wallet cannot cover the amounts.
	FundTransaction(ctx context.Context, tx *domain.Transaction) error
	Sign(ctx context.Context, tx *domain.Transaction) (*SigningContext, error)
	// SaveTransaction persists a signed transaction to the wallet's local
	// history so future balance queries reflect the pending spend.
	SaveTransaction(ctx context.Context, tx *domain.Transaction) error
	// ProcessBlocks advances the wallet's view of the ledger by one tick.
	ProcessBlocks(ctx context.Context) error
	// Rebuild resets and resyncs the wallet's transaction index.
	Rebuild(ctx context.Context) error
	Close()
}
