package ports

import (
	"context"

	"github.com/cityofzion/faucetd/internal/core/domain"
)

type TxBuilder interface {
	// Build produces a funded, unsigned transfer with the two policy-fixed
	// outputs, both targeting destination. Amounts are server-side constants,
	// never taken from the request.
	Build(ctx context.Context, destination domain.Identity) (*domain.Transaction, error)
}
