package txbuilder

import (
	"context"

	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/cityofzion/faucetd/internal/core/ports"
)

type txBuilder struct {
	wallet        ports.WalletService
	dripPrimary   domain.Fixed8
	dripSecondary domain.Fixed8
}

func NewTxBuilder(
	wallet ports.WalletService, dripPrimary, dripSecondary domain.Fixed8,
) ports.TxBuilder {
	return &txBuilder{
		wallet:        wallet,
		dripPrimary:   dripPrimary,
		dripSecondary: dripSecondary,
	}
}

// Build shapes the two policy outputs and hands the transaction to the wallet
// for input selection and fee coverage. The amounts are fixed here and
// nowhere else; nothing client-supplied reaches them.
func (b *txBuilder) Build(
	ctx context.Context, destination domain.Identity,
) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		Outputs: []domain.TransferOutput{
			{
				Asset:  domain.AssetSecondary,
				Amount: b.dripSecondary,
				To:     destination,
			},
			{
				Asset:  domain.AssetPrimary,
				Amount: b.dripPrimary,
				To:     destination,
			},
		},
	}

	if err := b.wallet.FundTransaction(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}
