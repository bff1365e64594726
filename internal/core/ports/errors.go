package ports

import "errors"

// ErrInsufficientFunds is returned by WalletService.FundTransaction and
// TxBuilder.Build when the wallet cannot cover the policy amounts.
var ErrInsufficientFunds = errors.New("insufficient funds")
