package application

import "github.com/cityofzion/faucetd/internal/core/domain"

// Status is the informational read path backing the landing page: current
// balances of the two asset kinds, the chain height and the wallet's own
// height. It never mutates state.
type Status struct {
	Height        uint32
	WalletHeight  uint32
	Primary       domain.Fixed8
	Secondary     domain.Fixed8
	DripPrimary   domain.Fixed8
	DripSecondary domain.Fixed8
}

// LowFunds reports whether either balance no longer covers its fixed
// disbursement amount.
func (s Status) LowFunds() bool {
	return s.Primary < s.DripPrimary || s.Secondary < s.DripSecondary
}
