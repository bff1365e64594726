package ports

import "github.com/cityofzion/faucetd/internal/core/domain"

type RepoManager interface {
	AddressClaims() domain.AddressClaimRepository
	ClientAttempts() domain.ClientAttemptRepository
	Close()
}
