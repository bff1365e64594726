package domain

import "context"

type AddressClaimRepository interface {
	// ClaimForDay atomically inserts the (address, day) claim record.
	// It returns created=false when a record already existed, without error:
	// first writer wins.
	ClaimForDay(ctx context.Context, address, day string) (created bool, err error)
	CountForDay(ctx context.Context, day string) (int64, error)
	Close()
}

type ClientAttemptRepository interface {
	Add(ctx context.Context, attempt ClientAttempt) error
	CountForDay(ctx context.Context, client, day string) (int64, error)
	Close()
}
