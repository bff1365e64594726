package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const claimStoreDir = "address-claims"

type addressClaimRepository struct {
	store *badgerhold.Store
}

func NewAddressClaimRepository(config ...interface{}) (domain.AddressClaimRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, claimStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open address claim store: %s", err)
	}

	return &addressClaimRepository{store}, nil
}

// ClaimForDay inserts under the (address, day) key. badgerhold reports a
// duplicate key instead of overwriting, which gives the first-writer-wins
// semantics within a single badger transaction.
func (r *addressClaimRepository) ClaimForDay(
	ctx context.Context, address, day string,
) (bool, error) {
	claim := domain.AddressClaim{Address: address, Day: day}
	key := fmt.Sprintf("%s/%s", address, day)

	err := r.store.Insert(key, &claim)
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return false, nil
	}
	if errors.Is(err, badger.ErrConflict) {
		attempts := 1
		for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
			err = r.store.Insert(key, &claim)
			attempts++
		}
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return false, nil
		}
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert address claim: %w", err)
	}
	return true, nil
}

func (r *addressClaimRepository) CountForDay(ctx context.Context, day string) (int64, error) {
	var claims []domain.AddressClaim
	if err := r.store.Find(&claims, badgerhold.Where("Day").Eq(day)); err != nil {
		return 0, fmt.Errorf("failed to count address claims: %w", err)
	}
	return int64(len(claims)), nil
}

func (r *addressClaimRepository) Close() {
	// nolint:all
	r.store.Close()
}
