package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cityofzion/faucetd/internal/core/domain"
)

const (
	insertAddressClaim = `
		INSERT INTO address_claim (address, day) VALUES (?, ?)
		ON CONFLICT (address, day) DO NOTHING
	`
	countAddressClaimsForDay = `
		SELECT COUNT(*) FROM address_claim WHERE day = ?
	`
)

type addressClaimRepository struct {
	db *sql.DB
}

func NewAddressClaimRepository(config ...interface{}) (domain.AddressClaimRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open address claim repository: invalid config, expected db at 0",
		)
	}

	return &addressClaimRepository{db: db}, nil
}

func (r *addressClaimRepository) Close() {
	// nolint:all
	r.db.Close()
}

// ClaimForDay relies on the unique constraint on (address, day): the insert
// either takes the row or conflicts, there is no separate existence check.
func (r *addressClaimRepository) ClaimForDay(
	ctx context.Context, address, day string,
) (bool, error) {
	res, err := r.db.ExecContext(ctx, insertAddressClaim, address, day)
	if err != nil {
		return false, fmt.Errorf("failed to insert address claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return affected > 0, nil
}

func (r *addressClaimRepository) CountForDay(ctx context.Context, day string) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, countAddressClaimsForDay, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count address claims: %w", err)
	}
	return count, nil
}
