package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cityofzion/faucetd/internal/core/domain"
)

const (
	insertClientAttempt = `
		INSERT INTO client_attempt (client, day, attempted_at) VALUES (?, ?, ?)
	`
	countClientAttemptsForDay = `
		SELECT COUNT(*) FROM client_attempt WHERE client = ? AND day = ?
	`
)

type clientAttemptRepository struct {
	db *sql.DB
}

func NewClientAttemptRepository(config ...interface{}) (domain.ClientAttemptRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open client attempt repository: invalid config, expected db at 0",
		)
	}

	return &clientAttemptRepository{db: db}, nil
}

func (r *clientAttemptRepository) Close() {
	// nolint:all
	r.db.Close()
}

func (r *clientAttemptRepository) Add(ctx context.Context, attempt domain.ClientAttempt) error {
	if _, err := r.db.ExecContext(
		ctx, insertClientAttempt, attempt.Client, attempt.Day, attempt.At.Unix(),
	); err != nil {
		return fmt.Errorf("failed to insert client attempt: %w", err)
	}
	return nil
}

func (r *clientAttemptRepository) CountForDay(
	ctx context.Context, client, day string,
) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(
		ctx, countClientAttemptsForDay, client, day,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count client attempts: %w", err)
	}
	return count, nil
}
