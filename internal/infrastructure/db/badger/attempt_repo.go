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

const attemptStoreDir = "client-attempts"

type clientAttemptRepository struct {
	store *badgerhold.Store
}

func NewClientAttemptRepository(config ...interface{}) (domain.ClientAttemptRepository, error) {
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
		dir = filepath.Join(baseDir, attemptStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open client attempt store: %s", err)
	}

	return &clientAttemptRepository{store}, nil
}

func (r *clientAttemptRepository) Add(ctx context.Context, attempt domain.ClientAttempt) error {
	err := r.store.Insert(badgerhold.NextSequence(), &attempt)
	if errors.Is(err, badger.ErrConflict) {
		attempts := 1
		for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
			err = r.store.Insert(badgerhold.NextSequence(), &attempt)
			attempts++
		}
	}
	if err != nil {
		return fmt.Errorf("failed to insert client attempt: %w", err)
	}
	return nil
}

func (r *clientAttemptRepository) CountForDay(
	ctx context.Context, client, day string,
) (int64, error) {
	var attempts []domain.ClientAttempt
	if err := r.store.Find(
		&attempts, badgerhold.Where("Client").Eq(client).And("Day").Eq(day),
	); err != nil {
		return 0, fmt.Errorf("failed to count client attempts: %w", err)
	}
	return int64(len(attempts)), nil
}

func (r *clientAttemptRepository) Close() {
	// nolint:all
	r.store.Close()
}
