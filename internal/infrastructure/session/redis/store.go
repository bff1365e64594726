package redissession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/cityofzion/faucetd/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

const sessionSlotKey = "sessionStore:lastResult"

type sessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) ports.SessionStore {
	return &sessionStore{rdb: rdb}
}

func (s *sessionStore) Set(ctx context.Context, tx *domain.Transaction) error {
	val, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction %s: %v", tx.ID, err)
	}
	return s.rdb.Set(ctx, sessionSlotKey, val, 0).Err()
}

// TakeAndClear uses GETDEL so read and clear happen as one server-side
// operation.
func (s *sessionStore) TakeAndClear(ctx context.Context) (*domain.Transaction, error) {
	val, err := s.rdb.GetDel(ctx, sessionSlotKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take session slot: %w", err)
	}

	var tx domain.Transaction
	if err := json.Unmarshal([]byte(val), &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session transaction: %w", err)
	}
	return &tx, nil
}

func (s *sessionStore) Close() {
	// nolint:all
	s.rdb.Close()
}
