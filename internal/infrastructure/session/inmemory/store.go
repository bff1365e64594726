package inmemorysession

import (
	"context"
	"sync"

	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/cityofzion/faucetd/internal/core/ports"
)

type sessionStore struct {
	lock sync.Mutex
	tx   *domain.Transaction
}

func NewSessionStore() ports.SessionStore {
	return &sessionStore{}
}

func (s *sessionStore) Set(_ context.Context, tx *domain.Transaction) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.tx = tx
	return nil
}

func (s *sessionStore) TakeAndClear(_ context.Context) (*domain.Transaction, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	tx := s.tx
	s.tx = nil
	return tx, nil
}

func (s *sessionStore) Close() {}
