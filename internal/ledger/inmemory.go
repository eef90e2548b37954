package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]Transaction
	byExternal map[string]string
	byWallet   map[string][]string
}

// NewInMemory creates a concurrency-safe in-memory ledger store used in
// development mode and unit tests.
func NewInMemory() Store {
	return &inMemoryStore{
		byID:       make(map[string]Transaction),
		byExternal: make(map[string]string),
		byWallet:   make(map[string][]string),
	}
}

func (s *inMemoryStore) Append(_ context.Context, tx Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ExternalPaymentID != "" {
		if id, ok := s.byExternal[tx.ExternalPaymentID]; ok {
			existing := s.byID[id]
			if existing.Status != StatusFailed {
				return existing, nil
			}
		}
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	s.byID[tx.ID] = tx
	if tx.ExternalPaymentID != "" {
		s.byExternal[tx.ExternalPaymentID] = tx.ID
	}
	s.byWallet[tx.WalletID] = append(s.byWallet[tx.WalletID], tx.ID)

	return tx, nil
}

func (s *inMemoryStore) Get(_ context.Context, id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.byID[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (s *inMemoryStore) FindByExternalID(_ context.Context, externalPaymentID string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalPaymentID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *inMemoryStore) ListByWallet(_ context.Context, walletID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byWallet[walletID]
	out := make([]Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out, nil
}

func (s *inMemoryStore) MarkCompleted(_ context.Context, id string, settledAt time.Time) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byID[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	switch tx.Status {
	case StatusCompleted:
		return tx, nil
	case StatusFailed:
		return tx, ErrConflict
	}

	settled := settledAt.UTC()
	tx.Status = StatusCompleted
	tx.SettledAt = &settled
	s.byID[id] = tx
	return tx, nil
}

func (s *inMemoryStore) MarkFailed(_ context.Context, id, reason string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byID[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	switch tx.Status {
	case StatusFailed:
		return tx, nil
	case StatusCompleted:
		return tx, ErrConflict
	}

	settled := time.Now().UTC()
	tx.Status = StatusFailed
	tx.FailReason = reason
	tx.SettledAt = &settled
	s.byID[id] = tx
	return tx, nil
}

func (s *inMemoryStore) LinkExternal(_ context.Context, id, externalPaymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if tx.ExternalPaymentID == externalPaymentID {
		return nil
	}
	if tx.ExternalPaymentID != "" {
		return ErrConflict
	}

	tx.ExternalPaymentID = externalPaymentID
	s.byID[id] = tx
	s.byExternal[externalPaymentID] = id
	return nil
}

func (s *inMemoryStore) CompletedSum(_ context.Context, walletID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum int64
	for _, id := range s.byWallet[walletID] {
		tx := s.byID[id]
		if tx.Status == StatusCompleted {
			sum += tx.Amount
		}
	}
	return sum, nil
}
