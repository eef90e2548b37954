package subscription

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryRepository constructs an in-memory repository for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{states: make(map[string]State)}
}

func (r *memoryRepository) Get(_ context.Context, accountID string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[accountID]
	if !ok {
		return State{}, ErrNotFound
	}
	return s, nil
}

func (r *memoryRepository) Save(_ context.Context, s State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.states[s.AccountID]; ok && existing.HasUsedTrial {
		s.HasUsedTrial = true
	}
	r.states[s.AccountID] = s
	return nil
}

func (r *memoryRepository) ClaimTrial(_ context.Context, s State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.states[s.AccountID]; ok && existing.HasUsedTrial {
		return ErrTrialAlreadyUsed
	}
	s.HasUsedTrial = true
	r.states[s.AccountID] = s
	return nil
}

func (r *memoryRepository) ConsumeQuota(_ context.Context, accountID string, now time.Time) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[accountID]
	if !ok {
		return State{}, ErrNotFound
	}
	if !s.Active(now) {
		return State{}, ErrQuotaExceeded
	}
	if s.ProductQuota != UnlimitedQuota && s.ProductsUsed >= s.ProductQuota {
		return State{}, ErrQuotaExceeded
	}
	s.ProductsUsed++
	r.states[accountID] = s
	return s, nil
}
