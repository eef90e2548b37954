package wallet

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu           sync.RWMutex
	wallets      map[string]Wallet
	byOwner      map[string]string
	reservations map[string]Reservation
	applied      map[string]map[string]struct{}
}

// NewMemoryRepository constructs an in-memory repository for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		wallets:      make(map[string]Wallet),
		byOwner:      make(map[string]string),
		reservations: make(map[string]Reservation),
		applied:      make(map[string]map[string]struct{}),
	}
}

func ownerKey(ownerID string, kind OwnerKind) string {
	return string(kind) + ":" + ownerID
}

func (r *memoryRepository) Create(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.wallets[w.ID]; exists {
		return ErrVersionConflict
	}
	r.wallets[w.ID] = w
	r.byOwner[ownerKey(w.OwnerID, w.OwnerKind)] = w.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *memoryRepository) GetByOwner(_ context.Context, ownerID string, kind OwnerKind) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOwner[ownerKey(ownerID, kind)]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return r.wallets[id], nil
}

func (r *memoryRepository) Update(_ context.Context, w Wallet) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.wallets[w.ID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	if stored.Version != w.Version {
		return Wallet{}, ErrVersionConflict
	}
	w.Version++
	r.wallets[w.ID] = w
	return w, nil
}

func (r *memoryRepository) CreateReservation(_ context.Context, res Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations[res.ID] = res
	return nil
}

func (r *memoryRepository) GetReservation(_ context.Context, id string) (Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.reservations[id]
	if !ok {
		return Reservation{}, ErrReservationNotFound
	}
	return res, nil
}

func (r *memoryRepository) FindReservationByTransaction(_ context.Context, transactionID string) (Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, res := range r.reservations {
		if res.TransactionID == transactionID {
			return res, nil
		}
	}
	return Reservation{}, ErrReservationNotFound
}

func (r *memoryRepository) DeleteReservation(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reservations, id)
	return nil
}

func (r *memoryRepository) MarkApplied(_ context.Context, walletID, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.applied[walletID]
	if !ok {
		set = make(map[string]struct{})
		r.applied[walletID] = set
	}
	set[transactionID] = struct{}{}
	return nil
}

func (r *memoryRepository) WasApplied(_ context.Context, walletID, transactionID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.applied[walletID][transactionID]
	return ok, nil
}
