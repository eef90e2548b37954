package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/ledger"
)

// Manager owns every wallet mutation. All writes to a given wallet are
// serialized through a per-wallet mutex, so two wallets mutate independently
// while a single wallet behaves as if it had one writer.
type Manager struct {
	repo Repository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager builds a wallet manager over the given repository.
func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo, locks: make(map[string]*sync.Mutex)}
}

func (m *Manager) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Locked runs fn inside the wallet's critical section. The reconciliation
// engine uses this to keep its whole decide-and-apply sequence under the same
// serialization as every other mutation of the wallet.
func (m *Manager) Locked(walletID string, fn func() error) error {
	l := m.lockFor(walletID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// EnsureWallet returns the owner's wallet in the given role, creating it
// lazily on first use.
func (m *Manager) EnsureWallet(ctx context.Context, ownerID string, kind OwnerKind) (Wallet, error) {
	if ownerID == "" {
		return Wallet{}, fmt.Errorf("owner id is required")
	}

	// Creation races are settled under an owner-scoped lock rather than a
	// wallet-scoped one: the wallet id does not exist yet.
	l := m.lockFor("owner:" + string(kind) + ":" + ownerID)
	l.Lock()
	defer l.Unlock()

	w, err := m.repo.GetByOwner(ctx, ownerID, kind)
	if err == nil {
		return w, nil
	}
	if err != ErrNotFound {
		return Wallet{}, err
	}

	now := time.Now().UTC()
	w = Wallet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		OwnerKind: kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.repo.Create(ctx, w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Get fetches the wallet projection.
func (m *Manager) Get(ctx context.Context, walletID string) (Wallet, error) {
	return m.repo.Get(ctx, walletID)
}

// AvailableBalance returns balance minus reservations for the wallet.
func (m *Manager) AvailableBalance(ctx context.Context, walletID string) (int64, error) {
	w, err := m.repo.Get(ctx, walletID)
	if err != nil {
		return 0, err
	}
	return w.Available(), nil
}

// Reserve earmarks amount from the wallet's available balance for an in-flight
// payout, so a second concurrent payout cannot overdraw before the first one
// settles. The reservation is tied to the pending payout transaction.
func (m *Manager) Reserve(ctx context.Context, walletID string, amount int64, transactionID string) (Reservation, error) {
	if amount <= 0 {
		return Reservation{}, fmt.Errorf("reservation amount must be positive")
	}

	var res Reservation
	err := m.Locked(walletID, func() error {
		w, err := m.repo.Get(ctx, walletID)
		if err != nil {
			return err
		}
		if w.Available() < amount {
			return ErrInsufficientFunds
		}

		w.Reserved += amount
		if _, err := m.repo.Update(ctx, w); err != nil {
			return err
		}

		res = Reservation{
			ID:            uuid.NewString(),
			WalletID:      walletID,
			Amount:        amount,
			TransactionID: transactionID,
			CreatedAt:     time.Now().UTC(),
		}
		return m.repo.CreateReservation(ctx, res)
	})
	return res, err
}

// Release returns a reservation's amount to the available balance, e.g. after
// the gateway rejected the payout.
func (m *Manager) Release(ctx context.Context, reservationID string) error {
	res, err := m.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	return m.Locked(res.WalletID, func() error {
		return m.releaseLocked(ctx, res)
	})
}

// ReleaseByTransaction releases the reservation backing a payout transaction.
// The caller must already hold the wallet's critical section via Locked.
func (m *Manager) ReleaseByTransaction(ctx context.Context, transactionID string) error {
	res, err := m.repo.FindReservationByTransaction(ctx, transactionID)
	if err != nil {
		if err == ErrReservationNotFound {
			return nil
		}
		return err
	}
	return m.releaseLocked(ctx, res)
}

func (m *Manager) releaseLocked(ctx context.Context, res Reservation) error {
	w, err := m.repo.Get(ctx, res.WalletID)
	if err != nil {
		return err
	}
	w.Reserved -= res.Amount
	if w.Reserved < 0 {
		w.Reserved = 0
	}
	if _, err := m.repo.Update(ctx, w); err != nil {
		return err
	}
	return m.repo.DeleteReservation(ctx, res.ID)
}

// ApplyCompleted is the only path that changes a wallet balance. It credits or
// debits the wallet by the transaction amount and, for reserved payouts,
// converts the reservation into the settled debit. The caller must hold the
// wallet's critical section via Locked. Each transaction lands on the balance
// at most once: a retry is a no-op even when other transactions settled in
// between the first application and the retry.
func (m *Manager) ApplyCompleted(ctx context.Context, tx ledger.Transaction) error {
	if tx.WalletID == "" {
		return fmt.Errorf("transaction %s has no wallet", tx.ID)
	}

	applied, err := m.repo.WasApplied(ctx, tx.WalletID, tx.ID)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	w, err := m.repo.Get(ctx, tx.WalletID)
	if err != nil {
		return err
	}

	w.Balance += tx.Amount

	res, err := m.repo.FindReservationByTransaction(ctx, tx.ID)
	switch err {
	case nil:
		w.Reserved -= res.Amount
		if w.Reserved < 0 {
			w.Reserved = 0
		}
	case ErrReservationNotFound:
	default:
		return err
	}

	if _, err := m.repo.Update(ctx, w); err != nil {
		return err
	}
	if err := m.repo.MarkApplied(ctx, tx.WalletID, tx.ID); err != nil {
		return err
	}
	if res.ID != "" {
		return m.repo.DeleteReservation(ctx, res.ID)
	}
	return nil
}
