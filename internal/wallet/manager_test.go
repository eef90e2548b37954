package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/ledger"
)

func seedWallet(t *testing.T, m *Manager, balance int64) Wallet {
	t.Helper()
	ctx := context.Background()
	w, err := m.EnsureWallet(ctx, "owner-1", OwnerSeller)
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if balance != 0 {
		now := time.Now().UTC()
		if err := m.Locked(w.ID, func() error {
			return m.ApplyCompleted(ctx, ledger.Transaction{
				ID:        "seed-tx",
				WalletID:  w.ID,
				Kind:      ledger.KindDeposit,
				Amount:    balance,
				Status:    ledger.StatusCompleted,
				SettledAt: &now,
			})
		}); err != nil {
			t.Fatalf("seed balance: %v", err)
		}
	}
	return w
}

func TestManager_EnsureWalletLazyAndStable(t *testing.T) {
	m := NewManager(NewMemoryRepository())
	ctx := context.Background()

	first, err := m.EnsureWallet(ctx, "acc-1", OwnerBuyer)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	second, err := m.EnsureWallet(ctx, "acc-1", OwnerBuyer)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same wallet, got %s and %s", first.ID, second.ID)
	}

	seller, err := m.EnsureWallet(ctx, "acc-1", OwnerSeller)
	if err != nil {
		t.Fatalf("ensure seller: %v", err)
	}
	if seller.ID == first.ID {
		t.Fatal("buyer and seller roles must have distinct wallets")
	}
}

func TestManager_ReserveBlocksOverdraw(t *testing.T) {
	m := NewManager(NewMemoryRepository())
	ctx := context.Background()
	w := seedWallet(t, m, 1_000)

	res, err := m.Reserve(ctx, w.ID, 700, "payout-tx-1")
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	available, err := m.AvailableBalance(ctx, w.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if available != 300 {
		t.Fatalf("expected available 300, got %d", available)
	}

	if _, err := m.Reserve(ctx, w.ID, 500, "payout-tx-2"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	// Gateway failure path: releasing the hold restores the full balance.
	if err := m.Release(ctx, res.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	available, err = m.AvailableBalance(ctx, w.ID)
	if err != nil {
		t.Fatalf("available after release: %v", err)
	}
	if available != 1_000 {
		t.Fatalf("expected available 1000 after release, got %d", available)
	}
}

func TestManager_ApplyCompletedIdempotent(t *testing.T) {
	m := NewManager(NewMemoryRepository())
	ctx := context.Background()
	w := seedWallet(t, m, 0)

	tx := ledger.Transaction{ID: "tx-1", WalletID: w.ID, Kind: ledger.KindDeposit, Amount: 500}

	for i := 0; i < 2; i++ {
		if err := m.Locked(w.ID, func() error {
			return m.ApplyCompleted(ctx, tx)
		}); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	got, err := m.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance != 500 {
		t.Fatalf("expected balance 500 after duplicate apply, got %d", got.Balance)
	}
}

func TestManager_ApplyCompletedConvertsReservation(t *testing.T) {
	m := NewManager(NewMemoryRepository())
	ctx := context.Background()
	w := seedWallet(t, m, 1_000)

	if _, err := m.Reserve(ctx, w.ID, 700, "payout-tx"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := m.Locked(w.ID, func() error {
		return m.ApplyCompleted(ctx, ledger.Transaction{
			ID:       "payout-tx",
			WalletID: w.ID,
			Kind:     ledger.KindPayout,
			Amount:   -700,
		})
	}); err != nil {
		t.Fatalf("apply payout: %v", err)
	}

	got, err := m.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance != 300 {
		t.Fatalf("expected balance 300, got %d", got.Balance)
	}
	if got.Reserved != 0 {
		t.Fatalf("expected reservation converted, reserved=%d", got.Reserved)
	}
}

func TestManager_ConcurrentReservations(t *testing.T) {
	m := NewManager(NewMemoryRepository())
	ctx := context.Background()
	w := seedWallet(t, m, 10_000)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Reserve(ctx, w.ID, 1_000, ""); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 10 {
		t.Fatalf("expected exactly 10 grants against balance 10000, got %d", granted)
	}
	available, err := m.AvailableBalance(ctx, w.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if available != 0 {
		t.Fatalf("expected available 0, got %d", available)
	}
}

func TestManager_ApplyCompletedIdempotentAcrossInterleavedSettlements(t *testing.T) {
	m := NewManager(NewMemoryRepository())
	ctx := context.Background()
	w := seedWallet(t, m, 0)

	first := ledger.Transaction{ID: "tx-1", WalletID: w.ID, Kind: ledger.KindDeposit, Amount: 500}
	second := ledger.Transaction{ID: "tx-2", WalletID: w.ID, Kind: ledger.KindDeposit, Amount: 300}

	// tx-1 applies, tx-2 settles after it, then tx-1 is retried. The retry
	// must stay a no-op even though tx-1 is no longer the latest settlement.
	for _, tx := range []ledger.Transaction{first, second, first} {
		if err := m.Locked(w.ID, func() error {
			return m.ApplyCompleted(ctx, tx)
		}); err != nil {
			t.Fatalf("apply %s: %v", tx.ID, err)
		}
	}

	got, err := m.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance != 800 {
		t.Fatalf("expected balance 800 after retried settlement, got %d", got.Balance)
	}
}
