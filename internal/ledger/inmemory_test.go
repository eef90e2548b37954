package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryStore_AppendIdempotentByExternalID(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	first, err := s.Append(ctx, Transaction{
		WalletID:          "wallet-1",
		Kind:              KindDeposit,
		Amount:            500,
		ExternalPaymentID: "pay-1",
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	second, err := s.Append(ctx, Transaction{
		WalletID:          "wallet-1",
		Kind:              KindDeposit,
		Amount:            500,
		ExternalPaymentID: "pay-1",
	})
	if err != nil {
		t.Fatalf("duplicate append failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing transaction %s, got %s", first.ID, second.ID)
	}

	list, err := s.ListByWallet(ctx, "wallet-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected a single transaction, got %d", len(list))
	}
}

func TestInMemoryStore_AppendAfterFailureCreatesNew(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	first, err := s.Append(ctx, Transaction{
		WalletID:          "wallet-1",
		Kind:              KindDeposit,
		Amount:            500,
		ExternalPaymentID: "pay-1",
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := s.MarkFailed(ctx, first.ID, "canceled by user"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	second, err := s.Append(ctx, Transaction{
		WalletID:          "wallet-1",
		Kind:              KindDeposit,
		Amount:            500,
		ExternalPaymentID: "pay-1",
	})
	if err != nil {
		t.Fatalf("append after failure: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh transaction after the previous one failed")
	}
}

func TestInMemoryStore_TerminalStateGuard(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	tx, err := s.Append(ctx, Transaction{WalletID: "wallet-1", Kind: KindDeposit, Amount: 100})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	settled := time.Now().UTC()
	completed, err := s.MarkCompleted(ctx, tx.ID, settled)
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Fatalf("unexpected status: %s", completed.Status)
	}

	// Re-marking the same terminal state is a no-op.
	again, err := s.MarkCompleted(ctx, tx.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("repeat mark completed: %v", err)
	}
	if !again.SettledAt.Equal(settled) {
		t.Fatalf("settled_at changed on repeat mark: %v vs %v", again.SettledAt, settled)
	}

	// Crossing to a different terminal state is a conflict.
	if _, err := s.MarkFailed(ctx, tx.ID, "oops"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestInMemoryStore_ListOrderedOldestFirst(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	for i, amount := range []int64{100, -40, 250} {
		if _, err := s.Append(ctx, Transaction{
			WalletID:  "wallet-1",
			Kind:      KindDeposit,
			Amount:    amount,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	list, err := s.ListByWallet(ctx, "wallet-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(list))
	}
	if list[0].Amount != 100 || list[1].Amount != -40 || list[2].Amount != 250 {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestInMemoryStore_CompletedSum(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	SeedCompleted(s, "wallet-1", KindDeposit, 1_000)
	SeedCompleted(s, "wallet-1", KindPurchase, -300)

	pending, err := s.Append(ctx, Transaction{WalletID: "wallet-1", Kind: KindDeposit, Amount: 999})
	if err != nil {
		t.Fatalf("append pending: %v", err)
	}
	if pending.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", pending.Status)
	}

	sum, err := s.CompletedSum(ctx, "wallet-1")
	if err != nil {
		t.Fatalf("completed sum: %v", err)
	}
	if sum != 700 {
		t.Fatalf("expected sum 700, got %d", sum)
	}
}

func TestInMemoryStore_LinkExternal(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	tx, err := s.Append(ctx, Transaction{WalletID: "wallet-1", Kind: KindPayout, Amount: -500})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := s.LinkExternal(ctx, tx.ID, "payout-1"); err != nil {
		t.Fatalf("link failed: %v", err)
	}

	found, err := s.FindByExternalID(ctx, "payout-1")
	if err != nil {
		t.Fatalf("find by external id failed: %v", err)
	}
	if found.ID != tx.ID {
		t.Fatalf("expected transaction %s, got %s", tx.ID, found.ID)
	}

	// Re-linking the same id is a no-op, a different id conflicts.
	if err := s.LinkExternal(ctx, tx.ID, "payout-1"); err != nil {
		t.Fatalf("re-link failed: %v", err)
	}
	if err := s.LinkExternal(ctx, tx.ID, "payout-2"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := s.LinkExternal(ctx, "missing", "payout-3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
