package ledger

import (
	"context"
	"time"
)

// SeedCompleted is a test helper that appends an already-settled transaction,
// giving a wallet an opening balance when using the in-memory store.
func SeedCompleted(s Store, walletID string, kind Kind, amount int64) Transaction {
	now := time.Now().UTC()
	tx, err := s.Append(context.Background(), Transaction{
		WalletID:  walletID,
		Kind:      kind,
		Amount:    amount,
		Status:    StatusCompleted,
		SettledAt: &now,
	})
	if err != nil {
		panic(err)
	}
	return tx
}
