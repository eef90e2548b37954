package wallet

import "time"

// OwnerKind distinguishes buyer and seller wallets for the same marketplace account.
type OwnerKind string

const (
	OwnerBuyer  OwnerKind = "buyer"
	OwnerSeller OwnerKind = "seller"
)

// Wallet is the cached balance projection for one owner. The ledger remains
// the source of truth; Balance mirrors the sum of completed transactions and
// is only ever written through Manager.ApplyCompleted.
type Wallet struct {
	ID        string
	OwnerID   string
	OwnerKind OwnerKind

	// Balance and Reserved are fixed-point minor currency units (kopecks).
	Balance  int64
	Reserved int64

	// Version increases on every mutation for optimistic concurrency in the
	// repository layer.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available returns the balance minus in-flight payout reservations.
func (w Wallet) Available() int64 {
	return w.Balance - w.Reserved
}

// Reservation is a hold against available balance during an in-flight payout.
type Reservation struct {
	ID            string
	WalletID      string
	Amount        int64
	TransactionID string
	CreatedAt     time.Time
}
