package wallet

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested wallet does not exist.
	ErrNotFound = errors.New("wallet not found")

	// ErrReservationNotFound indicates the requested reservation does not exist.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrVersionConflict indicates a concurrent write slipped past the
	// per-wallet serialization. It signals a bug, not a retryable condition.
	ErrVersionConflict = errors.New("wallet version conflict")

	// ErrInsufficientFunds occurs when a debit or reservation exceeds the
	// wallet's available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Repository persists wallet projections and payout reservations.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByOwner(ctx context.Context, ownerID string, kind OwnerKind) (Wallet, error)

	// Update writes the wallet guarded by its version: the stored row must
	// still carry w.Version, and the write bumps it by one.
	Update(ctx context.Context, w Wallet) (Wallet, error)

	CreateReservation(ctx context.Context, r Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	FindReservationByTransaction(ctx context.Context, transactionID string) (Reservation, error)
	DeleteReservation(ctx context.Context, id string) error

	// MarkApplied records that a transaction has been credited to the wallet,
	// and WasApplied reports it. The set makes re-applying any settled
	// transaction a no-op, no matter how many others settled in between.
	MarkApplied(ctx context.Context, walletID, transactionID string) error
	WasApplied(ctx context.Context, walletID, transactionID string) (bool, error)
}
