package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested transaction does not exist.
	ErrNotFound = errors.New("transaction not found")

	// ErrConflict indicates an attempt to move a settled transaction into a
	// different terminal state. This is a data-integrity violation upstream
	// and must never be resolved silently.
	ErrConflict = errors.New("transaction already settled in a different terminal state")
)

// Kind classifies the business event behind a ledger transaction.
type Kind string

const (
	KindDeposit         Kind = "deposit"
	KindWithdrawal      Kind = "withdrawal"
	KindPurchase        Kind = "purchase"
	KindTariff          Kind = "tariff"
	KindTrialActivation Kind = "trial_activation"
	KindCommission      Kind = "commission"
	KindGamePrize       Kind = "game_prize"
	KindPayout          Kind = "payout"
)

// Status is the settlement state of a transaction. A transaction moves from
// pending to exactly one terminal state and never changes afterwards.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transaction is an immutable record of a single balance-affecting event.
// The ledger is append-only and is the source of truth: wallet balances are
// derived projections over completed transactions.
type Transaction struct {
	ID       string
	WalletID string
	Kind     Kind

	// Amount is signed relative to the wallet: credit positive, debit negative.
	Amount int64

	Status Status

	// ExternalPaymentID correlates the transaction with the gateway's payment
	// object and doubles as the idempotency key. Empty for purely internal
	// transactions such as game prizes.
	ExternalPaymentID string

	Description string
	FailReason  string
	CreatedAt   time.Time
	SettledAt   *time.Time
}

// Terminal reports whether the transaction has reached a final state.
func (t Transaction) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Store defines the contract implemented by ledger backends (e.g. Postgres).
type Store interface {
	// Append records a new pending transaction. When the external payment id
	// already has a non-failed transaction the existing record is returned
	// unchanged, making creation idempotent.
	Append(ctx context.Context, tx Transaction) (Transaction, error)

	Get(ctx context.Context, id string) (Transaction, error)
	FindByExternalID(ctx context.Context, externalPaymentID string) (Transaction, error)

	// ListByWallet returns the wallet's transactions ordered oldest first.
	ListByWallet(ctx context.Context, walletID string) ([]Transaction, error)

	// MarkCompleted settles the transaction. Re-marking an already completed
	// transaction is a no-op; marking a failed one returns ErrConflict.
	MarkCompleted(ctx context.Context, id string, settledAt time.Time) (Transaction, error)

	// MarkFailed settles the transaction as failed. Re-marking an already
	// failed transaction is a no-op; marking a completed one returns ErrConflict.
	MarkFailed(ctx context.Context, id, reason string) (Transaction, error)

	// LinkExternal attaches the gateway payment id to a transaction created
	// before the gateway assigned one, e.g. a payout. Re-linking the same id
	// is a no-op; linking a different id returns ErrConflict.
	LinkExternal(ctx context.Context, id, externalPaymentID string) error

	// CompletedSum derives the wallet balance as the sum of completed
	// transaction amounts. Used by reconciliation checks to compare against
	// the cached wallet balance.
	CompletedSum(ctx context.Context, walletID string) (int64, error)
}
