package intent

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no open intent exists for the external payment id.
var ErrNotFound = errors.New("payment intent not found")

// Purpose states what the in-flight money is for.
type Purpose string

const (
	PurposeWalletDeposit  Purpose = "wallet_deposit"
	PurposeTariffPurchase Purpose = "tariff_purchase"
	PurposePayout         Purpose = "payout"
)

// Intent tracks money in flight to or from the gateway before settlement is
// known. It is persisted before any redirect happens, so a page reload or
// crash mid-payment can recover it and resume reconciliation.
type Intent struct {
	ExternalPaymentID string
	Purpose           Purpose
	WalletID          string
	ExpectedAmount    int64
	TransactionID     string

	// PlanID is set for tariff purchases so the subscription manager knows
	// what to activate once the payment settles.
	PlanID string

	CreatedAt time.Time
}

// Tracker persists payment intents for the lifetime of the gateway round trip.
// At most one open intent exists per external payment id.
type Tracker interface {
	Open(ctx context.Context, in Intent) error
	Find(ctx context.Context, externalPaymentID string) (Intent, error)
	Close(ctx context.Context, externalPaymentID string) error

	// ListOrphaned returns intents open longer than the given age, feeding
	// the background sweep that re-queries the gateway.
	ListOrphaned(ctx context.Context, olderThan time.Duration) ([]Intent, error)
}
