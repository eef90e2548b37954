package gateway

import (
	"context"
	"errors"
)

// ErrUnavailable indicates a transient transport or server-side failure while
// contacting the gateway. Callers retry with backoff; the affected payment
// intent stays open.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Status is the gateway-reported lifecycle state of a payment or payout.
type Status string

const (
	StatusPending           Status = "pending"
	StatusWaitingForCapture Status = "waiting_for_capture"
	StatusSucceeded         Status = "succeeded"
	StatusCanceled          Status = "canceled"
	StatusExpired           Status = "expired"
)

// Terminal reports whether the gateway will never change this status again.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusCanceled, StatusExpired:
		return true
	default:
		return false
	}
}

// Payment is the gateway's view of an inbound payment.
type Payment struct {
	ID              string
	Status          Status
	Amount          int64
	Description     string
	ConfirmationURL string
}

// Payout is the gateway's view of an outbound transfer.
type Payout struct {
	ID     string
	Status Status
	Amount int64
}

// CreatePaymentInput carries the data needed to open a payment at the gateway.
// Amount is in minor currency units.
type CreatePaymentInput struct {
	Amount      int64
	Currency    string
	Description string
	Metadata    map[string]string
	ReturnURL   string
}

// CreatePayoutInput carries the data needed to push funds out.
type CreatePayoutInput struct {
	Amount      int64
	Currency    string
	Method      string
	Destination string
	Description string
}

// Client is the connector to the external payment gateway. The gateway is an
// eventually-consistent oracle: its responses are never written to balances
// directly, they only feed the reconciliation engine.
type Client interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (Payment, error)
	GetPayment(ctx context.Context, id string) (Payment, error)
	CreatePayout(ctx context.Context, input CreatePayoutInput) (Payout, error)
	GetPayout(ctx context.Context, id string) (Payout, error)
}
