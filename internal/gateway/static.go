package gateway

import (
	"context"

	"github.com/google/uuid"
)

// StaticClient simulates a gateway that accepts everything. Payments open as
// pending with a synthetic confirmation URL and report succeeded on the next
// status query. Used in development mode when no gateway credentials are set.
type StaticClient struct{}

// CreatePayment opens a synthetic pending payment.
func (StaticClient) CreatePayment(_ context.Context, input CreatePaymentInput) (Payment, error) {
	id := uuid.NewString()
	return Payment{
		ID:              id,
		Status:          StatusPending,
		Amount:          input.Amount,
		Description:     input.Description,
		ConfirmationURL: "https://gateway.invalid/confirm/" + id,
	}, nil
}

// GetPayment reports every payment as succeeded.
func (StaticClient) GetPayment(_ context.Context, id string) (Payment, error) {
	return Payment{ID: id, Status: StatusSucceeded}, nil
}

// CreatePayout approves the payout immediately.
func (StaticClient) CreatePayout(_ context.Context, input CreatePayoutInput) (Payout, error) {
	return Payout{ID: uuid.NewString(), Status: StatusPending, Amount: input.Amount}, nil
}

// GetPayout reports every payout as succeeded.
func (StaticClient) GetPayout(_ context.Context, id string) (Payout, error) {
	return Payout{ID: id, Status: StatusSucceeded}, nil
}
