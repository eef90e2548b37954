package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/gateway"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/intent"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/ledger"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/notification"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/subscription"
	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/wallet"
)

// ErrInvalidAmount rejects non-positive money amounts at the API boundary.
var ErrInvalidAmount = errors.New("amount must be positive")

// Service is the caller-facing surface over the money-movement core. Every
// gateway-funded operation opens a payment intent and a pending ledger
// transaction before the caller is redirected; settlement always flows
// through the reconciliation engine, never through this service.
type Service struct {
	store    ledger.Store
	wallets  *wallet.Manager
	subs     *subscription.Manager
	intents  intent.Tracker
	gw       gateway.Client
	notifier notification.Notifier
	logger   *slog.Logger

	returnURL         string
	commissionPercent int64
}

// NewService wires the billing service.
func NewService(store ledger.Store, wallets *wallet.Manager, subs *subscription.Manager,
	intents intent.Tracker, gw gateway.Client, notifier notification.Notifier,
	logger *slog.Logger, returnURL string, commissionPercent int64) *Service {
	return &Service{
		store:             store,
		wallets:           wallets,
		subs:              subs,
		intents:           intents,
		gw:                gw,
		notifier:          notifier,
		logger:            logger,
		returnURL:         returnURL,
		commissionPercent: commissionPercent,
	}
}

// PaymentResult describes a gateway-funded operation awaiting confirmation.
type PaymentResult struct {
	ExternalPaymentID string
	TransactionID     string
	ConfirmationURL   string
	Amount            int64
}

// RequestDeposit opens a wallet top-up at the gateway and returns the
// confirmation URL to redirect the caller to. The balance changes only after
// reconciliation confirms the payment.
func (s *Service) RequestDeposit(ctx context.Context, accountID string, kind wallet.OwnerKind, amount int64) (PaymentResult, error) {
	if amount <= 0 {
		return PaymentResult{}, ErrInvalidAmount
	}

	w, err := s.wallets.EnsureWallet(ctx, accountID, kind)
	if err != nil {
		return PaymentResult{}, err
	}

	payment, err := s.gw.CreatePayment(ctx, gateway.CreatePaymentInput{
		Amount:      amount,
		Description: "Пополнение кошелька",
		Metadata:    map[string]string{"purpose": string(intent.PurposeWalletDeposit), "wallet_id": w.ID},
		ReturnURL:   s.returnURL,
	})
	if err != nil {
		return PaymentResult{}, fmt.Errorf("create gateway payment: %w", err)
	}

	tx, err := s.store.Append(ctx, ledger.Transaction{
		WalletID:          w.ID,
		Kind:              ledger.KindDeposit,
		Amount:            amount,
		ExternalPaymentID: payment.ID,
		Description:       "Пополнение кошелька",
	})
	if err != nil {
		return PaymentResult{}, err
	}

	// The intent is durable before the caller ever leaves for the gateway, so
	// a reload or crash mid-redirect cannot lose track of the money.
	if err := s.intents.Open(ctx, intent.Intent{
		ExternalPaymentID: payment.ID,
		Purpose:           intent.PurposeWalletDeposit,
		WalletID:          w.ID,
		ExpectedAmount:    amount,
		TransactionID:     tx.ID,
	}); err != nil {
		return PaymentResult{}, err
	}

	return PaymentResult{
		ExternalPaymentID: payment.ID,
		TransactionID:     tx.ID,
		ConfirmationURL:   payment.ConfirmationURL,
		Amount:            amount,
	}, nil
}

// RequestTariffPurchase opens a gateway payment for a tariff plan. The plan
// activates when reconciliation settles the payment. The wallet transaction
// carries a zero amount: the price is paid externally, the ledger records the
// event for history and idempotency.
func (s *Service) RequestTariffPurchase(ctx context.Context, accountID, planID string) (PaymentResult, error) {
	plan, err := s.subs.Plan(planID)
	if err != nil {
		return PaymentResult{}, err
	}
	if plan.Trial {
		return PaymentResult{}, fmt.Errorf("%w: trial is activated without purchase", subscription.ErrUnknownPlan)
	}

	w, err := s.wallets.EnsureWallet(ctx, accountID, wallet.OwnerSeller)
	if err != nil {
		return PaymentResult{}, err
	}

	description := fmt.Sprintf("Тариф %q", plan.Name)
	payment, err := s.gw.CreatePayment(ctx, gateway.CreatePaymentInput{
		Amount:      plan.PriceKopecks,
		Description: description,
		Metadata:    map[string]string{"purpose": string(intent.PurposeTariffPurchase), "plan_id": plan.ID},
		ReturnURL:   s.returnURL,
	})
	if err != nil {
		return PaymentResult{}, fmt.Errorf("create gateway payment: %w", err)
	}

	tx, err := s.store.Append(ctx, ledger.Transaction{
		WalletID:          w.ID,
		Kind:              ledger.KindTariff,
		Amount:            0,
		ExternalPaymentID: payment.ID,
		Description:       description,
	})
	if err != nil {
		return PaymentResult{}, err
	}

	if err := s.intents.Open(ctx, intent.Intent{
		ExternalPaymentID: payment.ID,
		Purpose:           intent.PurposeTariffPurchase,
		WalletID:          w.ID,
		ExpectedAmount:    plan.PriceKopecks,
		TransactionID:     tx.ID,
		PlanID:            plan.ID,
	}); err != nil {
		return PaymentResult{}, err
	}

	return PaymentResult{
		ExternalPaymentID: payment.ID,
		TransactionID:     tx.ID,
		ConfirmationURL:   payment.ConfirmationURL,
		Amount:            plan.PriceKopecks,
	}, nil
}

// RequestTrial activates the one-off trial plan. No gateway round trip: the
// trial claim is the atomic gate, then the activation is recorded as a
// settled zero-amount transaction.
func (s *Service) RequestTrial(ctx context.Context, accountID string) (subscription.State, error) {
	w, err := s.wallets.EnsureWallet(ctx, accountID, wallet.OwnerSeller)
	if err != nil {
		return subscription.State{}, err
	}

	state, err := s.subs.ActivateTrial(ctx, accountID, "")
	if err != nil {
		return subscription.State{}, err
	}

	now := time.Now().UTC()
	if _, err := s.store.Append(ctx, ledger.Transaction{
		WalletID:    w.ID,
		Kind:        ledger.KindTrialActivation,
		Amount:      0,
		Status:      ledger.StatusCompleted,
		Description: "Активация пробного периода",
		SettledAt:   &now,
	}); err != nil {
		s.logger.Error("billing: record trial transaction", "account_id", accountID, "error", err)
	}

	s.notify(ctx, notification.KindTariffActivated, accountID, "Пробный период активирован")
	return state, nil
}

// PayoutResult describes an in-flight payout.
type PayoutResult struct {
	ExternalPayoutID string
	TransactionID    string
	ReservationID    string
	Amount           int64
}

// RequestPayout moves funds from the wallet out through the gateway. The
// amount is reserved immediately, so a second concurrent payout cannot
// overdraw before the first settles; a gateway rejection releases the
// reservation and fails the transaction, leaving the balance untouched.
// Sellers get a payout transaction, buyers a withdrawal.
func (s *Service) RequestPayout(ctx context.Context, accountID string, kind wallet.OwnerKind, amount int64, method, destination string) (PayoutResult, error) {
	if amount <= 0 {
		return PayoutResult{}, ErrInvalidAmount
	}

	w, err := s.wallets.EnsureWallet(ctx, accountID, kind)
	if err != nil {
		return PayoutResult{}, err
	}

	txKind := ledger.KindPayout
	if kind == wallet.OwnerBuyer {
		txKind = ledger.KindWithdrawal
	}

	tx, err := s.store.Append(ctx, ledger.Transaction{
		WalletID:    w.ID,
		Kind:        txKind,
		Amount:      -amount,
		Description: "Вывод средств",
	})
	if err != nil {
		return PayoutResult{}, err
	}

	res, err := s.wallets.Reserve(ctx, w.ID, amount, tx.ID)
	if err != nil {
		if _, markErr := s.store.MarkFailed(ctx, tx.ID, "insufficient available balance"); markErr != nil {
			s.logger.Error("billing: mark payout failed", "tx_id", tx.ID, "error", markErr)
		}
		return PayoutResult{}, err
	}

	payout, err := s.gw.CreatePayout(ctx, gateway.CreatePayoutInput{
		Amount:      amount,
		Method:      method,
		Destination: destination,
		Description: "Вывод средств",
	})
	if err != nil {
		s.abortPayout(ctx, res.ID, tx.ID, "gateway payout rejected")
		return PayoutResult{}, fmt.Errorf("create gateway payout: %w", err)
	}

	if err := s.store.LinkExternal(ctx, tx.ID, payout.ID); err != nil {
		s.logger.Error("billing: link payout transaction", "tx_id", tx.ID, "payout_id", payout.ID, "error", err)
	}

	// Without a durable intent the sweep can never find this payout again, so
	// the reservation would be stranded. Abort rather than strand.
	if err := s.intents.Open(ctx, intent.Intent{
		ExternalPaymentID: payout.ID,
		Purpose:           intent.PurposePayout,
		WalletID:          w.ID,
		ExpectedAmount:    amount,
		TransactionID:     tx.ID,
	}); err != nil {
		s.abortPayout(ctx, res.ID, tx.ID, "payout intent not persisted")
		return PayoutResult{}, fmt.Errorf("open payout intent: %w", err)
	}

	return PayoutResult{
		ExternalPayoutID: payout.ID,
		TransactionID:    tx.ID,
		ReservationID:    res.ID,
		Amount:           amount,
	}, nil
}

// abortPayout returns the reserved amount to the available balance and fails
// the pending payout transaction.
func (s *Service) abortPayout(ctx context.Context, reservationID, txID, reason string) {
	if err := s.wallets.Release(ctx, reservationID); err != nil {
		s.logger.Error("billing: release reservation", "reservation_id", reservationID, "error", err)
	}
	if _, err := s.store.MarkFailed(ctx, txID, reason); err != nil {
		s.logger.Error("billing: mark payout failed", "tx_id", txID, "error", err)
	}
}

// PurchaseResult describes a wallet-funded product sale.
type PurchaseResult struct {
	BuyerTransactionID      string
	SellerTransactionID     string
	CommissionTransactionID string
	Commission              int64
}

// PurchaseProduct settles a product sale between a buyer wallet and a seller
// wallet, withholding the platform commission. Purely internal money
// movement: no gateway, both sides settle immediately.
func (s *Service) PurchaseProduct(ctx context.Context, buyerID, sellerID string, amount int64, title string) (PurchaseResult, error) {
	if amount <= 0 {
		return PurchaseResult{}, ErrInvalidAmount
	}

	buyer, err := s.wallets.EnsureWallet(ctx, buyerID, wallet.OwnerBuyer)
	if err != nil {
		return PurchaseResult{}, err
	}
	seller, err := s.wallets.EnsureWallet(ctx, sellerID, wallet.OwnerSeller)
	if err != nil {
		return PurchaseResult{}, err
	}

	fee := amount * s.commissionPercent / 100
	var result PurchaseResult

	// Buyer and seller are distinct wallets; each side runs in its own
	// critical section, taken one after another, never nested.
	err = s.wallets.Locked(buyer.ID, func() error {
		w, err := s.wallets.Get(ctx, buyer.ID)
		if err != nil {
			return err
		}
		if w.Available() < amount {
			return wallet.ErrInsufficientFunds
		}
		tx, err := s.appendSettled(ctx, buyer.ID, ledger.KindPurchase, -amount, "Покупка: "+title)
		if err != nil {
			return err
		}
		result.BuyerTransactionID = tx.ID
		return nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	err = s.wallets.Locked(seller.ID, func() error {
		credit, err := s.appendSettled(ctx, seller.ID, ledger.KindPurchase, amount, "Продажа: "+title)
		if err != nil {
			return err
		}
		result.SellerTransactionID = credit.ID

		if fee > 0 {
			commission, err := s.appendSettled(ctx, seller.ID, ledger.KindCommission, -fee, "Комиссия площадки")
			if err != nil {
				return err
			}
			result.CommissionTransactionID = commission.ID
		}
		return nil
	})
	if err != nil {
		// The buyer leg already settled; reverse it so the failed sale leaves
		// the buyer's balance untouched instead of destroying the amount.
		refundErr := s.wallets.Locked(buyer.ID, func() error {
			_, err := s.appendSettled(ctx, buyer.ID, ledger.KindPurchase, amount, "Возврат: "+title)
			return err
		})
		if refundErr != nil {
			s.logger.Error("billing: refund buyer after failed sale",
				"wallet_id", buyer.ID, "transaction_id", result.BuyerTransactionID, "error", refundErr)
		}
		return PurchaseResult{}, err
	}

	result.Commission = fee
	return result, nil
}

// AwardGamePrize credits a lottery prize to the account's buyer wallet.
// Internal transaction, settled immediately.
func (s *Service) AwardGamePrize(ctx context.Context, accountID string, amount int64, description string) (ledger.Transaction, error) {
	if amount <= 0 {
		return ledger.Transaction{}, ErrInvalidAmount
	}

	w, err := s.wallets.EnsureWallet(ctx, accountID, wallet.OwnerBuyer)
	if err != nil {
		return ledger.Transaction{}, err
	}

	var tx ledger.Transaction
	err = s.wallets.Locked(w.ID, func() error {
		var err error
		tx, err = s.appendSettled(ctx, w.ID, ledger.KindGamePrize, amount, description)
		return err
	})
	if err != nil {
		return ledger.Transaction{}, err
	}

	s.notify(ctx, notification.KindPrizeAwarded, accountID, fmt.Sprintf("Выигрыш %d коп. зачислен", amount))
	return tx, nil
}

// appendSettled records an internal transaction and applies it to the wallet
// balance in one step. The caller must hold the wallet's critical section.
func (s *Service) appendSettled(ctx context.Context, walletID string, kind ledger.Kind, amount int64, description string) (ledger.Transaction, error) {
	now := time.Now().UTC()
	tx, err := s.store.Append(ctx, ledger.Transaction{
		WalletID:    walletID,
		Kind:        kind,
		Amount:      amount,
		Status:      ledger.StatusCompleted,
		Description: description,
		SettledAt:   &now,
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := s.wallets.ApplyCompleted(ctx, tx); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

// Summary is the wallet snapshot shown to the UI layer.
type Summary struct {
	WalletID  string
	OwnerID   string
	OwnerKind wallet.OwnerKind
	Balance   int64
	Reserved  int64
	Available int64
}

// WalletSummary returns the owner's wallet snapshot, creating the wallet
// lazily like every other entry point.
func (s *Service) WalletSummary(ctx context.Context, accountID string, kind wallet.OwnerKind) (Summary, error) {
	w, err := s.wallets.EnsureWallet(ctx, accountID, kind)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		WalletID:  w.ID,
		OwnerID:   w.OwnerID,
		OwnerKind: w.OwnerKind,
		Balance:   w.Balance,
		Reserved:  w.Reserved,
		Available: w.Available(),
	}, nil
}

// TransactionHistory lists the wallet's transactions, oldest first.
func (s *Service) TransactionHistory(ctx context.Context, accountID string, kind wallet.OwnerKind) ([]ledger.Transaction, error) {
	w, err := s.wallets.EnsureWallet(ctx, accountID, kind)
	if err != nil {
		return nil, err
	}
	return s.store.ListByWallet(ctx, w.ID)
}

func (s *Service) notify(ctx context.Context, kind, destination, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body}); err != nil {
		s.logger.Warn("billing: send notification", "kind", kind, "error", err)
	}
}
