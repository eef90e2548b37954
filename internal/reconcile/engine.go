package reconcile

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

// Outcome is the state Reconcile leaves the payment in.
type Outcome string

const (
	// OutcomeCompleted means the linked transaction is settled as completed.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed means the linked transaction is settled as failed.
	OutcomeFailed Outcome = "failed"
	// OutcomePending means the gateway has not decided yet; poll again later.
	OutcomePending Outcome = "pending"
	// OutcomeUnknown means no open intent matches the payment id.
	OutcomeUnknown Outcome = "unknown"
)

// Engine converges payment intents to terminal ledger transactions. Both
// confirmation channels (client-side poll and gateway webhook) feed the same
// Reconcile entry point, and the per-wallet serialization guarantees exactly
// one of them applies the result.
type Engine struct {
	intents  intent.Tracker
	store    ledger.Store
	wallets  *wallet.Manager
	subs     *subscription.Manager
	gw       gateway.Client
	notifier notification.Notifier
	logger   *slog.Logger

	sweepAttempts int
	sweepBackoff  time.Duration
}

// NewEngine wires the reconciliation engine.
func NewEngine(intents intent.Tracker, store ledger.Store, wallets *wallet.Manager,
	subs *subscription.Manager, gw gateway.Client, notifier notification.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		intents:       intents,
		store:         store,
		wallets:       wallets,
		subs:          subs,
		gw:            gw,
		notifier:      notifier,
		logger:        logger,
		sweepAttempts: 3,
		sweepBackoff:  500 * time.Millisecond,
	}
}

// Reconcile applies a gateway-reported status to the payment's intent exactly
// once. Duplicate notifications and overlapping polls observe the terminal
// transaction and return without touching the balance.
func (e *Engine) Reconcile(ctx context.Context, externalPaymentID string, status gateway.Status) (Outcome, error) {
	in, err := e.intents.Find(ctx, externalPaymentID)
	if err != nil {
		if errors.Is(err, intent.ErrNotFound) {
			// A webhook for an unknown or already consumed intent is normal:
			// the other trigger won the race, or the intent expired.
			e.logger.Info("reconcile: no open intent", "payment_id", externalPaymentID, "status", status)
			return OutcomeUnknown, nil
		}
		return OutcomeUnknown, err
	}

	var target ledger.Status
	switch status {
	case gateway.StatusSucceeded:
		target = ledger.StatusCompleted
	case gateway.StatusCanceled, gateway.StatusExpired:
		target = ledger.StatusFailed
	default:
		// pending / waiting_for_capture: no transition, re-arm the poll.
		return OutcomePending, nil
	}

	outcome := OutcomePending
	applied := false
	var tx ledger.Transaction

	// The whole find-transaction, decide-transition, mutate-balance,
	// mark-terminal sequence runs under the wallet's critical section. The
	// gateway was consulted before entering it.
	err = e.wallets.Locked(in.WalletID, func() error {
		var err error
		tx, err = e.store.Get(ctx, in.TransactionID)
		if err != nil {
			return fmt.Errorf("load transaction %s: %w", in.TransactionID, err)
		}

		if tx.Terminal() {
			outcome = outcomeFor(tx.Status)
			return nil
		}

		if target == ledger.StatusCompleted {
			if err := e.wallets.ApplyCompleted(ctx, tx); err != nil {
				return fmt.Errorf("apply transaction %s: %w", tx.ID, err)
			}
			if tx, err = e.store.MarkCompleted(ctx, tx.ID, time.Now().UTC()); err != nil {
				return fmt.Errorf("mark completed %s: %w", tx.ID, err)
			}
			outcome = OutcomeCompleted
		} else {
			if tx, err = e.store.MarkFailed(ctx, tx.ID, "gateway status: "+string(status)); err != nil {
				return fmt.Errorf("mark failed %s: %w", tx.ID, err)
			}
			if err := e.wallets.ReleaseByTransaction(ctx, tx.ID); err != nil {
				return fmt.Errorf("release reservation for %s: %w", tx.ID, err)
			}
			outcome = OutcomeFailed
		}

		applied = true
		return e.intents.Close(ctx, externalPaymentID)
	})
	if err != nil {
		return outcome, err
	}

	if applied {
		e.afterSettled(ctx, in, tx, outcome)
	}
	return outcome, nil
}

// afterSettled handles the side effects of a freshly settled payment:
// subscription activation and user notification. Runs outside the wallet's
// critical section.
func (e *Engine) afterSettled(ctx context.Context, in intent.Intent, tx ledger.Transaction, outcome Outcome) {
	w, err := e.wallets.Get(ctx, in.WalletID)
	if err != nil {
		e.logger.Error("reconcile: load wallet for side effects", "wallet_id", in.WalletID, "error", err)
		return
	}

	if outcome == OutcomeCompleted {
		switch in.Purpose {
		case intent.PurposeTariffPurchase:
			if _, err := e.subs.ActivatePlan(ctx, w.OwnerID, in.PlanID, tx.ID); err != nil {
				e.logger.Error("reconcile: activate plan", "account_id", w.OwnerID, "plan_id", in.PlanID, "error", err)
			} else {
				e.notify(ctx, notification.KindTariffActivated, w.OwnerID, fmt.Sprintf("Тариф %q активирован", in.PlanID))
			}
		case intent.PurposePayout:
			e.notify(ctx, notification.KindPayoutSent, w.OwnerID, fmt.Sprintf("Выплата %d коп. отправлена", -tx.Amount))
		default:
			e.notify(ctx, notification.KindDepositCredited, w.OwnerID, fmt.Sprintf("Кошелёк пополнен на %d коп.", tx.Amount))
		}
		return
	}

	if in.Purpose == intent.PurposePayout {
		e.notify(ctx, notification.KindPayoutFailed, w.OwnerID, "Выплата отклонена, средства возвращены на баланс")
	}
}

func (e *Engine) notify(ctx context.Context, kind, destination, body string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body}); err != nil {
		e.logger.Warn("reconcile: send notification", "kind", kind, "error", err)
	}
}

// Poll queries the gateway for the payment's current status and reconciles
// with the answer. The gateway read happens before the serialized apply step,
// so an abandoned poll has no side effects.
func (e *Engine) Poll(ctx context.Context, externalPaymentID string) (Outcome, error) {
	in, err := e.intents.Find(ctx, externalPaymentID)
	if err != nil {
		if errors.Is(err, intent.ErrNotFound) {
			return OutcomeUnknown, nil
		}
		return OutcomeUnknown, err
	}

	status, err := e.queryGateway(ctx, in)
	if err != nil {
		return OutcomePending, err
	}
	return e.Reconcile(ctx, externalPaymentID, status)
}

// Sweep re-queries every intent open longer than olderThan. Gateway
// unavailability is retried with exponential backoff a bounded number of
// times; an intent that still cannot be resolved stays open for the next
// cycle.
func (e *Engine) Sweep(ctx context.Context, olderThan time.Duration) error {
	orphans, err := e.intents.ListOrphaned(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("list orphaned intents: %w", err)
	}

	for _, in := range orphans {
		status, err := e.queryGatewayWithRetry(ctx, in)
		if err != nil {
			e.logger.Warn("sweep: gateway query failed, intent stays open",
				"payment_id", in.ExternalPaymentID, "error", err)
			continue
		}
		if _, err := e.Reconcile(ctx, in.ExternalPaymentID, status); err != nil {
			e.logger.Error("sweep: reconcile failed", "payment_id", in.ExternalPaymentID, "error", err)
		}
	}
	return nil
}

func (e *Engine) queryGateway(ctx context.Context, in intent.Intent) (gateway.Status, error) {
	if in.Purpose == intent.PurposePayout {
		p, err := e.gw.GetPayout(ctx, in.ExternalPaymentID)
		if err != nil {
			return "", err
		}
		return p.Status, nil
	}
	p, err := e.gw.GetPayment(ctx, in.ExternalPaymentID)
	if err != nil {
		return "", err
	}
	return p.Status, nil
}

func (e *Engine) queryGatewayWithRetry(ctx context.Context, in intent.Intent) (gateway.Status, error) {
	backoff := e.sweepBackoff
	var lastErr error
	for attempt := 0; attempt < e.sweepAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		status, err := e.queryGateway(ctx, in)
		if err == nil {
			return status, nil
		}
		lastErr = err
		if !errors.Is(err, gateway.ErrUnavailable) {
			return "", err
		}
	}
	return "", lastErr
}

func outcomeFor(status ledger.Status) Outcome {
	if status == ledger.StatusCompleted {
		return OutcomeCompleted
	}
	return OutcomeFailed
}
