package subscription

import (
	"errors"
	"time"
)

var (
	// ErrTrialAlreadyUsed indicates the account has consumed its one trial.
	ErrTrialAlreadyUsed = errors.New("trial already used")

	// ErrNotFound indicates the account has no subscription state.
	ErrNotFound = errors.New("subscription not found")

	// ErrUnknownPlan indicates the requested plan is not in the catalog.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrQuotaExceeded indicates the subscription cannot cover another
	// product, either because the quota is spent or the plan lapsed.
	ErrQuotaExceeded = errors.New("product quota exceeded")
)

// UnlimitedQuota disables product-count gating for a plan.
const UnlimitedQuota = -1

// Plan describes a purchasable tariff.
type Plan struct {
	ID           string
	Name         string
	PriceKopecks int64
	ProductQuota int
	Duration     time.Duration
	Trial        bool
}

// State is the per-account subscription record. It is mutated only by the
// Manager in reaction to completed tariff and trial transactions.
type State struct {
	AccountID   string
	PlanID      string
	ActivatedAt time.Time
	ExpiresAt   time.Time

	// HasUsedTrial is monotonic: once true it never resets, even across plan
	// changes.
	HasUsedTrial bool

	// ProductQuota of UnlimitedQuota means no limit.
	ProductQuota int
	ProductsUsed int

	// LastTransactionID references the ledger transaction that activated the
	// current plan.
	LastTransactionID string
}

// Active reports whether the subscription covers the given moment.
func (s State) Active(now time.Time) bool {
	return s.PlanID != "" && !now.After(s.ExpiresAt)
}
