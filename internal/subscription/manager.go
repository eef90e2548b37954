package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPlans is the marketplace tariff catalog. Prices are kopecks.
var DefaultPlans = []Plan{
	{ID: "trial", Name: "Пробный период", PriceKopecks: 0, ProductQuota: 10, Duration: 7 * 24 * time.Hour, Trial: true},
	{ID: "start", Name: "Старт", PriceKopecks: 49_900, ProductQuota: 50, Duration: 30 * 24 * time.Hour},
	{ID: "business", Name: "Бизнес", PriceKopecks: 149_900, ProductQuota: 500, Duration: 30 * 24 * time.Hour},
	{ID: "pro", Name: "Про", PriceKopecks: 299_900, ProductQuota: UnlimitedQuota, Duration: 30 * 24 * time.Hour},
}

// Decision is the outcome of a quota check, with a human-readable reason when
// denied.
type Decision struct {
	Allowed bool
	Reason  string
}

// Manager is the single authority over tariff activation and product quotas.
type Manager struct {
	repo  Repository
	plans map[string]Plan
	now   func() time.Time
}

// NewManager builds a subscription manager over the given plan catalog.
func NewManager(repo Repository, plans []Plan) *Manager {
	if len(plans) == 0 {
		plans = DefaultPlans
	}
	byID := make(map[string]Plan, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}
	return &Manager{repo: repo, plans: byID, now: time.Now}
}

// Plan looks up a catalog plan.
func (m *Manager) Plan(planID string) (Plan, error) {
	p, ok := m.plans[planID]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}
	return p, nil
}

// TrialPlan returns the catalog's designated trial plan.
func (m *Manager) TrialPlan() (Plan, error) {
	for _, p := range m.plans {
		if p.Trial {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: no trial plan configured", ErrUnknownPlan)
}

// ActivateTrial grants the account its one-off trial plan. Fails with
// ErrTrialAlreadyUsed when the trial flag is already set; the check and the
// activation are atomic in the repository.
func (m *Manager) ActivateTrial(ctx context.Context, accountID, transactionID string) (State, error) {
	plan, err := m.TrialPlan()
	if err != nil {
		return State{}, err
	}

	now := m.now().UTC()
	s := State{
		AccountID:         accountID,
		PlanID:            plan.ID,
		ActivatedAt:       now,
		ExpiresAt:         now.Add(plan.Duration),
		HasUsedTrial:      true,
		ProductQuota:      plan.ProductQuota,
		ProductsUsed:      0,
		LastTransactionID: transactionID,
	}
	if err := m.repo.ClaimTrial(ctx, s); err != nil {
		return State{}, err
	}
	return s, nil
}

// ActivatePlan activates a paid tariff after its purchase transaction
// completed. The product counter restarts for the new period; the trial flag
// is preserved by the repository.
func (m *Manager) ActivatePlan(ctx context.Context, accountID, planID, transactionID string) (State, error) {
	plan, err := m.Plan(planID)
	if err != nil {
		return State{}, err
	}

	hasUsedTrial := false
	if existing, err := m.repo.Get(ctx, accountID); err == nil {
		hasUsedTrial = existing.HasUsedTrial
	} else if err != ErrNotFound {
		return State{}, err
	}

	now := m.now().UTC()
	s := State{
		AccountID:         accountID,
		PlanID:            plan.ID,
		ActivatedAt:       now,
		ExpiresAt:         now.Add(plan.Duration),
		HasUsedTrial:      hasUsedTrial,
		ProductQuota:      plan.ProductQuota,
		ProductsUsed:      0,
		LastTransactionID: transactionID,
	}
	if err := m.repo.Save(ctx, s); err != nil {
		return State{}, err
	}
	return s, nil
}

// CanAddProduct reports whether the account may list another product, with a
// reason suitable for showing to the user when denied.
func (m *Manager) CanAddProduct(ctx context.Context, accountID string) (Decision, error) {
	s, err := m.repo.Get(ctx, accountID)
	if err != nil {
		if err == ErrNotFound {
			return Decision{Reason: "нет активного тарифа"}, nil
		}
		return Decision{}, err
	}

	now := m.now().UTC()
	if !s.Active(now) {
		return Decision{Reason: fmt.Sprintf("тариф истёк %s", s.ExpiresAt.Format("02.01.2006"))}, nil
	}
	if s.ProductQuota != UnlimitedQuota && s.ProductsUsed >= s.ProductQuota {
		return Decision{Reason: fmt.Sprintf("лимит товаров исчерпан (%d из %d)", s.ProductsUsed, s.ProductQuota)}, nil
	}
	return Decision{Allowed: true}, nil
}

// RegisterProduct counts a newly listed product against the quota. The check
// and the increment happen atomically in the repository, so two concurrent
// registrations cannot both take the last quota slot.
func (m *Manager) RegisterProduct(ctx context.Context, accountID string) error {
	_, err := m.repo.ConsumeQuota(ctx, accountID, m.now().UTC())
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrQuotaExceeded) {
		decision, checkErr := m.CanAddProduct(ctx, accountID)
		if checkErr == nil && !decision.Allowed {
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, decision.Reason)
		}
		return fmt.Errorf("%w: лимит товаров", ErrQuotaExceeded)
	}
	return err
}

// Get returns the account's subscription state.
func (m *Manager) Get(ctx context.Context, accountID string) (State, error) {
	return m.repo.Get(ctx, accountID)
}
