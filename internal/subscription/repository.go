package subscription

import (
	"context"
	"time"
)

// Repository persists subscription states.
type Repository interface {
	Get(ctx context.Context, accountID string) (State, error)
	Save(ctx context.Context, s State) error

	// ClaimTrial atomically writes the trial state unless the account has
	// already used its trial, in which case it returns ErrTrialAlreadyUsed.
	// The check and the write happen under the same guard: two concurrent
	// claims cannot both succeed.
	ClaimTrial(ctx context.Context, s State) error

	// ConsumeQuota atomically counts one product against an active
	// subscription and returns the updated state. The check and the
	// increment happen under the same guard, so concurrent registrations at
	// the last quota slot cannot both pass. Returns ErrQuotaExceeded when
	// the quota is spent or the plan is not active at the given moment.
	ConsumeQuota(ctx context.Context, accountID string, now time.Time) (State, error)
}
