package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores subscription states in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const stateColumns = `account_id, plan_id, activated_at, expires_at, has_used_trial, product_quota, products_used, last_transaction_id`

// Get fetches the subscription state for an account.
func (r *PostgresRepository) Get(ctx context.Context, accountID string) (State, error) {
	const query = `SELECT ` + stateColumns + ` FROM subscription_states WHERE account_id = $1`
	var s State
	err := r.db.QueryRow(ctx, query, accountID).Scan(&s.AccountID, &s.PlanID, &s.ActivatedAt,
		&s.ExpiresAt, &s.HasUsedTrial, &s.ProductQuota, &s.ProductsUsed, &s.LastTransactionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, err
	}
	s.ActivatedAt = s.ActivatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, nil
}

// Save upserts the state. has_used_trial only ever moves to true.
func (r *PostgresRepository) Save(ctx context.Context, s State) error {
	const query = `INSERT INTO subscription_states (` + stateColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (account_id) DO UPDATE SET
            plan_id = EXCLUDED.plan_id,
            activated_at = EXCLUDED.activated_at,
            expires_at = EXCLUDED.expires_at,
            has_used_trial = subscription_states.has_used_trial OR EXCLUDED.has_used_trial,
            product_quota = EXCLUDED.product_quota,
            products_used = EXCLUDED.products_used,
            last_transaction_id = EXCLUDED.last_transaction_id`
	_, err := r.db.Exec(ctx, query, s.AccountID, s.PlanID, s.ActivatedAt.UTC(), s.ExpiresAt.UTC(),
		s.HasUsedTrial, s.ProductQuota, s.ProductsUsed, s.LastTransactionID)
	return err
}

// ClaimTrial writes the trial state only when the trial flag is still unset;
// the conditional upsert keeps the check and the set in one statement.
func (r *PostgresRepository) ClaimTrial(ctx context.Context, s State) error {
	const query = `INSERT INTO subscription_states (` + stateColumns + `)
        VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7)
        ON CONFLICT (account_id) DO UPDATE SET
            plan_id = EXCLUDED.plan_id,
            activated_at = EXCLUDED.activated_at,
            expires_at = EXCLUDED.expires_at,
            has_used_trial = TRUE,
            product_quota = EXCLUDED.product_quota,
            products_used = EXCLUDED.products_used,
            last_transaction_id = EXCLUDED.last_transaction_id
        WHERE subscription_states.has_used_trial = FALSE
        RETURNING account_id`
	var claimed string
	err := r.db.QueryRow(ctx, query, s.AccountID, s.PlanID, s.ActivatedAt.UTC(), s.ExpiresAt.UTC(),
		s.ProductQuota, s.ProductsUsed, s.LastTransactionID).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTrialAlreadyUsed
	}
	return err
}

// ConsumeQuota increments the product counter with the quota and expiry
// checks inside the same statement, so concurrent registrations serialize on
// the row.
func (r *PostgresRepository) ConsumeQuota(ctx context.Context, accountID string, now time.Time) (State, error) {
	const query = `UPDATE subscription_states
        SET products_used = products_used + 1
        WHERE account_id = $1 AND expires_at >= $2
          AND (product_quota = -1 OR products_used < product_quota)
        RETURNING ` + stateColumns
	var s State
	err := r.db.QueryRow(ctx, query, accountID, now.UTC()).Scan(&s.AccountID, &s.PlanID,
		&s.ActivatedAt, &s.ExpiresAt, &s.HasUsedTrial, &s.ProductQuota, &s.ProductsUsed, &s.LastTransactionID)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, accountID); errors.Is(getErr, ErrNotFound) {
			return State{}, ErrNotFound
		}
		return State{}, ErrQuotaExceeded
	}
	if err != nil {
		return State{}, err
	}
	s.ActivatedAt = s.ActivatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, nil
}
