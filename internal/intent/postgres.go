package intent

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTracker stores payment intents in PostgreSQL so they survive process
// restarts between redirect and settlement.
type PostgresTracker struct {
	db *pgxpool.Pool
}

// NewPostgresTracker constructs a Postgres-backed intent tracker.
func NewPostgresTracker(db *pgxpool.Pool) *PostgresTracker {
	return &PostgresTracker{db: db}
}

// Open persists the intent; re-opening the same external payment id keeps the
// original record.
func (t *PostgresTracker) Open(ctx context.Context, in Intent) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payment_intents
        (external_payment_id, purpose, wallet_id, expected_amount, transaction_id, plan_id, created_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
        ON CONFLICT (external_payment_id) DO NOTHING`
	_, err := t.db.Exec(ctx, query, in.ExternalPaymentID, in.Purpose, in.WalletID,
		in.ExpectedAmount, in.TransactionID, in.PlanID, in.CreatedAt)
	return err
}

// Find resolves an open intent by external payment id.
func (t *PostgresTracker) Find(ctx context.Context, externalPaymentID string) (Intent, error) {
	const query = `SELECT external_payment_id, purpose, wallet_id, expected_amount, transaction_id, COALESCE(plan_id, ''), created_at
        FROM payment_intents WHERE external_payment_id = $1`
	var in Intent
	err := t.db.QueryRow(ctx, query, externalPaymentID).Scan(
		&in.ExternalPaymentID, &in.Purpose, &in.WalletID, &in.ExpectedAmount, &in.TransactionID, &in.PlanID, &in.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Intent{}, ErrNotFound
	}
	if err != nil {
		return Intent{}, err
	}
	in.CreatedAt = in.CreatedAt.UTC()
	return in, nil
}

// Close removes a consumed intent.
func (t *PostgresTracker) Close(ctx context.Context, externalPaymentID string) error {
	_, err := t.db.Exec(ctx, `DELETE FROM payment_intents WHERE external_payment_id = $1`, externalPaymentID)
	return err
}

// ListOrphaned returns intents open longer than the given age, oldest first.
func (t *PostgresTracker) ListOrphaned(ctx context.Context, olderThan time.Duration) ([]Intent, error) {
	const query = `SELECT external_payment_id, purpose, wallet_id, expected_amount, transaction_id, COALESCE(plan_id, ''), created_at
        FROM payment_intents WHERE created_at < $1 ORDER BY created_at ASC`
	rows, err := t.db.Query(ctx, query, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Intent
	for rows.Next() {
		var in Intent
		if err := rows.Scan(&in.ExternalPaymentID, &in.Purpose, &in.WalletID,
			&in.ExpectedAmount, &in.TransactionID, &in.PlanID, &in.CreatedAt); err != nil {
			return nil, err
		}
		in.CreatedAt = in.CreatedAt.UTC()
		out = append(out, in)
	}
	return out, rows.Err()
}
