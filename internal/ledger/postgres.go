package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists ledger transactions in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const txColumns = `id, wallet_id, kind, amount, status, external_payment_id, description, fail_reason, created_at, settled_at`

// Append inserts a pending transaction unless the external payment id already
// carries a non-failed one, in which case the existing record is returned.
func (s *PostgresStore) Append(ctx context.Context, tx Transaction) (Transaction, error) {
	dbtx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	if tx.ExternalPaymentID != "" {
		const existingQuery = `SELECT ` + txColumns + ` FROM ledger_transactions
            WHERE external_payment_id = $1 AND status <> 'failed' FOR UPDATE`
		existing, err := scanTransaction(dbtx.QueryRow(ctx, existingQuery, tx.ExternalPaymentID))
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, err
		}
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	const insertQuery = `INSERT INTO ledger_transactions (` + txColumns + `)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)`
	if _, err := dbtx.Exec(ctx, insertQuery,
		tx.ID, tx.WalletID, tx.Kind, tx.Amount, tx.Status,
		tx.ExternalPaymentID, tx.Description, tx.FailReason, tx.CreatedAt, tx.SettledAt,
	); err != nil {
		return Transaction{}, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// Get fetches a transaction by identifier.
func (s *PostgresStore) Get(ctx context.Context, id string) (Transaction, error) {
	const query = `SELECT ` + txColumns + ` FROM ledger_transactions WHERE id = $1`
	tx, err := scanTransaction(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	return tx, err
}

// FindByExternalID resolves a transaction through its gateway payment id,
// preferring the non-failed record when retries created several.
func (s *PostgresStore) FindByExternalID(ctx context.Context, externalPaymentID string) (Transaction, error) {
	const query = `SELECT ` + txColumns + ` FROM ledger_transactions
        WHERE external_payment_id = $1
        ORDER BY (status = 'failed'), created_at DESC
        LIMIT 1`
	tx, err := scanTransaction(s.db.QueryRow(ctx, query, externalPaymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	return tx, err
}

// ListByWallet returns all wallet transactions, oldest first.
func (s *PostgresStore) ListByWallet(ctx context.Context, walletID string) ([]Transaction, error) {
	const query = `SELECT ` + txColumns + ` FROM ledger_transactions
        WHERE wallet_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.db.Query(ctx, query, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// MarkCompleted settles the transaction; see Store for terminal-state semantics.
func (s *PostgresStore) MarkCompleted(ctx context.Context, id string, settledAt time.Time) (Transaction, error) {
	return s.settle(ctx, id, StatusCompleted, "", settledAt.UTC())
}

// MarkFailed settles the transaction as failed; see Store for terminal-state semantics.
func (s *PostgresStore) MarkFailed(ctx context.Context, id, reason string) (Transaction, error) {
	return s.settle(ctx, id, StatusFailed, reason, time.Now().UTC())
}

func (s *PostgresStore) settle(ctx context.Context, id string, target Status, reason string, settledAt time.Time) (Transaction, error) {
	dbtx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	const query = `SELECT ` + txColumns + ` FROM ledger_transactions WHERE id = $1 FOR UPDATE`
	tx, err := scanTransaction(dbtx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}

	if tx.Status == target {
		return tx, nil
	}
	if tx.Terminal() {
		return tx, ErrConflict
	}

	const update = `UPDATE ledger_transactions
        SET status = $2, fail_reason = $3, settled_at = $4 WHERE id = $1`
	if _, err := dbtx.Exec(ctx, update, id, target, reason, settledAt); err != nil {
		return Transaction{}, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return Transaction{}, err
	}

	tx.Status = target
	tx.FailReason = reason
	tx.SettledAt = &settledAt
	return tx, nil
}

// LinkExternal attaches the gateway payment id; see Store for re-link semantics.
func (s *PostgresStore) LinkExternal(ctx context.Context, id, externalPaymentID string) error {
	const query = `UPDATE ledger_transactions SET external_payment_id = $2
        WHERE id = $1 AND (external_payment_id IS NULL OR external_payment_id = $2)`
	tag, err := s.db.Exec(ctx, query, id, externalPaymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// CompletedSum derives the wallet balance from completed transactions.
func (s *PostgresStore) CompletedSum(ctx context.Context, walletID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM ledger_transactions
        WHERE wallet_id = $1 AND status = 'completed'`
	var sum int64
	if err := s.db.QueryRow(ctx, query, walletID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tx Transaction
	var externalID, description, failReason sql.NullString
	var settledAt sql.NullTime
	if err := row.Scan(&tx.ID, &tx.WalletID, &tx.Kind, &tx.Amount, &tx.Status,
		&externalID, &description, &failReason, &tx.CreatedAt, &settledAt); err != nil {
		return Transaction{}, err
	}
	tx.ExternalPaymentID = externalID.String
	tx.Description = description.String
	tx.FailReason = failReason.String
	if settledAt.Valid {
		t := settledAt.Time.UTC()
		tx.SettledAt = &t
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}
