package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores wallets and reservations in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, owner_id, owner_kind, balance, reserved, version, created_at, updated_at`

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	const query = `INSERT INTO wallets (` + walletColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query, w.ID, w.OwnerID, w.OwnerKind, w.Balance, w.Reserved,
		w.Version, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	return err
}

// Get fetches a wallet by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	const query = `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(r.db.QueryRow(ctx, query, id))
}

// GetByOwner fetches the wallet for an owner in the given role.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string, kind OwnerKind) (Wallet, error) {
	const query = `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1 AND owner_kind = $2`
	return scanWallet(r.db.QueryRow(ctx, query, ownerID, kind))
}

// Update writes the wallet guarded by its version.
func (r *PostgresRepository) Update(ctx context.Context, w Wallet) (Wallet, error) {
	const query = `UPDATE wallets
        SET balance = $3, reserved = $4, version = version + 1, updated_at = $5
        WHERE id = $1 AND version = $2
        RETURNING ` + walletColumns
	updated, err := scanWallet(r.db.QueryRow(ctx, query,
		w.ID, w.Version, w.Balance, w.Reserved, time.Now().UTC()))
	if errors.Is(err, ErrNotFound) {
		// Row exists but the version moved, or the wallet is gone. Either way
		// the optimistic write lost.
		if _, getErr := r.Get(ctx, w.ID); getErr == nil {
			return Wallet{}, ErrVersionConflict
		}
		return Wallet{}, ErrNotFound
	}
	return updated, err
}

// CreateReservation inserts a payout reservation.
func (r *PostgresRepository) CreateReservation(ctx context.Context, res Reservation) error {
	const query = `INSERT INTO wallet_reservations (id, wallet_id, amount, transaction_id, created_at)
        VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, query, res.ID, res.WalletID, res.Amount, res.TransactionID, res.CreatedAt.UTC())
	return err
}

// GetReservation fetches a reservation by identifier.
func (r *PostgresRepository) GetReservation(ctx context.Context, id string) (Reservation, error) {
	const query = `SELECT id, wallet_id, amount, transaction_id, created_at
        FROM wallet_reservations WHERE id = $1`
	return scanReservation(r.db.QueryRow(ctx, query, id))
}

// FindReservationByTransaction resolves the reservation backing a payout transaction.
func (r *PostgresRepository) FindReservationByTransaction(ctx context.Context, transactionID string) (Reservation, error) {
	const query = `SELECT id, wallet_id, amount, transaction_id, created_at
        FROM wallet_reservations WHERE transaction_id = $1`
	return scanReservation(r.db.QueryRow(ctx, query, transactionID))
}

// DeleteReservation removes a released or converted reservation.
func (r *PostgresRepository) DeleteReservation(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM wallet_reservations WHERE id = $1`, id)
	return err
}

// MarkApplied records a settled transaction in the wallet's applied set.
func (r *PostgresRepository) MarkApplied(ctx context.Context, walletID, transactionID string) error {
	const query = `INSERT INTO wallet_applied_transactions (wallet_id, transaction_id, applied_at)
        VALUES ($1, $2, $3) ON CONFLICT (wallet_id, transaction_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, walletID, transactionID, time.Now().UTC())
	return err
}

// WasApplied reports whether the transaction already hit the wallet balance.
func (r *PostgresRepository) WasApplied(ctx context.Context, walletID, transactionID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM wallet_applied_transactions
        WHERE wallet_id = $1 AND transaction_id = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, walletID, transactionID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	if err := row.Scan(&w.ID, &w.OwnerID, &w.OwnerKind, &w.Balance, &w.Reserved,
		&w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func scanReservation(row pgx.Row) (Reservation, error) {
	var res Reservation
	if err := row.Scan(&res.ID, &res.WalletID, &res.Amount, &res.TransactionID, &res.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrReservationNotFound
		}
		return Reservation{}, err
	}
	res.CreatedAt = res.CreatedAt.UTC()
	return res, nil
}
