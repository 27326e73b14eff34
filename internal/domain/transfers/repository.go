package transfers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions"
	"github.com/maxwell-labs/maxwells-wallet/pkg/db"
)

// ErrNotTransferPair is returned when two transactions cannot be linked.
var ErrNotTransferPair = errors.New("transactions do not form an offsetting pair")

// TransferStats summarizes marked transfers.
type TransferStats struct {
	PairCount       int   `json:"pair_count"`
	TotalMovedCents int64 `json:"total_moved_cents"`
}

// Repository defines transfer-specific queries over the transactions table.
type Repository interface {
	Candidates(ctx context.Context, from, to *time.Time) ([]transactions.Transaction, error)
	Link(ctx context.Context, aID, bID uuid.UUID) error
	Unlink(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*TransferStats, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool db.Querier
}

// NewPostgresRepository creates a new PostgreSQL transfer repository.
func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Candidates returns unmarked transactions, optionally restricted to a date
// range, ordered for the in-memory pair scan.
func (r *PostgresRepository) Candidates(ctx context.Context, from, to *time.Time) ([]transactions.Transaction, error) {
	query := `
		SELECT id, date, amount_cents, description, merchant, account,
		       content_hash, is_transfer, linked_transaction_id, import_session_id, created_at, updated_at
		FROM transactions
		WHERE NOT is_transfer
		  AND ($1::date IS NULL OR date >= $1)
		  AND ($2::date IS NULL OR date <= $2)
		ORDER BY date, created_at`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer candidates: %w", err)
	}
	defer rows.Close()

	var txns []transactions.Transaction
	for rows.Next() {
		var t transactions.Transaction
		err := rows.Scan(
			&t.ID, &t.Date, &t.AmountCents, &t.Description, &t.Merchant, &t.Account,
			&t.ContentHash, &t.IsTransfer, &t.LinkedID, &t.ImportSessionID, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// Link marks both transactions as a transfer pair in one database
// transaction, validating that the amounts still offset.
func (r *PostgresRepository) Link(ctx context.Context, aID, bID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var aCents, bCents int64
	var aTransfer, bTransfer bool
	err = tx.QueryRow(ctx,
		`SELECT amount_cents, is_transfer FROM transactions WHERE id = $1 FOR UPDATE`, aID).
		Scan(&aCents, &aTransfer)
	if errors.Is(err, pgx.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to load transaction: %w", err)
	}
	err = tx.QueryRow(ctx,
		`SELECT amount_cents, is_transfer FROM transactions WHERE id = $1 FOR UPDATE`, bID).
		Scan(&bCents, &bTransfer)
	if errors.Is(err, pgx.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to load transaction: %w", err)
	}

	if aCents != -bCents || aCents == 0 || aTransfer || bTransfer {
		return ErrNotTransferPair
	}

	_, err = tx.Exec(ctx,
		`UPDATE transactions SET is_transfer = TRUE, linked_transaction_id = $2, updated_at = now() WHERE id = $1`,
		aID, bID)
	if err != nil {
		return fmt.Errorf("failed to mark transfer: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE transactions SET is_transfer = TRUE, linked_transaction_id = $2, updated_at = now() WHERE id = $1`,
		bID, aID)
	if err != nil {
		return fmt.Errorf("failed to mark transfer: %w", err)
	}

	return tx.Commit(ctx)
}

// Unlink clears the transfer flag on a transaction and its partner.
func (r *PostgresRepository) Unlink(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var linked *uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT linked_transaction_id FROM transactions WHERE id = $1 AND is_transfer FOR UPDATE`, id).
		Scan(&linked)
	if errors.Is(err, pgx.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to load transaction: %w", err)
	}

	clear := `UPDATE transactions SET is_transfer = FALSE, linked_transaction_id = NULL, updated_at = now() WHERE id = $1`
	if _, err := tx.Exec(ctx, clear, id); err != nil {
		return fmt.Errorf("failed to unmark transfer: %w", err)
	}
	if linked != nil {
		if _, err := tx.Exec(ctx, clear, *linked); err != nil {
			return fmt.Errorf("failed to unmark transfer partner: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Stats counts marked pairs and the cents moved between accounts.
func (r *PostgresRepository) Stats(ctx context.Context) (*TransferStats, error) {
	stats := &TransferStats{}
	// Count each pair once via its negative side.
	err := r.pool.QueryRow(ctx, `
		SELECT count(*), COALESCE(sum(-amount_cents), 0)
		FROM transactions
		WHERE is_transfer AND amount_cents < 0`).
		Scan(&stats.PairCount, &stats.TotalMovedCents)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transfer stats: %w", err)
	}
	return stats, nil
}
