package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maxwell-labs/maxwells-wallet/pkg/db"
)

// Repository defines transaction persistence operations.
type Repository interface {
	InsertBatch(ctx context.Context, txns []*Transaction) error
	ExistingHashes(ctx context.Context, account string, hashes []string) (map[string]struct{}, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	Update(ctx context.Context, txn *Transaction) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
	Stats(ctx context.Context, from, to time.Time) (*Stats, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool db.Querier
}

// NewPostgresRepository creates a new PostgreSQL transaction repository.
func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const transactionColumns = `id, date, amount_cents, description, merchant, account,
	content_hash, is_transfer, linked_transaction_id, import_session_id, created_at, updated_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	t := &Transaction{}
	err := row.Scan(
		&t.ID,
		&t.Date,
		&t.AmountCents,
		&t.Description,
		&t.Merchant,
		&t.Account,
		&t.ContentHash,
		&t.IsTransfer,
		&t.LinkedID,
		&t.ImportSessionID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// InsertBatch inserts transactions in a single batch, filling in generated ids.
func (r *PostgresRepository) InsertBatch(ctx context.Context, txns []*Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	query := `
		INSERT INTO transactions (id, date, amount_cents, description, merchant, account, content_hash, import_session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	batch := &pgx.Batch{}
	for _, t := range txns {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		batch.Queue(query, t.ID, t.Date, t.AmountCents, t.Description, t.Merchant, t.Account, t.ContentHash, t.ImportSessionID)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range txns {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert transactions: %w", err)
		}
	}
	return nil
}

// ExistingHashes returns which of the given content hashes already exist for
// the account.
func (r *PostgresRepository) ExistingHashes(ctx context.Context, account string, hashes []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(hashes) == 0 {
		return existing, nil
	}

	query := `SELECT content_hash FROM transactions WHERE account = $1 AND content_hash = ANY($2)`
	rows, err := r.pool.Query(ctx, query, account, hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan hash: %w", err)
		}
		existing[h] = struct{}{}
	}
	return existing, rows.Err()
}

// List returns transactions matching the filter plus the unpaginated total.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	where, args := buildWhere(filter)

	countQuery := "SELECT count(*) FROM transactions t" + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := "SELECT " + prefixColumns("t") + " FROM transactions t" + where +
		" ORDER BY t.date DESC, t.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadTags(ctx, txns); err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

func prefixColumns(alias string) string {
	cols := strings.Split(transactionColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func buildWhere(filter ListFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Account != "" {
		add("t.account = $%d", filter.Account)
	}
	if filter.DateFrom != nil {
		add("t.date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("t.date <= $%d", *filter.DateTo)
	}
	if filter.MinCents != nil {
		add("t.amount_cents >= $%d", *filter.MinCents)
	}
	if filter.MaxCents != nil {
		add("t.amount_cents <= $%d", *filter.MaxCents)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(t.description ILIKE $%d OR t.merchant ILIKE $%d)", n, n))
	}
	if filter.IsTransfer != nil {
		add("t.is_transfer = $%d", *filter.IsTransfer)
	}
	if filter.SessionID != nil {
		add("t.import_session_id = $%d", *filter.SessionID)
	}
	if filter.TagNamespace != "" && filter.Untagged {
		add(`NOT EXISTS (
			SELECT 1 FROM transaction_tags tt JOIN tags tg ON tg.id = tt.tag_id
			WHERE tt.transaction_id = t.id AND tg.namespace = $%d)`, filter.TagNamespace)
	} else if filter.TagNamespace != "" && filter.TagValue != "" {
		args = append(args, filter.TagNamespace, filter.TagValue)
		conds = append(conds, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM transaction_tags tt JOIN tags tg ON tg.id = tt.tag_id
			WHERE tt.transaction_id = t.id AND tg.namespace = $%d AND tg.value = $%d)`,
			len(args)-1, len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// loadTags populates Tags on the given transactions in one query.
func (r *PostgresRepository) loadTags(ctx context.Context, txns []Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(txns))
	byID := make(map[uuid.UUID]*Transaction, len(txns))
	for i := range txns {
		ids[i] = txns[i].ID
		byID[txns[i].ID] = &txns[i]
	}

	query := `
		SELECT tt.transaction_id, tg.id, tg.namespace, tg.value, tt.amount_cents
		FROM transaction_tags tt
		JOIN tags tg ON tg.id = tt.tag_id
		WHERE tt.transaction_id = ANY($1)
		ORDER BY tg.namespace, tg.value`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txnID uuid.UUID
		var ref TagRef
		if err := rows.Scan(&txnID, &ref.TagID, &ref.Namespace, &ref.Value, &ref.AmountCents); err != nil {
			return fmt.Errorf("failed to scan tag ref: %w", err)
		}
		if t, ok := byID[txnID]; ok {
			t.Tags = append(t.Tags, ref)
		}
	}
	return rows.Err()
}

// GetByID retrieves a transaction with its tags.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE id = $1"

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	single := []Transaction{*t}
	if err := r.loadTags(ctx, single); err != nil {
		return nil, err
	}
	return &single[0], nil
}

// Update persists changed fields including the re-derived content hash.
func (r *PostgresRepository) Update(ctx context.Context, txn *Transaction) error {
	query := `
		UPDATE transactions
		SET date = $2, amount_cents = $3, description = $4, merchant = $5,
		    account = $6, content_hash = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		txn.ID,
		txn.Date,
		txn.AmountCents,
		txn.Description,
		txn.Merchant,
		txn.Account,
		txn.ContentHash,
	).Scan(&txn.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

// Delete removes a transaction; tag assignments cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteBySession removes every transaction created by an import session.
func (r *PostgresRepository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE import_session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete session transactions: %w", err)
	}
	return result.RowsAffected(), nil
}

// Stats aggregates a period: totals plus a per-bucket-tag breakdown.
func (r *PostgresRepository) Stats(ctx context.Context, from, to time.Time) (*Stats, error) {
	stats := &Stats{From: from, To: to}

	totals := `
		SELECT count(*),
		       COALESCE(sum(amount_cents) FILTER (WHERE amount_cents > 0), 0),
		       COALESCE(sum(amount_cents) FILTER (WHERE amount_cents < 0), 0),
		       count(*) FILTER (WHERE NOT EXISTS (
		           SELECT 1 FROM transaction_tags tt JOIN tags tg ON tg.id = tt.tag_id
		           WHERE tt.transaction_id = transactions.id AND tg.namespace = 'bucket'))
		FROM transactions
		WHERE date >= $1 AND date <= $2 AND NOT is_transfer`
	err := r.pool.QueryRow(ctx, totals, from, to).Scan(
		&stats.Count, &stats.IncomeCents, &stats.ExpenseCents, &stats.UntaggedCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	buckets := `
		SELECT tg.value, count(*), COALESCE(sum(COALESCE(tt.amount_cents, t.amount_cents)), 0)
		FROM transactions t
		JOIN transaction_tags tt ON tt.transaction_id = t.id
		JOIN tags tg ON tg.id = tt.tag_id AND tg.namespace = 'bucket'
		WHERE t.date >= $1 AND t.date <= $2 AND NOT t.is_transfer
		GROUP BY tg.value
		ORDER BY 3 ASC`
	rows, err := r.pool.Query(ctx, buckets, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate buckets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b BucketStat
		if err := rows.Scan(&b.Bucket, &b.Count, &b.TotalCents); err != nil {
			return nil, fmt.Errorf("failed to scan bucket stat: %w", err)
		}
		stats.Buckets = append(stats.Buckets, b)
	}
	return stats, rows.Err()
}
