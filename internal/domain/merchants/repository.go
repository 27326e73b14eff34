package merchants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maxwell-labs/maxwells-wallet/pkg/db"
)

// Repository defines alias persistence operations.
type Repository interface {
	List(ctx context.Context) ([]Alias, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Alias, error)
	Create(ctx context.Context, alias *Alias) error
	Update(ctx context.Context, alias *Alias) error
	Delete(ctx context.Context, id uuid.UUID) error
	DistinctMerchants(ctx context.Context) ([]string, error)
	RenameMerchant(ctx context.Context, from, to string) (int64, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool db.Querier
}

// NewPostgresRepository creates a new PostgreSQL alias repository.
func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// List returns all aliases, highest priority first.
func (r *PostgresRepository) List(ctx context.Context) ([]Alias, error) {
	query := `
		SELECT id, pattern, match_type, canonical_name, priority, created_at
		FROM merchant_aliases
		ORDER BY priority DESC, created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []Alias
	for rows.Next() {
		var a Alias
		if err := rows.Scan(&a.ID, &a.Pattern, &a.MatchType, &a.CanonicalName, &a.Priority, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

// GetByID retrieves one alias.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Alias, error) {
	a := &Alias{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, pattern, match_type, canonical_name, priority, created_at
		FROM merchant_aliases WHERE id = $1`, id).
		Scan(&a.ID, &a.Pattern, &a.MatchType, &a.CanonicalName, &a.Priority, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alias: %w", err)
	}
	return a, nil
}

// Create inserts a new alias.
func (r *PostgresRepository) Create(ctx context.Context, alias *Alias) error {
	if alias.ID == uuid.Nil {
		alias.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO merchant_aliases (id, pattern, match_type, canonical_name, priority)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		alias.ID, alias.Pattern, alias.MatchType, alias.CanonicalName, alias.Priority).
		Scan(&alias.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alias: %w", err)
	}
	return nil
}

// Update persists alias changes.
func (r *PostgresRepository) Update(ctx context.Context, alias *Alias) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE merchant_aliases
		SET pattern = $2, match_type = $3, canonical_name = $4, priority = $5
		WHERE id = $1`,
		alias.ID, alias.Pattern, alias.MatchType, alias.CanonicalName, alias.Priority)
	if err != nil {
		return fmt.Errorf("failed to update alias: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an alias.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM merchant_aliases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alias: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DistinctMerchants returns every merchant string currently in use.
func (r *PostgresRepository) DistinctMerchants(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT merchant FROM transactions WHERE merchant <> '' ORDER BY merchant`)
	if err != nil {
		return nil, fmt.Errorf("failed to list merchants: %w", err)
	}
	defer rows.Close()

	var merchants []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan merchant: %w", err)
		}
		merchants = append(merchants, m)
	}
	return merchants, rows.Err()
}

// RenameMerchant rewrites a merchant string across all transactions.
func (r *PostgresRepository) RenameMerchant(ctx context.Context, from, to string) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE transactions SET merchant = $2, updated_at = now() WHERE merchant = $1`, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to rename merchant: %w", err)
	}
	return result.RowsAffected(), nil
}
