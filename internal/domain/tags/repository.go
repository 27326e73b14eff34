// Package tags implements the namespace:value tagging model and split
// allocations of transaction amounts across tags.
package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/maxwell-labs/maxwells-wallet/pkg/db"
)

// Namespace groups tags by their meaning.
type Namespace string

const (
	NamespaceBucket   Namespace = "bucket"
	NamespaceAccount  Namespace = "account"
	NamespaceOccasion Namespace = "occasion"
	NamespaceExpense  Namespace = "expense"
)

// Valid reports whether the namespace is one of the known values.
func (n Namespace) Valid() bool {
	switch n {
	case NamespaceBucket, NamespaceAccount, NamespaceOccasion, NamespaceExpense:
		return true
	}
	return false
}

// Tag is a namespace:value label. The pair is unique.
type Tag struct {
	ID        uuid.UUID `json:"id"`
	Namespace Namespace `json:"namespace"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`

	// UsageCount is populated on list queries.
	UsageCount int `json:"usage_count"`
}

// ErrDuplicateTag is returned when a namespace:value pair already exists.
var ErrDuplicateTag = errors.New("tag already exists")

// Repository defines tag persistence operations.
type Repository interface {
	List(ctx context.Context, namespace Namespace) ([]Tag, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Tag, error)
	Create(ctx context.Context, tag *Tag) error
	Ensure(ctx context.Context, namespace Namespace, value string) (*Tag, error)
	Rename(ctx context.Context, id uuid.UUID, value string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Assign(ctx context.Context, txnID, tagID uuid.UUID, amountCents *int64) error
	Unassign(ctx context.Context, txnID, tagID uuid.UUID) error
	Assignments(ctx context.Context, txnID uuid.UUID) ([]Assignment, error)
}

// Assignment links a tag to a transaction, optionally covering only part of
// the amount.
type Assignment struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	TagID         uuid.UUID `json:"tag_id"`
	Namespace     Namespace `json:"namespace"`
	Value         string    `json:"value"`
	AmountCents   *int64    `json:"amount_cents,omitempty"`
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool db.Querier
}

// NewPostgresRepository creates a new PostgreSQL tag repository.
func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// List returns tags, optionally restricted to one namespace, with usage counts.
func (r *PostgresRepository) List(ctx context.Context, namespace Namespace) ([]Tag, error) {
	query := `
		SELECT t.id, t.namespace, t.value, t.created_at, count(tt.transaction_id)
		FROM tags t
		LEFT JOIN transaction_tags tt ON tt.tag_id = t.id
		WHERE ($1 = '' OR t.namespace = $1)
		GROUP BY t.id
		ORDER BY t.namespace, t.value`

	rows, err := r.pool.Query(ctx, query, string(namespace))
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Namespace, &t.Value, &t.CreatedAt, &t.UsageCount); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// GetByID retrieves a tag.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Tag, error) {
	t := &Tag{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, namespace, value, created_at FROM tags WHERE id = $1`, id).
		Scan(&t.ID, &t.Namespace, &t.Value, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return t, nil
}

// Create inserts a new tag.
func (r *PostgresRepository) Create(ctx context.Context, tag *Tag) error {
	if tag.ID == uuid.Nil {
		tag.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO tags (id, namespace, value) VALUES ($1, $2, $3) RETURNING created_at`,
		tag.ID, tag.Namespace, tag.Value).Scan(&tag.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateTag
	}
	if err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// Ensure returns the tag for namespace:value, creating it if absent.
func (r *PostgresRepository) Ensure(ctx context.Context, namespace Namespace, value string) (*Tag, error) {
	t := &Tag{}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tags (namespace, value) VALUES ($1, $2)
		ON CONFLICT (namespace, value) DO UPDATE SET value = EXCLUDED.value
		RETURNING id, namespace, value, created_at`,
		namespace, value).
		Scan(&t.ID, &t.Namespace, &t.Value, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure tag: %w", err)
	}
	return t, nil
}

// Rename changes a tag's value within its namespace.
func (r *PostgresRepository) Rename(ctx context.Context, id uuid.UUID, value string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE tags SET value = $2 WHERE id = $1`, id, value)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateTag
	}
	if err != nil {
		return fmt.Errorf("failed to rename tag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a tag; assignments cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Assign links a tag to a transaction, upserting the split amount.
func (r *PostgresRepository) Assign(ctx context.Context, txnID, tagID uuid.UUID, amountCents *int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transaction_tags (transaction_id, tag_id, amount_cents)
		VALUES ($1, $2, $3)
		ON CONFLICT (transaction_id, tag_id) DO UPDATE SET amount_cents = EXCLUDED.amount_cents`,
		txnID, tagID, amountCents)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to assign tag: %w", err)
	}
	return nil
}

// Unassign removes a tag from a transaction.
func (r *PostgresRepository) Unassign(ctx context.Context, txnID, tagID uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM transaction_tags WHERE transaction_id = $1 AND tag_id = $2`, txnID, tagID)
	if err != nil {
		return fmt.Errorf("failed to unassign tag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Assignments returns the tags currently on a transaction.
func (r *PostgresRepository) Assignments(ctx context.Context, txnID uuid.UUID) ([]Assignment, error) {
	query := `
		SELECT tt.transaction_id, tt.tag_id, t.namespace, t.value, tt.amount_cents
		FROM transaction_tags tt
		JOIN tags t ON t.id = tt.tag_id
		WHERE tt.transaction_id = $1
		ORDER BY t.namespace, t.value`

	rows, err := r.pool.Query(ctx, query, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.TransactionID, &a.TagID, &a.Namespace, &a.Value, &a.AmountCents); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}
