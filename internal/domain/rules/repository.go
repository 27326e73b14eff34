package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maxwell-labs/maxwells-wallet/pkg/db"
)

// Repository defines rule persistence operations.
type Repository interface {
	List(ctx context.Context) ([]Rule, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	Create(ctx context.Context, rule *Rule) error
	Update(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, id uuid.UUID) error
	RecordMatches(ctx context.Context, counts map[uuid.UUID]int) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool db.Querier
}

// NewPostgresRepository creates a new PostgreSQL rule repository.
func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const ruleColumns = `r.id, r.name, r.merchant_pattern, r.description_pattern,
	r.amount_min_cents, r.amount_max_cents, r.account, r.match_all, r.priority,
	r.enabled, r.tag_id, t.namespace, t.value, r.match_count, r.last_matched_at, r.created_at`

func scanRule(row pgx.Row) (*Rule, error) {
	r := &Rule{}
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.MerchantPattern,
		&r.DescriptionPattern,
		&r.AmountMinCents,
		&r.AmountMaxCents,
		&r.Account,
		&r.MatchAll,
		&r.Priority,
		&r.Enabled,
		&r.TagID,
		&r.TagNamespace,
		&r.TagValue,
		&r.MatchCount,
		&r.LastMatchedAt,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// List returns all rules in evaluation order.
func (p *PostgresRepository) List(ctx context.Context) ([]Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM tag_rules r
		JOIN tags t ON t.id = r.tag_id
		ORDER BY r.priority DESC, r.created_at ASC, r.id ASC`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

// GetByID retrieves one rule.
func (p *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM tag_rules r
		JOIN tags t ON t.id = r.tag_id
		WHERE r.id = $1`

	r, err := scanRule(p.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return r, nil
}

// Create inserts a new rule.
func (p *PostgresRepository) Create(ctx context.Context, rule *Rule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}

	query := `
		INSERT INTO tag_rules (id, name, merchant_pattern, description_pattern,
			amount_min_cents, amount_max_cents, account, match_all, priority, enabled, tag_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err := p.pool.QueryRow(ctx, query,
		rule.ID,
		rule.Name,
		rule.MerchantPattern,
		rule.DescriptionPattern,
		rule.AmountMinCents,
		rule.AmountMaxCents,
		rule.Account,
		rule.MatchAll,
		rule.Priority,
		rule.Enabled,
		rule.TagID,
	).Scan(&rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// Update persists rule changes.
func (p *PostgresRepository) Update(ctx context.Context, rule *Rule) error {
	query := `
		UPDATE tag_rules
		SET name = $2, merchant_pattern = $3, description_pattern = $4,
		    amount_min_cents = $5, amount_max_cents = $6, account = $7,
		    match_all = $8, priority = $9, enabled = $10, tag_id = $11
		WHERE id = $1`

	result, err := p.pool.Exec(ctx, query,
		rule.ID,
		rule.Name,
		rule.MerchantPattern,
		rule.DescriptionPattern,
		rule.AmountMinCents,
		rule.AmountMaxCents,
		rule.Account,
		rule.MatchAll,
		rule.Priority,
		rule.Enabled,
		rule.TagID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a rule.
func (p *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := p.pool.Exec(ctx, `DELETE FROM tag_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordMatches bumps match counters after an apply run.
func (p *PostgresRepository) RecordMatches(ctx context.Context, counts map[uuid.UUID]int) error {
	if len(counts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for id, n := range counts {
		batch.Queue(
			`UPDATE tag_rules SET match_count = match_count + $2, last_matched_at = now() WHERE id = $1`,
			id, n)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range counts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to record rule matches: %w", err)
		}
	}
	return nil
}
